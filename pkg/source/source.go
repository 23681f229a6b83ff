package source

import (
	"context"
	"sync"
)

// EventChanged is the only notification a source emits.
const EventChanged = "changed"

type ListenerID uint64

// Source is an external, push-based provider of the media URL.
type Source interface {
	GetValue(ctx context.Context) (string, error)
	AddListener(event string, fn func()) ListenerID
	RemoveListener(event string, id ListenerID)
}

// listeners is the subscription bookkeeping shared by all sources.
type listeners struct {
	mu     sync.Mutex
	nextID ListenerID
	fns    map[string]map[ListenerID]func()
}

func (l *listeners) add(event string, fn func()) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[string]map[ListenerID]func())
	}
	if l.fns[event] == nil {
		l.fns[event] = make(map[ListenerID]func())
	}
	l.nextID++
	l.fns[event][l.nextID] = fn
	return l.nextID
}

func (l *listeners) remove(event string, id ListenerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fns[event], id)
}

func (l *listeners) count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns[event])
}

func (l *listeners) notify(event string) {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.fns[event]))
	for _, fn := range l.fns[event] {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
