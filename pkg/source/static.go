package source

import (
	"context"
	"sync"
)

func NewStatic(value string) *Static {
	return &Static{value: value}
}

// Static holds its value in memory. Set replaces it and signals "changed".
type Static struct {
	listeners
	mu    sync.RWMutex
	value string
	err   error
}

func (s *Static) GetValue(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return "", s.err
	}
	return s.value, nil
}

func (s *Static) Set(value string) {
	s.mu.Lock()
	s.value = value
	s.err = nil
	s.mu.Unlock()
	s.notify(EventChanged)
}

// Fail makes subsequent fetches return err until the next Set.
func (s *Static) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify(EventChanged)
}

func (s *Static) AddListener(event string, fn func()) ListenerID {
	return s.add(event, fn)
}

func (s *Static) RemoveListener(event string, id ListenerID) {
	s.remove(event, id)
}

// Listeners reports the number of "changed" subscribers.
func (s *Static) Listeners() int {
	return s.count(EventChanged)
}

var _ Source = (*Static)(nil)
