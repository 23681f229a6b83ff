package player

import (
	"math"
	"sync"

	"github.com/samber/lo"
)

type PointerKind string

const (
	PointerMove  PointerKind = "mousemove"
	PointerClick PointerKind = "click"
	PointerUp    PointerKind = "mouseup"
)

type PointerEvent struct {
	Kind PointerKind
	X    float64
}

// Bounds is the horizontal extent of the volume control.
type Bounds struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

type PointerListenerID uint64

// PointerSurface is the document-level target a drag captures pointer
// events from, so a release outside the control still ends the drag.
type PointerSurface interface {
	AddPointerListener(kind PointerKind, fn func(PointerEvent)) PointerListenerID
	RemovePointerListener(kind PointerKind, id PointerListenerID)
}

// VolumeAt maps a pointer position to a volume: the clamped percentage of x
// within b, rounded down.
func VolumeAt(b Bounds, x float64) int {
	if b.Width <= 0 {
		return 0
	}
	pct := (x - b.Left) / b.Width
	return int(math.Floor(lo.Clamp(pct*100, 0, 100)))
}

// VolumeDrag holds the listeners acquired on press until release.
type VolumeDrag struct {
	mu      sync.Mutex
	surface PointerSurface
	bounds  Bounds
	set     func(int)
	ids     map[PointerKind]PointerListenerID
}

func newVolumeDrag(surface PointerSurface, bounds Bounds, set func(int)) *VolumeDrag {
	drag := &VolumeDrag{
		surface: surface,
		bounds:  bounds,
		set:     set,
		ids:     make(map[PointerKind]PointerListenerID),
	}
	for _, kind := range []PointerKind{PointerMove, PointerClick, PointerUp} {
		drag.ids[kind] = surface.AddPointerListener(kind, drag.handle)
	}
	return drag
}

func (drag *VolumeDrag) handle(ev PointerEvent) {
	if ev.Kind == PointerUp {
		drag.Release()
		return
	}
	if !drag.Active() {
		return
	}
	drag.set(VolumeAt(drag.bounds, ev.X))
}

func (drag *VolumeDrag) Active() bool {
	drag.mu.Lock()
	defer drag.mu.Unlock()
	return len(drag.ids) > 0
}

// Release removes every acquired listener. Safe to call more than once.
func (drag *VolumeDrag) Release() {
	drag.mu.Lock()
	defer drag.mu.Unlock()
	for kind, id := range drag.ids {
		drag.surface.RemovePointerListener(kind, id)
		delete(drag.ids, kind)
	}
}

func NewDocument() *Document {
	return &Document{
		listeners: make(map[PointerKind]map[PointerListenerID]func(PointerEvent)),
	}
}

// Document is an in-process PointerSurface fed by Dispatch.
type Document struct {
	mu        sync.Mutex
	nextID    PointerListenerID
	listeners map[PointerKind]map[PointerListenerID]func(PointerEvent)
}

func (doc *Document) AddPointerListener(kind PointerKind, fn func(PointerEvent)) PointerListenerID {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.listeners[kind] == nil {
		doc.listeners[kind] = make(map[PointerListenerID]func(PointerEvent))
	}
	doc.nextID++
	doc.listeners[kind][doc.nextID] = fn
	return doc.nextID
}

func (doc *Document) RemovePointerListener(kind PointerKind, id PointerListenerID) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	delete(doc.listeners[kind], id)
}

func (doc *Document) ListenerCount() int {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	n := 0
	for _, ls := range doc.listeners {
		n += len(ls)
	}
	return n
}

func (doc *Document) Dispatch(ev PointerEvent) {
	doc.mu.Lock()
	fns := make([]func(PointerEvent), 0, len(doc.listeners[ev.Kind]))
	for _, fn := range doc.listeners[ev.Kind] {
		fns = append(fns, fn)
	}
	doc.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

var _ PointerSurface = (*Document)(nil)
