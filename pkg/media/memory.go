package media

import (
	"fmt"
	"math"
	"sync"
	"time"

	"emperror.dev/errors"
)

var ErrPlayRejected = errors.New("play request rejected")

type listener struct {
	id ListenerID
	fn func()
}

// MemoryElement is a simulated media element with a manual clock. Like a
// browser element it never calls listeners from inside a command: events are
// queued and delivered by Flush (or by Advance, which flushes).
type MemoryElement struct {
	mu           sync.Mutex
	src          string
	paused       bool
	currentTime  float64
	duration     float64
	volume       float64
	playbackRate float64
	muted        bool
	loop         bool
	autoPlay     bool
	fullscreen   bool
	durations    map[string]float64
	defaultDur   float64
	listeners    map[EventType][]listener
	nextID       ListenerID
	pending      []EventType
	calls        []string

	// RejectPlay simulates an autoplay policy refusing play().
	RejectPlay bool
	// NoFullscreen simulates a runtime without the fullscreen API.
	NoFullscreen bool
	// NoPictureInPicture simulates a runtime without picture-in-picture.
	NoPictureInPicture bool
}

func NewMemoryElement() *MemoryElement {
	return &MemoryElement{
		paused:       true,
		duration:     math.NaN(),
		volume:       1,
		playbackRate: 1,
		durations:    make(map[string]float64),
		listeners:    make(map[EventType][]listener),
	}
}

// SetSourceDuration registers the duration reported as metadata when url is
// loaded. Sources without a registered duration never load metadata.
func (el *MemoryElement) SetSourceDuration(url string, d float64) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.durations[url] = d
}

// SetDefaultDuration sets the duration of every non-empty url without a
// registered one. d <= 0 switches it off.
func (el *MemoryElement) SetDefaultDuration(d float64) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.defaultDur = d
}

func (el *MemoryElement) record(format string, a ...interface{}) {
	el.calls = append(el.calls, fmt.Sprintf(format, a...))
}

// Calls returns the commands received so far, e.g. "play" or "seek:30".
func (el *MemoryElement) Calls() []string {
	el.mu.Lock()
	defer el.mu.Unlock()
	return append([]string{}, el.calls...)
}

func (el *MemoryElement) Source() string {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.src
}

func (el *MemoryElement) Muted() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.muted
}

func (el *MemoryElement) Loop() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.loop
}

func (el *MemoryElement) Load(url string) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("load:%s", url)
	el.src = url
	el.currentTime = 0
	el.paused = true
	el.duration = math.NaN()
	d, ok := el.durations[url]
	if !ok && url != "" && el.defaultDur > 0 {
		d, ok = el.defaultDur, true
	}
	if ok {
		el.duration = d
		el.pending = append(el.pending, EventLoadedMetadata)
	}
	if el.autoPlay && !el.RejectPlay {
		el.paused = false
	}
	return nil
}

func (el *MemoryElement) Play() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("play")
	if el.RejectPlay {
		return ErrPlayRejected
	}
	el.paused = false
	return nil
}

func (el *MemoryElement) Pause() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("pause")
	el.paused = true
	return nil
}

func (el *MemoryElement) Paused() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.paused
}

func (el *MemoryElement) CurrentTime() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.currentTime
}

func (el *MemoryElement) SetCurrentTime(t float64) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("seek:%g", t)
	el.currentTime = t
	el.pending = append(el.pending, EventTimeUpdate)
	return nil
}

func (el *MemoryElement) Duration() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.duration
}

func (el *MemoryElement) Volume() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.volume
}

func (el *MemoryElement) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return errors.Errorf("volume %g out of range [0, 1]", v)
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	el.volume = v
	return nil
}

func (el *MemoryElement) PlaybackRate() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.playbackRate
}

func (el *MemoryElement) SetPlaybackRate(rate float64) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("rate:%g", rate)
	el.playbackRate = rate
	return nil
}

func (el *MemoryElement) SetMuted(muted bool) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.muted = muted
	return nil
}

func (el *MemoryElement) SetLoop(loop bool) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.loop = loop
	return nil
}

func (el *MemoryElement) SetAutoPlay(autoPlay bool) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.autoPlay = autoPlay
	return nil
}

func (el *MemoryElement) RequestPictureInPicture() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("pip")
	if el.NoPictureInPicture {
		return ErrUnsupported
	}
	return nil
}

func (el *MemoryElement) RequestFullscreen() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("fullscreen")
	if el.NoFullscreen {
		return ErrUnsupported
	}
	el.fullscreen = true
	return nil
}

func (el *MemoryElement) ExitFullscreen() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.record("exit-fullscreen")
	el.fullscreen = false
	return nil
}

func (el *MemoryElement) IsFullscreen() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.fullscreen
}

func (el *MemoryElement) AddEventListener(t EventType, fn func()) ListenerID {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	el.listeners[t] = append(el.listeners[t], listener{id: el.nextID, fn: fn})
	return el.nextID
}

func (el *MemoryElement) RemoveEventListener(t EventType, id ListenerID) {
	el.mu.Lock()
	defer el.mu.Unlock()
	ls := el.listeners[t]
	for i, l := range ls {
		if l.id == id {
			el.listeners[t] = append(ls[:i], ls[i+1:]...)
			return
		}
	}
}

// ListenerCount reports how many listeners are attached for t.
func (el *MemoryElement) ListenerCount(t EventType) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.listeners[t])
}

// Emit queues an event without changing any element state.
func (el *MemoryElement) Emit(t EventType) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.pending = append(el.pending, t)
}

// Advance moves the clock while playing and queues a timeupdate, then
// flushes. At the end of the media the element stops, or restarts when
// looping.
func (el *MemoryElement) Advance(d time.Duration) {
	el.mu.Lock()
	if !el.paused {
		el.currentTime += d.Seconds() * el.playbackRate
		if dur := KnownDuration(el.duration); dur > 0 && el.currentTime >= dur {
			if el.loop {
				el.currentTime = 0
			} else {
				el.currentTime = dur
				el.paused = true
			}
		}
		el.pending = append(el.pending, EventTimeUpdate)
	}
	el.mu.Unlock()
	el.Flush()
}

// Flush delivers all queued events in order.
func (el *MemoryElement) Flush() {
	for {
		el.mu.Lock()
		if len(el.pending) == 0 {
			el.mu.Unlock()
			return
		}
		t := el.pending[0]
		el.pending = el.pending[1:]
		fns := make([]func(), 0, len(el.listeners[t]))
		for _, l := range el.listeners[t] {
			fns = append(fns, l.fn)
		}
		el.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}

var _ Element = (*MemoryElement)(nil)
var _ Container = (*MemoryElement)(nil)
