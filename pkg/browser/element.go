package browser

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sync"

	"emperror.dev/errors"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/je4/mediaplayer/pkg/media"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// BindingName is the function the render page calls with a JSON snapshot of
// the media element whenever one of its events fires.
const BindingName = "mediaEvent"

const mediaJS = `document.getElementById("media")`
const containerJS = `document.getElementById("container")`

// snapshot is the payload of the binding. A duration of -1 stands for an
// unknown duration.
type snapshot struct {
	Type         string  `json:"type"`
	Player       string  `json:"player"`
	Paused       bool    `json:"paused"`
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	Volume       float64 `json:"volume"`
	PlaybackRate float64 `json:"playbackRate"`
	Fullscreen   bool    `json:"fullscreen"`
}

type listener struct {
	id media.ListenerID
	fn func()
}

// NewMediaElement drives the <audio>/<video> element of the page at render
// inside browser. Notifications are delivered in order from a single
// dispatcher goroutine which runs until Close.
func NewMediaElement(name string, browser *Browser, render *url.URL, logger zLogger.ZLogger) *MediaElement {
	el := &MediaElement{
		name:         name,
		browser:      browser,
		render:       render,
		logger:       logger,
		paused:       true,
		duration:     math.NaN(),
		volume:       1,
		playbackRate: 1,
		listeners:    make(map[media.EventType][]listener),
		queue:        make(chan media.EventType, 256),
		done:         make(chan struct{}),
	}
	browser.Listen(el.onTargetEvent)
	go el.dispatch()
	return el
}

type MediaElement struct {
	name    string
	browser *Browser
	render  *url.URL
	logger  zLogger.ZLogger

	mu           sync.Mutex
	paused       bool
	currentTime  float64
	duration     float64
	volume       float64
	playbackRate float64
	fullscreen   bool
	listeners    map[media.EventType][]listener
	nextID       media.ListenerID
	queue        chan media.EventType
	done         chan struct{}
	closeOnce    sync.Once
}

// Start launches the browser if necessary and opens the render page.
func (el *MediaElement) Start() error {
	if err := el.browser.Run(); err != nil {
		return errors.Wrap(err, "cannot start browser")
	}
	tasks := chromedp.Tasks{
		runtime.Enable(),
		runtime.AddBinding(BindingName),
		chromedp.Navigate(el.render.String()),
	}
	if err := el.browser.Tasks(tasks); err != nil {
		return errors.Wrapf(err, "cannot open render page %s", el.render.String())
	}
	el.logger.Info().Msgf("media element %s rendered at %s", el.name, el.render.String())
	return nil
}

// Close stops the dispatcher. Queued notifications are discarded.
func (el *MediaElement) Close() {
	el.closeOnce.Do(func() {
		close(el.done)
	})
}

func (el *MediaElement) onTargetEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name != BindingName {
			return
		}
		el.receive(ev.Payload)
	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails != nil {
			el.logger.Warn().Msgf("render page of %s: %s", el.name, ev.ExceptionDetails.Text)
		}
	}
}

// receive runs on the browser's event goroutine and must never block or call
// back into the browser.
func (el *MediaElement) receive(payload string) {
	var snap snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		el.logger.Error().Err(err).Msgf("cannot decode media event of %s", el.name)
		return
	}
	if snap.Player != "" && snap.Player != el.name {
		return
	}
	el.mu.Lock()
	el.paused = snap.Paused
	el.currentTime = snap.CurrentTime
	if snap.Duration < 0 {
		el.duration = math.NaN()
	} else {
		el.duration = snap.Duration
	}
	el.volume = snap.Volume
	el.playbackRate = snap.PlaybackRate
	el.fullscreen = snap.Fullscreen
	el.mu.Unlock()

	t := media.EventType(snap.Type)
	switch t {
	case media.EventTimeUpdate, media.EventLoadedMetadata:
	default:
		return
	}
	select {
	case el.queue <- t:
	default:
		el.logger.Warn().Msgf("media event queue of %s full, dropping %s", el.name, t)
	}
}

func (el *MediaElement) dispatch() {
	for {
		select {
		case <-el.done:
			return
		case t := <-el.queue:
			el.mu.Lock()
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
}

func (el *MediaElement) eval(format string, a ...interface{}) error {
	js := fmt.Sprintf(format, a...)
	return errors.Wrapf(el.browser.Tasks(chromedp.Tasks{chromedp.Evaluate(js, nil)}), "cannot evaluate %s", js)
}

func (el *MediaElement) Load(u string) error {
	quoted, err := json.Marshal(u)
	if err != nil {
		return errors.Wrapf(err, "cannot quote %s", u)
	}
	if err := el.eval(`(function(m){ m.src = %s; m.load(); })(%s)`, quoted, mediaJS); err != nil {
		return err
	}
	el.mu.Lock()
	el.paused = true
	el.currentTime = 0
	el.duration = math.NaN()
	el.mu.Unlock()
	return nil
}

// Play only reports evaluation errors. A refusal by the autoplay policy
// arrives later as a "playrejected" notification carrying paused=true.
func (el *MediaElement) Play() error {
	if err := el.eval(`void %s.play().catch(function(){ window.reportMedia("playrejected"); })`, mediaJS); err != nil {
		return err
	}
	el.mu.Lock()
	el.paused = false
	el.mu.Unlock()
	return nil
}

func (el *MediaElement) Pause() error {
	if err := el.eval(`%s.pause()`, mediaJS); err != nil {
		return err
	}
	el.mu.Lock()
	el.paused = true
	el.mu.Unlock()
	return nil
}

func (el *MediaElement) Paused() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.paused
}

func (el *MediaElement) CurrentTime() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.currentTime
}

func (el *MediaElement) SetCurrentTime(t float64) error {
	if err := el.eval(`%s.currentTime = %g`, mediaJS, t); err != nil {
		return err
	}
	el.mu.Lock()
	el.currentTime = t
	el.mu.Unlock()
	return nil
}

func (el *MediaElement) Duration() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.duration
}

func (el *MediaElement) Volume() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.volume
}

func (el *MediaElement) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return errors.Errorf("volume %g out of range [0, 1]", v)
	}
	if err := el.eval(`%s.volume = %g`, mediaJS, v); err != nil {
		return err
	}
	el.mu.Lock()
	el.volume = v
	el.mu.Unlock()
	return nil
}

func (el *MediaElement) PlaybackRate() float64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.playbackRate
}

func (el *MediaElement) SetPlaybackRate(rate float64) error {
	if err := el.eval(`%s.playbackRate = %g`, mediaJS, rate); err != nil {
		return err
	}
	el.mu.Lock()
	el.playbackRate = rate
	el.mu.Unlock()
	return nil
}

func (el *MediaElement) SetMuted(muted bool) error {
	return el.eval(`%s.muted = %t`, mediaJS, muted)
}

func (el *MediaElement) SetLoop(loop bool) error {
	return el.eval(`%s.loop = %t`, mediaJS, loop)
}

func (el *MediaElement) SetAutoPlay(autoPlay bool) error {
	return el.eval(`%s.autoplay = %t`, mediaJS, autoPlay)
}

func (el *MediaElement) RequestPictureInPicture() error {
	return el.eval(`(function(m){ if (m.requestPictureInPicture) { m.requestPictureInPicture().catch(function(){}); } })(%s)`, mediaJS)
}

func (el *MediaElement) RequestFullscreen() error {
	if err := el.eval(`void %s.requestFullscreen().catch(function(){})`, containerJS); err != nil {
		return err
	}
	el.mu.Lock()
	el.fullscreen = true
	el.mu.Unlock()
	return nil
}

func (el *MediaElement) ExitFullscreen() error {
	if err := el.eval(`if (document.fullscreenElement) { void document.exitFullscreen().catch(function(){}); }`); err != nil {
		return err
	}
	el.mu.Lock()
	el.fullscreen = false
	el.mu.Unlock()
	return nil
}

func (el *MediaElement) IsFullscreen() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.fullscreen
}

func (el *MediaElement) AddEventListener(t media.EventType, fn func()) media.ListenerID {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	el.listeners[t] = append(el.listeners[t], listener{id: el.nextID, fn: fn})
	return el.nextID
}

func (el *MediaElement) RemoveEventListener(t media.EventType, id media.ListenerID) {
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

func (el *MediaElement) Screenshot(width int, height int, sigma float64) ([]byte, string, error) {
	return el.browser.Screenshot(width, height, sigma)
}

var _ media.Element = (*MediaElement)(nil)
var _ media.Container = (*MediaElement)(nil)
var _ media.Snapshotter = (*MediaElement)(nil)
