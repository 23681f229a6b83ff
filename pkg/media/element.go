package media

import (
	"math"

	"emperror.dev/errors"
)

type EventType string

const EventTimeUpdate EventType = "timeupdate"
const EventLoadedMetadata EventType = "loadedmetadata"

// ListenerID identifies a registered listener for later removal.
type ListenerID uint64

// ErrUnsupported is returned by handles which cannot serve a request at all
// (e.g. fullscreen on an audio-only surface).
var ErrUnsupported = errors.New("not supported")

// Element is the native playback primitive owned by exactly one player.
// Its getters report ground truth; commands may complete asynchronously and
// their outcome is only observable through later notifications.
type Element interface {
	Load(url string) error
	Play() error
	Pause() error
	Paused() bool
	CurrentTime() float64
	SetCurrentTime(t float64) error
	// Duration returns NaN while no metadata is loaded.
	Duration() float64
	Volume() float64
	SetVolume(v float64) error
	PlaybackRate() float64
	SetPlaybackRate(rate float64) error
	SetMuted(muted bool) error
	SetLoop(loop bool) error
	SetAutoPlay(autoPlay bool) error
	RequestPictureInPicture() error
	AddEventListener(t EventType, fn func()) ListenerID
	RemoveEventListener(t EventType, id ListenerID)
}

// Container is the surface around the element that goes fullscreen, so
// overlay controls stay visible.
type Container interface {
	RequestFullscreen() error
	ExitFullscreen() error
	IsFullscreen() bool
}

// Snapshotter is implemented by handles that can render a picture of the
// player surface.
type Snapshotter interface {
	Screenshot(width int, height int, sigma float64) ([]byte, string, error)
}

// KnownDuration maps the element's duration to a usable bound: 0 while the
// duration is unknown, negative or infinite.
func KnownDuration(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	return d
}
