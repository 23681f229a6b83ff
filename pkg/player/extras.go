package player

import (
	"emperror.dev/errors"
	"github.com/je4/mediaplayer/pkg/media"
	"github.com/samber/lo"
)

// SpeedOptions are the multipliers offered by the speed menu.
var SpeedOptions = []float64{0.25, 0.5, 1, 1.5, 2}

type extras struct {
	caps          Capabilities
	fullscreen    bool
	speedMenuOpen bool
	rate          float64
}

func newExtras(caps Capabilities) *extras {
	return &extras{caps: caps, rate: 1}
}

// toggleFullscreen sets the state optimistically: a request that is refused
// later goes unnoticed. Only a synchronous refusal leaves it untouched.
func (x *extras) toggleFullscreen(c media.Container) error {
	if !x.caps.Fullscreen {
		return errors.Wrap(ErrCapabilityDisabled, "fullscreen")
	}
	if c == nil {
		return nil
	}
	if !c.IsFullscreen() {
		if err := c.RequestFullscreen(); err != nil {
			return errors.Wrap(err, "cannot request fullscreen")
		}
		x.fullscreen = true
		return nil
	}
	if err := c.ExitFullscreen(); err != nil {
		return errors.Wrap(err, "cannot exit fullscreen")
	}
	x.fullscreen = false
	return nil
}

func (x *extras) pictureInPicture(el media.Element) error {
	if !x.caps.PictureInPicture {
		return errors.Wrap(ErrCapabilityDisabled, "picture-in-picture")
	}
	return errors.Wrap(el.RequestPictureInPicture(), "cannot request picture-in-picture")
}

func (x *extras) toggleSpeedMenu() error {
	if !x.caps.Speed {
		return errors.Wrap(ErrCapabilityDisabled, "speed")
	}
	x.speedMenuOpen = !x.speedMenuOpen
	return nil
}

func (x *extras) selectSpeed(el media.Element, rate float64) error {
	if !x.caps.Speed {
		return errors.Wrap(ErrCapabilityDisabled, "speed")
	}
	if !lo.Contains(SpeedOptions, rate) {
		return errors.Wrapf(ErrUnsupportedRate, "%g", rate)
	}
	if err := el.SetPlaybackRate(rate); err != nil {
		return errors.Wrapf(err, "cannot set playback rate %g", rate)
	}
	x.rate = rate
	x.speedMenuOpen = false
	return nil
}

func (x *extras) fullscreenGlyph() Glyph {
	if !x.caps.Fullscreen {
		return ""
	}
	if x.fullscreen {
		return GlyphFullscreenExit
	}
	return GlyphFullscreen
}

func (x *extras) speedOptions() []float64 {
	if !x.caps.Speed {
		return nil
	}
	return SpeedOptions
}
