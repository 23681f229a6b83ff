package player

import "github.com/je4/mediaplayer/pkg/media"

type playbackController struct {
	state PlaybackState
}

// toggle picks the command from the element's own paused flag but flips the
// belief, so the two can drift apart when play() is refused.
func (pc *playbackController) toggle(el media.Element) error {
	var err error
	if el.Paused() {
		err = el.Play()
	} else {
		err = el.Pause()
	}
	if pc.state == Playing {
		pc.state = Paused
	} else {
		pc.state = Playing
	}
	return err
}

// reconcile forces Paused once the end of the media is reached. It returns
// true if the state changed.
func (pc *playbackController) reconcile(currentTime, duration float64) bool {
	if duration > 0 && currentTime == duration && pc.state == Playing {
		pc.state = Paused
		return true
	}
	return false
}

func (pc *playbackController) glyph() Glyph {
	if pc.state == Playing {
		return GlyphPause
	}
	return GlyphPlay
}
