package player

import "github.com/samber/lo"

const defaultVolume = 60

// volumeController is the mute/unmute machine. While muted, level is 0 and
// remembered holds the level to restore.
type volumeController struct {
	level         int
	muted         bool
	remembered    int
	sliderVisible bool
}

func newVolumeController(muted bool) *volumeController {
	vc := &volumeController{
		level:      defaultVolume,
		muted:      muted,
		remembered: defaultVolume,
	}
	if muted {
		vc.level = 0
	}
	return vc
}

// toggleMute also flips the slider visibility.
func (vc *volumeController) toggleMute() {
	vc.sliderVisible = !vc.sliderVisible
	if !vc.muted {
		vc.remembered = vc.level
		vc.level = 0
		vc.muted = true
	} else {
		vc.level = vc.remembered
		vc.muted = false
	}
	vc.sweep()
}

// set is a manual slider change. It never touches remembered, so dragging
// to 0 is not a mute.
func (vc *volumeController) set(v int) {
	if vc.muted {
		vc.muted = false
	}
	vc.level = lo.Clamp(v, 0, 100)
	vc.sweep()
}

func (vc *volumeController) sweep() {
	if vc.level > 0 {
		vc.muted = false
	}
}

func (vc *volumeController) hover(visible bool) {
	vc.sliderVisible = visible
}

func (vc *volumeController) effective() float64 {
	if vc.muted {
		return 0
	}
	return float64(vc.level) / 100
}

func (vc *volumeController) glyph() Glyph {
	return VolumeGlyph(vc.level, vc.muted)
}

// VolumeGlyph picks the volume icon: muted or below 5, below 50, else full.
func VolumeGlyph(level int, muted bool) Glyph {
	switch {
	case muted || level < 5:
		return GlyphVolumeMute
	case level < 50:
		return GlyphVolumeDown
	default:
		return GlyphVolumeUp
	}
}
