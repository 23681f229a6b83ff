package player

import (
	"math"

	"emperror.dev/errors"
	"github.com/samber/lo"
)

const (
	ActionTogglePlay       = "toggle-play"
	ActionSeek             = "seek"
	ActionVolume           = "volume"
	ActionToggleMute       = "toggle-mute"
	ActionHoverVolume      = "hover-volume"
	ActionLeaveVolume      = "leave-volume"
	ActionPointerDown      = "pointer-down"
	ActionPointerMove      = "pointer-move"
	ActionPointerUp        = "pointer-up"
	ActionToggleFullscreen = "toggle-fullscreen"
	ActionPictureInPicture = "pip"
	ActionToggleSpeedMenu  = "toggle-speed-menu"
	ActionSpeed            = "speed"
)

// Intent is a user interaction as delivered by a control surface. Raw holds
// the unparsed seek bar value; Bounds is only used by pointer-down.
type Intent struct {
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"`
	Raw    string  `json:"raw,omitempty"`
	Bounds Bounds  `json:"bounds"`
}

func (p *Player) Apply(intent Intent) error {
	switch intent.Action {
	case ActionTogglePlay:
		return p.TogglePlay()
	case ActionSeek:
		if intent.Raw != "" {
			return p.Seek(intent.Raw)
		}
		return p.SeekTo(intent.Value)
	case ActionVolume:
		if math.IsNaN(intent.Value) {
			return errors.WithStack(ErrInvalidVolume)
		}
		return p.SetVolume(int(math.Floor(lo.Clamp(intent.Value, 0, 100))))
	case ActionToggleMute:
		return p.ToggleMute()
	case ActionHoverVolume:
		return p.HoverVolume(true)
	case ActionLeaveVolume:
		return p.HoverVolume(false)
	case ActionPointerDown:
		p.BeginVolumeDrag(p.document, intent.Bounds, intent.Value)
		return nil
	case ActionPointerMove:
		p.document.Dispatch(PointerEvent{Kind: PointerMove, X: intent.Value})
		return nil
	case ActionPointerUp:
		p.document.Dispatch(PointerEvent{Kind: PointerUp, X: intent.Value})
		return nil
	case ActionToggleFullscreen:
		return p.ToggleFullscreen()
	case ActionPictureInPicture:
		return p.PictureInPicture()
	case ActionToggleSpeedMenu:
		return p.ToggleSpeedMenu()
	case ActionSpeed:
		return p.SelectSpeed(intent.Value)
	default:
		return errors.Wrapf(ErrUnknownAction, "%q", intent.Action)
	}
}
