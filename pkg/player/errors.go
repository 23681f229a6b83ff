package player

import "emperror.dev/errors"

var (
	ErrCapabilityDisabled = errors.New("capability disabled")
	ErrUnsupportedRate    = errors.New("unsupported playback rate")
	ErrInvalidSeek        = errors.New("invalid seek position")
	ErrInvalidVolume      = errors.New("invalid volume")
	ErrUnknownAction      = errors.New("unknown action")
	ErrNotMounted         = errors.New("player not mounted")
)
