package player

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/je4/mediaplayer/pkg/media"
	"github.com/samber/lo"
)

// progressController tracks the displayed time and the seek bar. The bar is
// only written on timeupdate and on commit, never re-derived per frame.
type progressController struct {
	currentTime float64
	duration    float64
	barValue    float64
	step        float64
}

func newProgressController(kind Kind) *progressController {
	pc := &progressController{step: 1}
	if kind == KindVideo {
		pc.step = 0.01
	}
	return pc
}

func (pc *progressController) loadedMetadata(el media.Element) {
	pc.currentTime = el.CurrentTime()
	if d := media.KnownDuration(el.Duration()); d > 0 {
		pc.duration = d
	}
}

// timeUpdate accepts whatever the element reports, including a jump back
// after a seek.
func (pc *progressController) timeUpdate(el media.Element) {
	t := el.CurrentTime()
	pc.currentTime = t
	pc.barValue = t
	if d := media.KnownDuration(el.Duration()); d > 0 {
		pc.duration = d
	}
}

func (pc *progressController) seekTo(el media.Element, t float64) error {
	t = lo.Clamp(t, 0, media.KnownDuration(el.Duration()))
	pc.currentTime = t
	pc.barValue = t
	return errors.WithStack(el.SetCurrentTime(t))
}

func (pc *progressController) label() string {
	return fmt.Sprintf("%s / %s", FormatTime(pc.currentTime), FormatTime(pc.duration))
}

// ParseSeek reads the raw seek bar value.
func ParseSeek(raw string) (float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, errors.Wrapf(ErrInvalidSeek, "cannot parse %q", raw)
	}
	return t, nil
}

// maxFormatSeconds is the largest whole second a float64 holds exactly.
const maxFormatSeconds = 1 << 53

// FormatTime renders seconds as H:MM:SS, or MM:SS below one hour. Negative
// and non-finite input renders as 00:00; larger values are capped at
// maxFormatSeconds.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00"
	}
	total := int64(math.Floor(math.Min(seconds, maxFormatSeconds)))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
