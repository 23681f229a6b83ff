package player

import (
	"context"
	"sync"

	"emperror.dev/errors"
	"github.com/je4/mediaplayer/pkg/media"
	"github.com/je4/mediaplayer/pkg/source"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// New creates a player for one media element. src may be nil, in which case
// the configured default source is loaded on mount. container may be nil for
// players without fullscreen.
func New(cfg Config, el media.Element, container media.Container, src source.Source, logger zLogger.ZLogger) *Player {
	if cfg.Kind == "" {
		cfg.Kind = KindAudio
	}
	p := &Player{
		cfg:       cfg,
		el:        el,
		container: container,
		logger:    logger,
		document:  NewDocument(),
		playback:  &playbackController{},
		volume:    newVolumeController(cfg.Muted),
		progress:  newProgressController(cfg.Kind),
		extras:    newExtras(cfg.Capabilities()),
	}
	if cfg.AutoPlay {
		p.playback.state = Playing
	}
	if src != nil {
		p.adapter = source.NewAdapter(cfg.Name, src, cfg.DefaultSource, p.resolve, logger)
	}
	return p
}

type Player struct {
	mu        sync.Mutex
	cfg       Config
	el        media.Element
	container media.Container
	adapter   *source.Adapter
	logger    zLogger.ZLogger
	document  *Document
	drag      *VolumeDrag

	playback *playbackController
	volume   *volumeController
	progress *progressController
	extras   *extras

	url       string
	mounted   bool
	metaID    media.ListenerID
	timeID    media.ListenerID
	observers []func(View)
}

func (p *Player) Name() string {
	return p.cfg.Name
}

func (p *Player) Element() media.Element {
	return p.el
}

// Document is the pointer surface used for volume drags.
func (p *Player) Document() *Document {
	return p.document
}

// OnChange registers fn for every committed state change. fn runs outside
// the player's lock on the goroutine that caused the change.
func (p *Player) OnChange(fn func(View)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// update runs fn under the lock and publishes the new view if fn succeeded.
func (p *Player) update(fn func() error) error {
	p.mu.Lock()
	err := fn()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	view := p.view()
	observers := append([]func(View){}, p.observers...)
	p.mu.Unlock()
	for _, observer := range observers {
		observer(view)
	}
	return nil
}

// Mount applies the widget attributes to the element, attaches the
// notification listeners and binds the source.
func (p *Player) Mount(ctx context.Context) error {
	if err := p.update(func() error {
		if p.mounted {
			return nil
		}
		if err := p.el.SetLoop(p.cfg.Loop); err != nil {
			return errors.Wrapf(err, "[%s] cannot set loop", p.cfg.Name)
		}
		if err := p.el.SetAutoPlay(p.cfg.AutoPlay); err != nil {
			return errors.Wrapf(err, "[%s] cannot set autoplay", p.cfg.Name)
		}
		p.applyVolume()
		p.metaID = p.el.AddEventListener(media.EventLoadedMetadata, p.loadedMetadata)
		p.timeID = p.el.AddEventListener(media.EventTimeUpdate, p.timeUpdate)
		p.mounted = true
		if p.adapter == nil {
			p.load(p.cfg.DefaultSource)
		}
		p.logger.Debug().Msgf("[%s] %s player mounted", p.cfg.Name, p.cfg.Kind)
		return nil
	}); err != nil {
		return err
	}
	if p.adapter != nil {
		p.adapter.Mount(ctx)
	}
	return nil
}

// Unmount releases every subscription acquired by Mount.
func (p *Player) Unmount() {
	if p.adapter != nil {
		p.adapter.Unmount()
	}
	p.mu.Lock()
	drag := p.drag
	p.drag = nil
	if p.mounted {
		p.el.RemoveEventListener(media.EventLoadedMetadata, p.metaID)
		p.el.RemoveEventListener(media.EventTimeUpdate, p.timeID)
		p.mounted = false
		p.logger.Debug().Msgf("[%s] player unmounted", p.cfg.Name)
	}
	p.mu.Unlock()
	if drag != nil {
		drag.Release()
	}
}

// WaitSource blocks until every source fetch started so far has resolved.
func (p *Player) WaitSource() {
	if p.adapter != nil {
		p.adapter.Wait()
	}
}

func (p *Player) resolve(url string) {
	_ = p.update(func() error {
		if !p.mounted {
			p.logger.Debug().Msgf("[%s] dropping source %s resolved after unmount", p.cfg.Name, url)
			return ErrNotMounted
		}
		p.load(url)
		if p.cfg.AutoPlay {
			p.playback.state = Playing
		}
		return nil
	})
}

func (p *Player) load(url string) {
	p.url = url
	if url == "" {
		return
	}
	if err := p.el.Load(url); err != nil {
		p.logger.Warn().Err(err).Msgf("[%s] cannot load %s", p.cfg.Name, url)
	}
}

func (p *Player) loadedMetadata() {
	_ = p.update(func() error {
		p.progress.loadedMetadata(p.el)
		p.playback.reconcile(p.progress.currentTime, p.progress.duration)
		return nil
	})
}

func (p *Player) timeUpdate() {
	_ = p.update(func() error {
		p.progress.timeUpdate(p.el)
		p.playback.reconcile(p.progress.currentTime, p.progress.duration)
		return nil
	})
}

// TogglePlay handles the play/pause button and clicks on the video surface.
func (p *Player) TogglePlay() error {
	return p.update(func() error {
		if err := p.playback.toggle(p.el); err != nil {
			p.logger.Debug().Err(err).Msgf("[%s] play/pause command failed", p.cfg.Name)
		}
		return nil
	})
}

// Seek commits a raw seek bar value.
func (p *Player) Seek(raw string) error {
	t, err := ParseSeek(raw)
	if err != nil {
		return err
	}
	return p.SeekTo(t)
}

func (p *Player) SeekTo(t float64) error {
	return p.update(func() error {
		if err := p.progress.seekTo(p.el, t); err != nil {
			p.logger.Warn().Err(err).Msgf("[%s] cannot seek to %g", p.cfg.Name, t)
		}
		return nil
	})
}

// SetVolume is a manual slider change in percent.
func (p *Player) SetVolume(v int) error {
	return p.update(func() error {
		p.volume.set(v)
		p.applyVolume()
		return nil
	})
}

func (p *Player) ToggleMute() error {
	return p.update(func() error {
		p.volume.toggleMute()
		p.applyVolume()
		return nil
	})
}

// HoverVolume shows the slider on enter/focus and hides it on leave.
func (p *Player) HoverVolume(visible bool) error {
	return p.update(func() error {
		p.volume.hover(visible)
		return nil
	})
}

// BeginVolumeDrag captures pointer events on surface until the pointer is
// released. The press position already sets the volume.
func (p *Player) BeginVolumeDrag(surface PointerSurface, bounds Bounds, x float64) *VolumeDrag {
	drag := newVolumeDrag(surface, bounds, func(v int) {
		_ = p.SetVolume(v)
	})
	p.mu.Lock()
	previous := p.drag
	p.drag = drag
	p.mu.Unlock()
	if previous != nil {
		previous.Release()
	}
	_ = p.SetVolume(VolumeAt(bounds, x))
	return drag
}

func (p *Player) applyVolume() {
	if err := p.el.SetVolume(p.volume.effective()); err != nil {
		p.logger.Warn().Err(err).Msgf("[%s] cannot set volume", p.cfg.Name)
	}
	if err := p.el.SetMuted(p.volume.muted); err != nil {
		p.logger.Warn().Err(err).Msgf("[%s] cannot set muted", p.cfg.Name)
	}
}

func (p *Player) ToggleFullscreen() error {
	return p.update(func() error {
		err := p.extras.toggleFullscreen(p.container)
		if errors.Is(err, ErrCapabilityDisabled) {
			return err
		}
		if err != nil {
			p.logger.Debug().Err(err).Msgf("[%s] fullscreen request ignored", p.cfg.Name)
		}
		return nil
	})
}

func (p *Player) PictureInPicture() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.extras.pictureInPicture(p.el)
	if errors.Is(err, ErrCapabilityDisabled) {
		return err
	}
	if err != nil {
		p.logger.Debug().Err(err).Msgf("[%s] picture-in-picture request ignored", p.cfg.Name)
	}
	return nil
}

func (p *Player) ToggleSpeedMenu() error {
	return p.update(func() error {
		return p.extras.toggleSpeedMenu()
	})
}

func (p *Player) SelectSpeed(rate float64) error {
	return p.update(func() error {
		return p.extras.selectSpeed(p.el, rate)
	})
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state()
}

func (p *Player) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view()
}

func (p *Player) state() State {
	return State{
		Playing:        p.playback.state == Playing,
		CurrentTime:    p.progress.currentTime,
		Duration:       p.progress.duration,
		Volume:         p.volume.level,
		Muted:          p.volume.muted,
		PreviousVolume: p.volume.remembered,
		PlaybackRate:   p.extras.rate,
		Fullscreen:     p.extras.fullscreen,
	}
}

func (p *Player) view() View {
	return View{
		Name:                p.cfg.Name,
		Kind:                p.cfg.Kind,
		Source:              p.url,
		State:               p.state(),
		PlayGlyph:           p.playback.glyph(),
		SeekMax:             media.KnownDuration(p.el.Duration()),
		SeekValue:           p.progress.barValue,
		SeekStep:            p.progress.step,
		TimeLabel:           p.progress.label(),
		VolumeGlyph:         p.volume.glyph(),
		VolumeSliderVisible: p.volume.sliderVisible,
		FullscreenGlyph:     p.extras.fullscreenGlyph(),
		SpeedMenuOpen:       p.extras.speedMenuOpen,
		SpeedOptions:        p.extras.speedOptions(),
		Capabilities:        p.extras.caps,
	}
}
