package player

import (
	"context"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/je4/mediaplayer/pkg/media"
	"github.com/je4/mediaplayer/pkg/source"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func videoConfig() Config {
	return Config{
		Name:          "video01",
		Kind:          KindVideo,
		DefaultSource: "default.mp4",
		MiniPlayer:    true,
		FullScreen:    true,
		Speed:         true,
	}
}

func mountPlayer(t *testing.T, cfg Config, src source.Source) (*Player, *media.MemoryElement) {
	t.Helper()
	el := media.NewMemoryElement()
	el.SetSourceDuration("a.mp3", 120)
	el.SetSourceDuration("default.mp4", 600)
	p := New(cfg, el, el, src, testLogger())
	require.NoError(t, p.Mount(context.Background()))
	t.Cleanup(p.Unmount)
	p.WaitSource()
	el.Flush()
	return p, el
}

func TestInitialState(t *testing.T) {
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, DefaultSource: "a.mp3"}, nil)
	st := p.State()
	assert.False(t, st.Playing)
	assert.Equal(t, 60, st.Volume)
	assert.Equal(t, 60, st.PreviousVolume)
	assert.False(t, st.Muted)
	assert.Equal(t, 1.0, st.PlaybackRate)
	assert.Equal(t, 120.0, st.Duration)
	assert.InDelta(t, 0.6, el.Volume(), 1e-9)
	assert.Equal(t, "a.mp3", el.Source())

	muted, mutedEl := mountPlayer(t, Config{Name: "video02", Kind: KindVideo, Muted: true, AutoPlay: true}, nil)
	st = muted.State()
	assert.True(t, st.Playing)
	assert.True(t, st.Muted)
	assert.Equal(t, 0, st.Volume)
	assert.True(t, mutedEl.Muted())
	assert.Equal(t, 0.0, mutedEl.Volume())
}

func TestVolumeLevels(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	for v := 0; v <= 100; v++ {
		require.NoError(t, p.SetVolume(v))
		assert.InDelta(t, float64(v)/100, el.Volume(), 1e-9, "volume %d", v)
		view := p.View()
		switch {
		case v < 5:
			assert.Equal(t, GlyphVolumeMute, view.VolumeGlyph, "volume %d", v)
		case v < 50:
			assert.Equal(t, GlyphVolumeDown, view.VolumeGlyph, "volume %d", v)
		default:
			assert.Equal(t, GlyphVolumeUp, view.VolumeGlyph, "volume %d", v)
		}
		assert.False(t, view.State.Muted)
	}
}

func TestMuteUnmuteRestoresLevel(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	for level := 0; level <= 100; level += 7 {
		require.NoError(t, p.SetVolume(level))
		require.NoError(t, p.ToggleMute())
		st := p.State()
		assert.True(t, st.Muted)
		assert.Equal(t, level, st.PreviousVolume)
		assert.Equal(t, 0.0, el.Volume())
		assert.True(t, el.Muted())

		require.NoError(t, p.ToggleMute())
		st = p.State()
		assert.False(t, st.Muted)
		assert.Equal(t, level, st.Volume)
		assert.InDelta(t, float64(level)/100, el.Volume(), 1e-9)
	}
}

func TestMuteScenario(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	require.NoError(t, p.SetVolume(80))
	require.NoError(t, p.ToggleMute())
	assert.Equal(t, 0.0, el.Volume())
	assert.Equal(t, 80, p.State().PreviousVolume)
	assert.Equal(t, GlyphVolumeMute, p.View().VolumeGlyph)

	require.NoError(t, p.ToggleMute())
	assert.InDelta(t, 0.8, el.Volume(), 1e-9)
	assert.Equal(t, GlyphVolumeUp, p.View().VolumeGlyph)
}

func TestDragToZeroIsNotMute(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	doc := p.Document()
	bounds := Bounds{Left: 100, Width: 200}

	p.BeginVolumeDrag(doc, bounds, 250)
	assert.Equal(t, 75, p.State().Volume)
	doc.Dispatch(PointerEvent{Kind: PointerMove, X: 50})
	doc.Dispatch(PointerEvent{Kind: PointerUp, X: 50})

	st := p.State()
	assert.Equal(t, 0, st.Volume)
	assert.False(t, st.Muted)
	assert.Equal(t, 60, st.PreviousVolume)
	assert.Equal(t, 0.0, el.Volume())
	assert.Equal(t, GlyphVolumeMute, p.View().VolumeGlyph)

	// mute at Unmuted(0) remembers 0, unmute restores nothing
	require.NoError(t, p.ToggleMute())
	st = p.State()
	assert.True(t, st.Muted)
	assert.Equal(t, 0, st.PreviousVolume)
	require.NoError(t, p.ToggleMute())
	st = p.State()
	assert.False(t, st.Muted)
	assert.Equal(t, 0, st.Volume)
	assert.Equal(t, 0.0, el.Volume())
}

func TestSliderUnmutes(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	require.NoError(t, p.ToggleMute())
	require.True(t, p.State().Muted)

	require.NoError(t, p.SetVolume(30))
	st := p.State()
	assert.False(t, st.Muted)
	assert.Equal(t, 30, st.Volume)
	assert.Equal(t, 60, st.PreviousVolume)
	assert.InDelta(t, 0.3, el.Volume(), 1e-9)
	assert.False(t, el.Muted())
}

func TestMuteTogglesSlider(t *testing.T) {
	p, _ := mountPlayer(t, videoConfig(), nil)
	require.NoError(t, p.HoverVolume(true))
	assert.True(t, p.View().VolumeSliderVisible)
	require.NoError(t, p.ToggleMute())
	assert.False(t, p.View().VolumeSliderVisible)
	require.NoError(t, p.HoverVolume(true))
	require.NoError(t, p.HoverVolume(false))
	assert.False(t, p.View().VolumeSliderVisible)
}

func TestSeek(t *testing.T) {
	src := source.NewStatic("a.mp3")
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio}, src)

	for _, playing := range []bool{false, true} {
		if playing {
			require.NoError(t, p.TogglePlay())
		}
		for _, target := range []float64{0, 12.5, 60, 120} {
			require.NoError(t, p.SeekTo(target))
			assert.Equal(t, target, p.State().CurrentTime)
			assert.Equal(t, target, el.CurrentTime())
			el.Flush()
			assert.Equal(t, target, p.View().SeekValue)
		}
	}

	require.NoError(t, p.Seek("42.25"))
	assert.Equal(t, 42.25, el.CurrentTime())

	err := p.Seek("abc")
	assert.True(t, errors.Is(err, ErrInvalidSeek))
	assert.Equal(t, 42.25, p.State().CurrentTime)

	require.NoError(t, p.SeekTo(500))
	assert.Equal(t, 120.0, el.CurrentTime())
}

func TestSeekWithoutMetadata(t *testing.T) {
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, DefaultSource: "unknown.mp3"}, nil)
	view := p.View()
	assert.Equal(t, 0.0, view.SeekMax)
	assert.Equal(t, "00:00 / 00:00", view.TimeLabel)

	require.NoError(t, p.SeekTo(30))
	assert.Equal(t, 0.0, el.CurrentTime())
}

func TestSeekBackwardAccepted(t *testing.T) {
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, DefaultSource: "a.mp3"}, nil)
	require.NoError(t, p.TogglePlay())
	el.Advance(90 * time.Second)
	require.Equal(t, 90.0, p.State().CurrentTime)

	require.NoError(t, p.SeekTo(10))
	el.Flush()
	assert.Equal(t, 10.0, p.State().CurrentTime)
	el.Advance(5 * time.Second)
	assert.Equal(t, 15.0, p.State().CurrentTime)
}

func TestEndOfStream(t *testing.T) {
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, DefaultSource: "a.mp3"}, nil)
	require.NoError(t, p.TogglePlay())
	require.True(t, p.State().Playing)

	el.Advance(200 * time.Second)
	st := p.State()
	assert.False(t, st.Playing)
	assert.Equal(t, 120.0, st.CurrentTime)
	assert.Equal(t, GlyphPlay, p.View().PlayGlyph)
}

func TestEndOfStreamAfterAutoplay(t *testing.T) {
	src := source.NewStatic("a.mp3")
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, AutoPlay: true}, src)
	require.True(t, p.State().Playing)
	require.False(t, el.Paused())

	el.Advance(121 * time.Second)
	assert.False(t, p.State().Playing)
}

func TestEndOfStreamOnLateMetadata(t *testing.T) {
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, DefaultSource: "a.mp3"}, nil)
	require.NoError(t, p.TogglePlay())
	require.NoError(t, el.SetCurrentTime(120))
	el.Emit(media.EventLoadedMetadata)
	el.Flush()
	assert.False(t, p.State().Playing)
}

func TestPlaybackScenario(t *testing.T) {
	src := source.NewStatic("a.mp3")
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, DefaultSource: "fallback.mp3"}, src)
	assert.Equal(t, "a.mp3", el.Source())
	assert.Equal(t, GlyphPlay, p.View().PlayGlyph)

	require.NoError(t, p.TogglePlay())
	assert.True(t, p.State().Playing)
	assert.Contains(t, el.Calls(), "play")
	assert.Equal(t, GlyphPause, p.View().PlayGlyph)

	el.Advance(30 * time.Second)
	view := p.View()
	assert.Equal(t, 30.0, view.State.CurrentTime)
	assert.Equal(t, 120.0, view.State.Duration)
	assert.Equal(t, "00:30 / 02:00", view.TimeLabel)
	assert.Equal(t, 120.0, view.SeekMax)

	require.NoError(t, p.TogglePlay())
	assert.False(t, p.State().Playing)
	assert.Equal(t, "pause", el.Calls()[len(el.Calls())-1])
}

func TestSourceChangeReloads(t *testing.T) {
	src := source.NewStatic("a.mp3")
	p, el := mountPlayer(t, Config{Name: "audio01", Kind: KindAudio, DefaultSource: "fallback.mp3", AutoPlay: true}, src)
	assert.Equal(t, "a.mp3", p.View().Source)

	src.Set("b.mp3")
	p.WaitSource()
	assert.Equal(t, "b.mp3", el.Source())
	assert.True(t, p.State().Playing)

	src.Set("")
	p.WaitSource()
	assert.Equal(t, "fallback.mp3", el.Source())

	src.Fail(errors.New("datasource unavailable"))
	p.WaitSource()
	assert.Equal(t, "fallback.mp3", el.Source())
}

func TestAutoplayRejectedKeepsBelief(t *testing.T) {
	el := media.NewMemoryElement()
	el.RejectPlay = true
	src := source.NewStatic("a.mp3")
	p := New(Config{Name: "audio01", Kind: KindAudio, AutoPlay: true}, el, nil, src, testLogger())
	require.NoError(t, p.Mount(context.Background()))
	defer p.Unmount()
	p.WaitSource()

	assert.True(t, p.State().Playing)
	assert.True(t, el.Paused())

	require.NoError(t, p.TogglePlay())
	assert.False(t, p.State().Playing)
	assert.Equal(t, "play", el.Calls()[len(el.Calls())-1])
}

func TestMountUnmountListeners(t *testing.T) {
	src := source.NewStatic("a.mp3")
	el := media.NewMemoryElement()
	p := New(videoConfig(), el, el, src, testLogger())

	require.NoError(t, p.Mount(context.Background()))
	require.NoError(t, p.Mount(context.Background()))
	p.WaitSource()
	assert.Equal(t, 1, el.ListenerCount(media.EventTimeUpdate))
	assert.Equal(t, 1, el.ListenerCount(media.EventLoadedMetadata))
	assert.Equal(t, 1, src.Listeners())

	p.BeginVolumeDrag(p.Document(), Bounds{Width: 100}, 10)
	require.Equal(t, 3, p.Document().ListenerCount())

	p.Unmount()
	assert.Equal(t, 0, el.ListenerCount(media.EventTimeUpdate))
	assert.Equal(t, 0, el.ListenerCount(media.EventLoadedMetadata))
	assert.Equal(t, 0, src.Listeners())
	assert.Equal(t, 0, p.Document().ListenerCount())
}

type slowSource struct {
	source.Static
	release chan struct{}
}

func (s *slowSource) GetValue(ctx context.Context) (string, error) {
	<-s.release
	return "late.mp3", nil
}

func TestLateFetchAfterUnmountDropped(t *testing.T) {
	src := &slowSource{release: make(chan struct{})}
	el := media.NewMemoryElement()
	p := New(Config{Name: "audio01", Kind: KindAudio}, el, nil, src, testLogger())
	require.NoError(t, p.Mount(context.Background()))
	p.Unmount()
	close(src.release)
	p.WaitSource()
	assert.Equal(t, "", el.Source())
	assert.Equal(t, "", p.View().Source)
}

func TestOnChange(t *testing.T) {
	p, _ := mountPlayer(t, videoConfig(), nil)
	var views []View
	p.OnChange(func(v View) {
		views = append(views, v)
	})
	require.NoError(t, p.TogglePlay())
	require.NoError(t, p.SetVolume(10))
	assert.Error(t, p.SelectSpeed(3))

	require.Len(t, views, 2)
	assert.True(t, views[0].State.Playing)
	assert.Equal(t, 10, views[1].State.Volume)
}
