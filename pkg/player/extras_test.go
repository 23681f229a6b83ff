package player

import (
	"context"
	"testing"

	"github.com/je4/mediaplayer/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioHasNoExtras(t *testing.T) {
	cfg := Config{Name: "audio01", Kind: KindAudio, MiniPlayer: true, FullScreen: true, Speed: true}
	p, el := mountPlayer(t, cfg, nil)

	assert.ErrorIs(t, p.ToggleFullscreen(), ErrCapabilityDisabled)
	assert.ErrorIs(t, p.PictureInPicture(), ErrCapabilityDisabled)
	assert.ErrorIs(t, p.ToggleSpeedMenu(), ErrCapabilityDisabled)
	assert.ErrorIs(t, p.SelectSpeed(2), ErrCapabilityDisabled)
	assert.False(t, el.IsFullscreen())
	assert.Equal(t, 1.0, el.PlaybackRate())

	view := p.View()
	assert.Equal(t, Capabilities{}, view.Capabilities)
	assert.Empty(t, view.SpeedOptions)
	assert.Empty(t, view.FullscreenGlyph)
}

func TestFullscreen(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	assert.Equal(t, GlyphFullscreen, p.View().FullscreenGlyph)

	require.NoError(t, p.ToggleFullscreen())
	assert.True(t, p.State().Fullscreen)
	assert.True(t, el.IsFullscreen())
	assert.Equal(t, GlyphFullscreenExit, p.View().FullscreenGlyph)

	require.NoError(t, p.ToggleFullscreen())
	assert.False(t, p.State().Fullscreen)
	assert.False(t, el.IsFullscreen())
}

func TestFullscreenUnsupportedIgnored(t *testing.T) {
	el := media.NewMemoryElement()
	el.NoFullscreen = true
	p := New(videoConfig(), el, el, nil, testLogger())
	require.NoError(t, p.Mount(context.Background()))
	defer p.Unmount()

	require.NoError(t, p.ToggleFullscreen())
	assert.False(t, p.State().Fullscreen)
	assert.Contains(t, el.Calls(), "fullscreen")
}

func TestFullscreenDisabled(t *testing.T) {
	cfg := videoConfig()
	cfg.FullScreen = false
	p, el := mountPlayer(t, cfg, nil)
	assert.ErrorIs(t, p.ToggleFullscreen(), ErrCapabilityDisabled)
	assert.NotContains(t, el.Calls(), "fullscreen")
	assert.True(t, p.View().Capabilities.PictureInPicture)
}

func TestPictureInPicture(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	require.NoError(t, p.PictureInPicture())
	assert.Contains(t, el.Calls(), "pip")

	el.NoPictureInPicture = true
	require.NoError(t, p.PictureInPicture())
}

func TestSpeedMenu(t *testing.T) {
	p, el := mountPlayer(t, videoConfig(), nil)
	assert.Equal(t, SpeedOptions, p.View().SpeedOptions)

	require.NoError(t, p.ToggleSpeedMenu())
	assert.True(t, p.View().SpeedMenuOpen)

	for _, rate := range SpeedOptions {
		if !p.View().SpeedMenuOpen {
			require.NoError(t, p.ToggleSpeedMenu())
		}
		require.NoError(t, p.SelectSpeed(rate))
		assert.Equal(t, rate, el.PlaybackRate())
		assert.Equal(t, rate, p.State().PlaybackRate)
		assert.False(t, p.View().SpeedMenuOpen)
	}

	require.NoError(t, p.ToggleSpeedMenu())
	assert.ErrorIs(t, p.SelectSpeed(3), ErrUnsupportedRate)
	assert.True(t, p.View().SpeedMenuOpen)
	assert.Equal(t, 2.0, el.PlaybackRate())
}
