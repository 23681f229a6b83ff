package player

type Kind string

const KindAudio Kind = "audio"
const KindVideo Kind = "video"

// PlaybackState is the player's belief about playback, which may differ from
// the element until the next notification.
type PlaybackState int

const (
	Paused PlaybackState = iota
	Playing
)

func (s PlaybackState) String() string {
	switch s {
	case Paused:
		return "Paused"
	case Playing:
		return "Playing"
	default:
		return "Unknown"
	}
}

type Glyph string

const (
	GlyphPlay           Glyph = "play"
	GlyphPause          Glyph = "pause"
	GlyphVolumeMute     Glyph = "volume-mute"
	GlyphVolumeDown     Glyph = "volume-down"
	GlyphVolumeUp       Glyph = "volume-up"
	GlyphFullscreen     Glyph = "fullscreen"
	GlyphFullscreenExit Glyph = "fullscreen-exit"
)

// Capabilities gate the transport extras. Audio players have none.
type Capabilities struct {
	Fullscreen       bool `json:"fullscreen"`
	PictureInPicture bool `json:"pictureInPicture"`
	Speed            bool `json:"speed"`
}

type Config struct {
	Name          string
	Kind          Kind
	DefaultSource string
	AutoPlay      bool
	Loop          bool
	Muted         bool
	MiniPlayer    bool
	FullScreen    bool
	Speed         bool
}

func (cfg Config) Capabilities() Capabilities {
	if cfg.Kind != KindVideo {
		return Capabilities{}
	}
	return Capabilities{
		Fullscreen:       cfg.FullScreen,
		PictureInPicture: cfg.MiniPlayer,
		Speed:            cfg.Speed,
	}
}

// State is the UI's belief about the player.
type State struct {
	Playing        bool    `json:"isPlaying"`
	CurrentTime    float64 `json:"currentTime"`
	Duration       float64 `json:"duration"`
	Volume         int     `json:"volume"`
	Muted          bool    `json:"isMuted"`
	PreviousVolume int     `json:"previousVolume"`
	PlaybackRate   float64 `json:"playbackRate"`
	Fullscreen     bool    `json:"isFullscreen"`
}

// View is the state plus everything derived from it that a control surface
// renders.
type View struct {
	Name                string       `json:"name"`
	Kind                Kind         `json:"kind"`
	Source              string       `json:"source"`
	State               State        `json:"state"`
	PlayGlyph           Glyph        `json:"playGlyph"`
	SeekMax             float64      `json:"seekMax"`
	SeekValue           float64      `json:"seekValue"`
	SeekStep            float64      `json:"seekStep"`
	TimeLabel           string       `json:"timeLabel"`
	VolumeGlyph         Glyph        `json:"volumeGlyph"`
	VolumeSliderVisible bool         `json:"volumeSliderVisible"`
	FullscreenGlyph     Glyph        `json:"fullscreenGlyph,omitempty"`
	SpeedMenuOpen       bool         `json:"speedMenuOpen"`
	SpeedOptions        []float64    `json:"speedOptions,omitempty"`
	Capabilities        Capabilities `json:"capabilities"`
}
