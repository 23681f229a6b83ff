package main

import (
	"flag"
	"runtime"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/je4/mediaplayer/config"
	"github.com/je4/mediaplayer/pkg/player"
)

var addr = flag.String("addr", "", "http service address")
var numWorker = flag.Int("workers", runtime.NumCPU(), "number of websocket workers")
var debug = flag.Bool("debug", false, "debug mode")
var headless = flag.Bool("headless", true, "run the browser headless")
var webFolder = flag.String("web", "", "folder with templates and static files")
var configPath = flag.String("config", "", "path to config file")

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type BrowserConfig struct {
	Enabled    bool   `toml:"enabled"`
	Headless   bool   `toml:"headless"`
	RenderBase string `toml:"render_base"`
}

// MemoryConfig configures the simulated media elements used while the
// browser is disabled. Duration is reported as metadata of every loaded
// source; 0 leaves the duration unknown and seeking disabled.
type MemoryConfig struct {
	Duration float64 `toml:"duration"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type EventsConfig struct {
	Proxy string `toml:"proxy"`
	Name  string `toml:"name"`
}

// WidgetConfig configures one player. Binding selects where the media URL
// comes from: "" (default source only), "static", "redis" or "events".
type WidgetConfig struct {
	Name          string `toml:"name"`
	Kind          string `toml:"kind"`
	DefaultSource string `toml:"default_source"`
	Binding       string `toml:"binding"`
	Source        string `toml:"source"`
	AutoPlay      bool   `toml:"autoplay"`
	Loop          bool   `toml:"loop"`
	Muted         bool   `toml:"muted"`
	MiniPlayer    bool   `toml:"miniplayer"`
	FullScreen    bool   `toml:"fullscreen"`
	Speed         bool   `toml:"speed"`
}

func (wc WidgetConfig) playerConfig() player.Config {
	return player.Config{
		Name:          wc.Name,
		Kind:          player.Kind(wc.Kind),
		DefaultSource: wc.DefaultSource,
		AutoPlay:      wc.AutoPlay,
		Loop:          wc.Loop,
		Muted:         wc.Muted,
		MiniPlayer:    wc.MiniPlayer,
		FullScreen:    wc.FullScreen,
		Speed:         wc.Speed,
	}
}

type PlayerConfig struct {
	LocalAddr  string         `toml:"localaddr"`
	Debug      bool           `toml:"debug"`
	NumWorkers int            `toml:"workers"`
	WebFolder  string         `toml:"web_folder"`
	Log        LogConfig      `toml:"log"`
	Browser    BrowserConfig  `toml:"browser"`
	Memory     MemoryConfig   `toml:"memory"`
	Redis      RedisConfig    `toml:"redis"`
	Events     EventsConfig   `toml:"events"`
	Players    []WidgetConfig `toml:"player"`
}

func loadConfig() (*PlayerConfig, error) {
	flag.Parse()
	cfg := &PlayerConfig{}
	// fill the default values
	if _, err := toml.Decode(string(config.PlayerToml), cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load default config")
	}
	if *configPath != "" {
		// players of the file replace the default players
		defaults := cfg.Players
		cfg.Players = nil
		if _, err := toml.DecodeFile(*configPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to load config from %s", *configPath)
		}
		if len(cfg.Players) == 0 {
			cfg.Players = defaults
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.LocalAddr = *addr
		case "workers":
			cfg.NumWorkers = *numWorker
		case "debug":
			cfg.Debug = *debug
		case "headless":
			cfg.Browser.Headless = *headless
		case "web":
			cfg.WebFolder = *webFolder
		}
	})
	names := map[string]bool{}
	for i, wc := range cfg.Players {
		if wc.Name == "" {
			wc.Name = "player-" + uuid.NewString()
			cfg.Players[i].Name = wc.Name
		}
		if names[wc.Name] {
			return nil, errors.Errorf("duplicate player %s", wc.Name)
		}
		names[wc.Name] = true
	}
	return cfg, nil
}
