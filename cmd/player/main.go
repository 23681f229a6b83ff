package main

import (
	"context"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/gorilla/websocket"
	"github.com/je4/mediaplayer/pkg/browser"
	"github.com/je4/mediaplayer/pkg/client"
	"github.com/je4/mediaplayer/pkg/event"
	"github.com/je4/mediaplayer/pkg/media"
	"github.com/je4/mediaplayer/pkg/player"
	"github.com/je4/mediaplayer/pkg/server"
	"github.com/je4/mediaplayer/pkg/source"
	"github.com/je4/mediaplayer/web"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// tick is the clock step of simulated media elements.
const tick = 250 * time.Millisecond

var browserOpts = map[string]interface{}{
	"start-fullscreen":                 true,
	"disable-notifications":            true,
	"disable-infobars":                 true,
	"allow-insecure-localhost":         true,
	"disable-session-crashed-bubble":   true,
	"incognito":                        true,
	"autoplay-policy":                  "no-user-gesture-required",
	"disable-features":                 "InfiniteSessionRestore,TranslateUI,PreloadMediaEngagementData",
	"enable-fullscreen-toolbar-reveal": false,
}

type widget struct {
	player  *player.Player
	element *browser.MediaElement
	memory  *media.MemoryElement
	browser *browser.Browser
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		emergency := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
		emergency.Fatal().Err(err).Msg("cannot load config")
	}

	var out io.Writer = zerolog.NewConsoleWriter()
	if cfg.Log.File != "" {
		fp, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			emergency := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
			emergency.Fatal().Err(err).Msgf("cannot open logfile %s", cfg.Log.File)
		}
		defer fp.Close()
		out = zerolog.MultiLevelWriter(zerolog.NewConsoleWriter(), fp)
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger = logger.Level(level)
	zlogger := zLogger.ZLogger(&logger)
	zlogger.Info().Msgf("Starting media player host on %s", cfg.LocalAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlogger); err != nil {
		zlogger.Error().Err(err).Msg("media player host failed")
		os.Exit(1)
	}
	zlogger.Info().Msg("media player host stopped")
}

func run(ctx context.Context, cfg *PlayerConfig, logger zLogger.ZLogger) error {
	templateFS, staticFS, err := web.FS(cfg.WebFolder)
	if err != nil {
		return errors.Wrap(err, "cannot open web folder")
	}
	srv := server.NewServer(cfg.LocalAddr, cfg.NumWorkers, staticFS, templateFS, cfg.Debug, logger)

	var redisClient *redis.Client
	var redisSources []*source.Redis
	var comm *client.Communication
	defer func() {
		for _, src := range redisSources {
			if err := src.Close(); err != nil {
				logger.Error().Err(err).Msg("cannot close redis source")
			}
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("cannot close redis client")
			}
		}
		if comm != nil {
			if err := comm.Stop(); err != nil {
				logger.Error().Err(err).Msg("cannot stop event communication")
			}
		}
	}()

	widgets := []*widget{}
	for _, wc := range cfg.Players {
		var src source.Source
		switch wc.Binding {
		case "":
		case "static":
			src = source.NewStatic(wc.Source)
		case "redis":
			if redisClient == nil {
				redisClient = redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
			}
			redisSrc := source.NewRedis(redisClient, cfg.Redis.Prefix+wc.Name, logger)
			if err := redisSrc.Start(ctx); err != nil {
				logger.Error().Err(err).Msgf("cannot subscribe source of %s, using default source", wc.Name)
			} else {
				redisSources = append(redisSources, redisSrc)
			}
			src = redisSrc
		case "events":
			if comm == nil {
				if comm, err = dialEvents(cfg.Events, logger); err != nil {
					return errors.Wrap(err, "cannot connect to event proxy")
				}
			}
			eventsSrc := source.NewEvents(wc.Name, logger)
			comm.On(event.TypeSourceChanged, eventsSrc.Receive)
			src = eventsSrc
		default:
			return errors.Errorf("unknown binding %q for player %s", wc.Binding, wc.Name)
		}

		w := &widget{}
		var el media.Element
		var container media.Container
		var snap media.Snapshotter
		if cfg.Browser.Enabled {
			render, err := url.Parse(cfg.Browser.RenderBase + url.PathEscape(wc.Name))
			if err != nil {
				return errors.Wrapf(err, "invalid render url for %s", wc.Name)
			}
			opts := map[string]interface{}{"headless": cfg.Browser.Headless}
			for key, val := range browserOpts {
				opts[key] = val
			}
			name := wc.Name
			if w.browser, err = browser.NewBrowser(opts, logger, func(s string, i ...interface{}) {
				logger.Debug().Msgf("browser %s: "+s, append([]interface{}{name}, i...)...)
			}); err != nil {
				return errors.Wrapf(err, "cannot create browser for %s", wc.Name)
			}
			w.element = browser.NewMediaElement(wc.Name, w.browser, render, logger)
			el, container, snap = w.element, w.element, w.element
		} else {
			w.memory = media.NewMemoryElement()
			w.memory.SetDefaultDuration(cfg.Memory.Duration)
			el, container = w.memory, w.memory
		}
		pc := wc.playerConfig()
		if pc.Kind != player.KindVideo {
			container = nil
		}
		w.player = player.New(pc, el, container, src, logger)
		if err := srv.AddPlayer(w.player, snap); err != nil {
			return errors.WithStack(err)
		}
		widgets = append(widgets, w)
	}

	if err := srv.Start(); err != nil {
		return errors.Wrap(err, "cannot start server")
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			logger.Error().Err(err).Msg("cannot stop server")
		}
	}()

	for _, w := range widgets {
		if w.element != nil {
			if err := w.element.Start(); err != nil {
				return errors.Wrapf(err, "cannot render %s", w.player.Name())
			}
		}
		if err := w.player.Mount(ctx); err != nil {
			return errors.Wrapf(err, "cannot mount %s", w.player.Name())
		}
	}
	defer func() {
		for _, w := range widgets {
			w.player.Unmount()
			if w.element != nil {
				w.element.Close()
				w.browser.Close()
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				for _, w := range widgets {
					if w.memory != nil {
						w.memory.Advance(tick)
					}
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Received shutdown signal")
		return nil
	})
	return errors.WithStack(g.Wait())
}

func dialEvents(cfg EventsConfig, logger zLogger.ZLogger) (*client.Communication, error) {
	wsPath, err := url.JoinPath(cfg.Proxy, cfg.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build websocket path from %s", cfg.Proxy)
	}
	logger.Info().Msgf("Connecting to websocket proxy server at %s", wsPath)
	conn, _, err := websocket.DefaultDialer.Dial(wsPath, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot dial %s", wsPath)
	}
	comm := client.NewCommunication(conn, cfg.Name, logger)
	if err := comm.Start(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "cannot start communication")
	}
	return comm, nil
}
