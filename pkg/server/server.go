package server

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/je4/mediaplayer/pkg/browser"
	"github.com/je4/mediaplayer/pkg/event"
	"github.com/je4/mediaplayer/pkg/media"
	"github.com/je4/mediaplayer/pkg/player"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/samber/lo"
)

// NewServer creates the host surface for all players. templateFS must
// contain player.gohtml; staticFS is served below /static.
func NewServer(addr string, numWorkers int, staticFS fs.FS, templateFS fs.FS, debug bool, logger zLogger.ZLogger) *Server {
	srv := &Server{
		Addr:              addr,
		upgrader:          websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:            logger,
		templates:         make(map[string]*template.Template),
		players:           make(map[string]*playerEntry),
		debug:             debug,
		connectionManager: newConnectionManager(logger),
		templateFS:        templateFS,
		staticFS:          staticFS,
		pingInterval:      10 * time.Second,
		writeTimeout:      10 * time.Second,
	}
	srv.connectionManager.start(numWorkers)
	return srv
}

type playerEntry struct {
	player      *player.Player
	snapshotter media.Snapshotter
	log         *playerLog
}

type Server struct {
	Addr              string
	upgrader          websocket.Upgrader
	srv               *http.Server
	logger            zLogger.ZLogger
	wg                sync.WaitGroup
	templates         map[string]*template.Template
	templatesMu       sync.Mutex
	players           map[string]*playerEntry
	playersMu         sync.RWMutex
	debug             bool
	connectionManager *connectionManager
	templateFS        fs.FS
	staticFS          fs.FS
	pingInterval      time.Duration
	writeTimeout      time.Duration
}

// AddPlayer publishes p. snap may be nil for players without a rendered
// surface.
func (srv *Server) AddPlayer(p *player.Player, snap media.Snapshotter) error {
	srv.playersMu.Lock()
	defer srv.playersMu.Unlock()
	name := p.Name()
	if _, ok := srv.players[name]; ok {
		return errors.Errorf("player %s already registered", name)
	}
	entry := &playerEntry{
		player:      p,
		snapshotter: snap,
		log:         newPlayerLog(),
	}
	srv.players[name] = entry
	p.OnChange(func(view player.View) {
		entry.log.writeView(view)
		srv.publish(view)
	})
	srv.logger.Info().Msgf("player %s registered", name)
	return nil
}

func (srv *Server) getPlayer(name string) (*playerEntry, bool) {
	srv.playersMu.RLock()
	defer srv.playersMu.RUnlock()
	entry, ok := srv.players[name]
	return entry, ok
}

func (srv *Server) playerNames() []string {
	srv.playersMu.RLock()
	defer srv.playersMu.RUnlock()
	names := lo.Keys(srv.players)
	slices.Sort(names)
	return names
}

// publish pushes view to every control surface of the player.
func (srv *Server) publish(view player.View) {
	if srv.connectionManager.subscribers(view.Name) == 0 {
		return
	}
	evt, err := event.NewEvent(&playerState{View: view}, view.Name, "")
	if err != nil {
		srv.logger.Error().Err(err).Msgf("cannot create state event for %s", view.Name)
		return
	}
	evt.Source = view.Name
	if err := srv.connectionManager.broadcast(view.Name, evt); err != nil {
		srv.logger.Warn().Err(err).Msgf("cannot publish state of %s", view.Name)
	}
}

func (srv *Server) getTemplate(name string) (*template.Template, error) {
	srv.templatesMu.Lock()
	defer srv.templatesMu.Unlock()
	if tmpl, ok := srv.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New(name).ParseFS(srv.templateFS, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse template %s", name)
	}
	if !srv.debug {
		srv.templates[name] = tmpl
	}
	return tmpl, nil
}

// Handler builds the router.
func (srv *Server) Handler() http.Handler {
	var router *gin.Engine
	if srv.debug {
		router = gin.Default()
	} else {
		router = gin.New()
		router.Use(gin.Recovery())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: false,
		AllowWebSockets:  true,
	}))
	if srv.staticFS != nil {
		router.StaticFS("/static", http.FS(srv.staticFS))
	}
	router.GET("/players", srv.listPlayers)
	router.GET("/player/:name", srv.getView)
	router.POST("/player/:name/intent", srv.postIntent)
	router.GET("/player/:name/log", srv.getLog)
	router.GET("/player/:name/screenshot", srv.getScreenshot)
	router.GET("/render/:name", srv.render)
	router.GET("/ws/:name", srv.ws)
	return router
}

func (srv *Server) Start() error {
	if srv.srv != nil {
		return errors.New("server already started")
	}
	srv.srv = &http.Server{
		Addr:    srv.Addr,
		Handler: srv.Handler(),
	}
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		srv.logger.Info().Msgf("Starting server on http://%s", srv.Addr)
		if err := srv.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error().Err(err).Msg("Server error")
		} else {
			srv.logger.Info().Msg("Server closed")
		}
	}()
	return nil
}

func (srv *Server) Stop() error {
	srv.connectionManager.close()
	if srv.srv == nil {
		return nil
	}
	srv.logger.Info().Msg("Stopping server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shutdown server")
	}
	srv.wg.Wait()
	return nil
}

func (srv *Server) entry(ctx *gin.Context) (*playerEntry, bool) {
	name := ctx.Param("name")
	entry, ok := srv.getPlayer(name)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown player " + name})
		return nil, false
	}
	return entry, true
}

func (srv *Server) listPlayers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, srv.playerNames())
}

func (srv *Server) getView(ctx *gin.Context) {
	entry, ok := srv.entry(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, entry.player.View())
}

func (srv *Server) postIntent(ctx *gin.Context) {
	entry, ok := srv.entry(ctx)
	if !ok {
		return
	}
	var intent player.Intent
	if err := ctx.ShouldBindJSON(&intent); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := entry.player.Apply(intent); err != nil {
		srv.logger.Debug().Err(err).Msgf("intent %s for %s rejected", intent.Action, entry.player.Name())
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, entry.player.View())
}

func (srv *Server) getLog(ctx *gin.Context) {
	entry, ok := srv.entry(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, entry.log.entries())
}

func (srv *Server) getScreenshot(ctx *gin.Context) {
	entry, ok := srv.entry(ctx)
	if !ok {
		return
	}
	if entry.snapshotter == nil {
		ctx.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "player has no rendered surface"})
		return
	}
	width, err := strconv.Atoi(ctx.DefaultQuery("width", "800"))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid width"})
		return
	}
	height, err := strconv.Atoi(ctx.DefaultQuery("height", "450"))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid height"})
		return
	}
	sigma, err := strconv.ParseFloat(ctx.DefaultQuery("sigma", "0"), 64)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid sigma"})
		return
	}
	buf, mime, err := entry.snapshotter.Screenshot(width, height, sigma)
	if err != nil {
		srv.logger.Error().Err(err).Msgf("cannot create screenshot of %s", entry.player.Name())
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.Data(http.StatusOK, mime, buf)
}

func (srv *Server) render(ctx *gin.Context) {
	entry, ok := srv.entry(ctx)
	if !ok {
		return
	}
	tmpl, err := srv.getTemplate("player.gohtml")
	if err != nil {
		srv.logger.Error().Err(err).Msg("Failed to get template player.gohtml")
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	view := entry.player.View()
	ctx.Header("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(ctx.Writer, struct {
		Name, Binding string
		Video         bool
	}{
		Name:    view.Name,
		Binding: browser.BindingName,
		Video:   view.Kind == player.KindVideo,
	}); err != nil {
		srv.logger.Error().Err(err).Msg("Failed to execute template")
	}
}
