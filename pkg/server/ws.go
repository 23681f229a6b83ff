package server

import (
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/je4/mediaplayer/pkg/event"
	"github.com/je4/mediaplayer/pkg/player"
)

// playerState is the payload of player-state events.
type playerState struct {
	player.View
}

func (m *playerState) Type() event.EventType {
	return event.TypePlayerState
}

var _ event.DataInterface = (*playerState)(nil)

func (srv *Server) upgrade(ctx *gin.Context, name string, pingInterval time.Duration) (*websocket.Conn, error) {
	conn, err := srv.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upgrade connection")
	}
	remote := ctx.Request.RemoteAddr
	conn.SetPingHandler(func(appData string) error {
		srv.logger.Debug().Msgf("Received ping from client %s[%s]: %s", name, remote, appData)
		return errors.WithStack(conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second)))
	})
	conn.SetPongHandler(func(appData string) error {
		srv.logger.Debug().Msgf("Received pong from client %s[%s]: %s", name, remote, appData)
		return nil
	})
	done := ctx.Request.Context().Done()
	go func() {
		for {
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				srv.logger.Debug().Err(err).Msgf("stopping ping for %s[%s]", name, remote)
				return
			}
			select {
			case <-time.After(pingInterval):
			case <-done:
				return
			}
		}
	}()
	return conn, nil
}

// ws subscribes a control surface to a player. The current view is sent
// right away; intent events are applied and rejected intents answered with
// an error event.
func (srv *Server) ws(ctx *gin.Context) {
	name := ctx.Param("name")
	entry, ok := srv.getPlayer(name)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown player " + name})
		return
	}
	conn, err := srv.upgrade(ctx, name, srv.pingInterval)
	if err != nil {
		srv.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	wsConn := newConnection(conn, uuid.NewString(), name, srv.writeTimeout)
	srv.connectionManager.addWSConn(wsConn)
	defer srv.connectionManager.closeWSConn(wsConn)

	if evt, err := event.NewEvent(&playerState{View: entry.player.View()}, wsConn.ID, ""); err == nil {
		evt.Source = name
		if err := srv.connectionManager.send(wsConn.ID, evt); err != nil {
			srv.logger.Error().Err(err).Msgf("cannot send initial state to %s", wsConn.ID)
		}
	}

	for {
		var evt = &event.Event{}
		if err := conn.ReadJSON(evt); err != nil {
			if websocket.IsCloseError(errors.Cause(err), websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseGoingAway) {
				srv.logger.Debug().Err(err).Msg("connection closed by client")
			} else {
				srv.logger.Debug().Err(err).Msgf("Failed to read message from %s", wsConn.ID)
			}
			break
		}
		switch evt.Type {
		case event.TypeIntent:
			var intent player.Intent
			if err := evt.Decode(&intent); err != nil {
				srv.logger.Error().Err(err).Msgf("invalid intent from %s", wsConn.ID)
				srv.reject(wsConn.ID, name, err)
				continue
			}
			if err := entry.player.Apply(intent); err != nil {
				srv.logger.Debug().Err(err).Msgf("intent %s for %s rejected", intent.Action, name)
				srv.reject(wsConn.ID, name, err)
			}
		default:
			srv.logger.Debug().Msgf("ignoring %s event from %s", evt.Type, wsConn.ID)
		}
	}
}

func (srv *Server) reject(dest string, name string, cause error) {
	evt, err := event.NewEvent(&event.ErrorMessage{Message: cause.Error()}, dest, "")
	if err != nil {
		srv.logger.Error().Err(err).Msg("cannot create error event")
		return
	}
	evt.Source = name
	if err := srv.connectionManager.send(dest, evt); err != nil {
		srv.logger.Error().Err(err).Msgf("cannot send error to %s", dest)
	}
}
