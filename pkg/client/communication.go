package client

import (
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/gorilla/websocket"
	"github.com/je4/mediaplayer/pkg/event"
	"github.com/je4/utils/v2/pkg/zLogger"
)

type recFuncType func(evt *event.Event)

// NewCommunication wraps a websocket connection to the event proxy.
func NewCommunication(proxy *websocket.Conn, name string, logger zLogger.ZLogger) *Communication {
	return &Communication{
		proxyConn: proxy,
		name:      name,
		logger:    logger,
		wg:        sync.WaitGroup{},
		recFuncs:  make(map[event.EventType][]recFuncType),
	}
}

type Communication struct {
	proxyConn *websocket.Conn
	name      string
	recFuncs  map[event.EventType][]recFuncType
	recMu     sync.RWMutex
	writeMu   sync.Mutex
	logger    zLogger.ZLogger
	wg        sync.WaitGroup
}

func (comm *Communication) Start() error {
	comm.wg.Add(1)
	go func() {
		defer func() {
			comm.logger.Info().Msgf("closing connection: %s", comm.name)
			if err := comm.proxyConn.Close(); err != nil {
				comm.logger.Error().Err(err).Msgf("cannot close connection: %s", comm.name)
			}
			comm.wg.Done()
		}()
		for {
			evt, err := comm.Receive()
			if err != nil {
				cause := errors.Cause(err)
				if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
					comm.logger.Debug().Err(err).Msgf("connection closed: %s", comm.name)
					return
				}
				if websocket.IsUnexpectedCloseError(cause, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
					comm.logger.Debug().Err(err).Msgf("unexpected close error: %s", comm.name)
					return
				}
				var closeErr *websocket.CloseError
				if errors.As(cause, &closeErr) {
					return
				}
				comm.logger.Error().Err(err).Msgf("cannot read event: %s", comm.name)
				return
			}
			comm.logger.Debug().Msgf("received event from %s: %s", evt.GetSource(), evt.Type)
			comm.recMu.RLock()
			funcs := comm.recFuncs[evt.Type]
			comm.recMu.RUnlock()
			if len(funcs) == 0 {
				comm.logger.Debug().Msgf("no receiver function set for event %s: %s", evt.Type, comm.name)
				continue
			}
			for _, recFunc := range funcs {
				recFunc(evt)
			}
		}
	}()
	return nil
}

func (comm *Communication) Stop() error {
	deadline := time.Now().Add(10 * time.Second)
	comm.writeMu.Lock()
	err := comm.proxyConn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	comm.writeMu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "cannot send close message: %s", comm.name)
	}
	closeChan := make(chan struct{})
	go func() {
		defer close(closeChan)
		comm.wg.Wait()
	}()
	select {
	case <-closeChan:
	case <-time.After(time.Second * 10):
		comm.logger.Warn().Msgf("timeout waiting for connection to close: %s", comm.name)
		if err := comm.proxyConn.Close(); err != nil {
			return errors.Wrapf(err, "cannot close connection: %s", comm.name)
		}
	}
	return nil
}

// On registers recFunc for all events of type t. Receivers run on the read
// goroutine in registration order.
func (comm *Communication) On(t event.EventType, recFunc recFuncType) {
	comm.recMu.Lock()
	defer comm.recMu.Unlock()
	comm.recFuncs[t] = append(comm.recFuncs[t], recFunc)
}

func (comm *Communication) Receive() (*event.Event, error) {
	var evt event.Event
	if err := comm.proxyConn.ReadJSON(&evt); err != nil {
		return nil, errors.Wrapf(err, "cannot read event")
	}
	return &evt, nil
}

func (comm *Communication) Send(evt *event.Event) error {
	evt.Source = comm.name
	comm.writeMu.Lock()
	defer comm.writeMu.Unlock()
	if err := comm.proxyConn.WriteJSON(evt); err != nil {
		return errors.Wrapf(err, "cannot send event: %v", evt)
	}
	return nil
}
