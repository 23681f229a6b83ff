package source

import (
	"context"
	"sync"

	"github.com/je4/mediaplayer/pkg/event"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// NewEvents creates a source fed by source-changed events addressed to
// player. Register Receive with the event client:
//
//	comm.On(event.TypeSourceChanged, src.Receive)
func NewEvents(player string, logger zLogger.ZLogger) *Events {
	return &Events{
		player: player,
		logger: logger,
	}
}

type Events struct {
	listeners
	player string
	logger zLogger.ZLogger
	mu     sync.RWMutex
	value  string
}

func (src *Events) Receive(evt *event.Event) {
	if evt.GetType() != event.TypeSourceChanged {
		return
	}
	var change event.SourceChange
	if err := evt.Decode(&change); err != nil {
		src.logger.Error().Err(err).Msgf("cannot decode source change from %s", evt.GetSource())
		return
	}
	if change.Player != src.player {
		return
	}
	src.mu.Lock()
	src.value = change.URL
	src.mu.Unlock()
	src.logger.Debug().Msgf("[%s] source changed by %s: %s", src.player, evt.GetSource(), change.URL)
	src.notify(EventChanged)
}

// GetValue returns the last announced URL, empty until the first event.
func (src *Events) GetValue(ctx context.Context) (string, error) {
	src.mu.RLock()
	defer src.mu.RUnlock()
	return src.value, nil
}

func (src *Events) AddListener(event string, fn func()) ListenerID {
	return src.add(event, fn)
}

func (src *Events) RemoveListener(event string, id ListenerID) {
	src.remove(event, id)
}

var _ Source = (*Events)(nil)
