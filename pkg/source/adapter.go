package source

import (
	"context"
	"sync"

	"github.com/je4/utils/v2/pkg/zLogger"
)

// NewAdapter binds src to a player. resolve receives the resolved URLs in the
// order their fetches started; a fetch that finishes after a newer one has
// already resolved is discarded. resolve is called from the fetch goroutine.
func NewAdapter(name string, src Source, defaultURL string, resolve func(url string), logger zLogger.ZLogger) *Adapter {
	return &Adapter{
		name:       name,
		src:        src,
		defaultURL: defaultURL,
		resolve:    resolve,
		logger:     logger,
	}
}

type Adapter struct {
	name       string
	src        Source
	defaultURL string
	resolve    func(url string)
	logger     zLogger.ZLogger
	mu         sync.Mutex
	ctx        context.Context
	listenerID ListenerID
	mounted    bool
	fetches    sync.WaitGroup
	// started counts fetches; resolved is the newest fetch delivered so far.
	started   uint64
	resolveMu sync.Mutex
	resolved  uint64
}

// Mount subscribes to the source and fires the initial notification. Without
// a source it does nothing.
func (adapter *Adapter) Mount(ctx context.Context) {
	if adapter.src == nil {
		return
	}
	adapter.mu.Lock()
	if adapter.mounted {
		adapter.mu.Unlock()
		return
	}
	adapter.ctx = ctx
	adapter.mounted = true
	adapter.listenerID = adapter.src.AddListener(EventChanged, adapter.changed)
	adapter.mu.Unlock()
	adapter.changed()
}

// Unmount releases the subscription. Fetches already running complete on
// their own.
func (adapter *Adapter) Unmount() {
	if adapter.src == nil {
		return
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if !adapter.mounted {
		return
	}
	adapter.src.RemoveListener(EventChanged, adapter.listenerID)
	adapter.mounted = false
}

// Wait blocks until all started fetches have delivered their result.
func (adapter *Adapter) Wait() {
	adapter.fetches.Wait()
}

func (adapter *Adapter) changed() {
	adapter.mu.Lock()
	ctx := adapter.ctx
	adapter.started++
	seq := adapter.started
	adapter.fetches.Add(1)
	adapter.mu.Unlock()
	go func() {
		defer adapter.fetches.Done()
		url := adapter.fetch(ctx)
		adapter.resolveMu.Lock()
		defer adapter.resolveMu.Unlock()
		if seq < adapter.resolved {
			adapter.logger.Debug().Msgf("[%s] dropping outdated source value %s", adapter.name, url)
			return
		}
		adapter.resolved = seq
		adapter.resolve(url)
	}()
}

func (adapter *Adapter) fetch(ctx context.Context) string {
	value, err := adapter.src.GetValue(ctx)
	if err != nil {
		adapter.logger.Warn().Err(err).Msgf("[%s] cannot fetch source value, using default %s", adapter.name, adapter.defaultURL)
		return adapter.defaultURL
	}
	if value == "" {
		adapter.logger.Debug().Msgf("[%s] empty source value, using default %s", adapter.name, adapter.defaultURL)
		return adapter.defaultURL
	}
	return value
}
