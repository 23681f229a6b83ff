package server

import (
	"hash/fnv"
	"slices"
	"sync"

	"emperror.dev/errors"
	"github.com/je4/mediaplayer/pkg/event"
	"github.com/je4/utils/v2/pkg/zLogger"
)

func newConnectionManager(logger zLogger.ZLogger) *connectionManager {
	cm := &connectionManager{
		wsConns: make(map[string]*connection),
		groups:  make(map[string][]string),
		logger:  logger,
	}
	return cm
}

var errQueueFull = errors.New("send queue full")

type job struct {
	evt  *event.Event
	dest string
}

// connectionManager fans player events out to the subscribed websocket
// connections. Each player name is a group of connection ids. All jobs for
// one connection go through the same worker, so events keep their order.
// Queueing never blocks: a connection whose worker queue is full, or whose
// write fails, is closed and has to reconnect.
type connectionManager struct {
	wsConns        map[string]*connection
	wsConnsMu      sync.Mutex
	groups         map[string][]string
	groupsMu       sync.RWMutex
	logger         zLogger.ZLogger
	senderChannels []chan *job
	senderMu       sync.RWMutex
	closed         bool
	workerWG       sync.WaitGroup
}

func (manager *connectionManager) start(numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	manager.senderMu.Lock()
	defer manager.senderMu.Unlock()
	for i := 0; i < numWorkers; i++ {
		manager.logger.Debug().Msgf("Starting worker #%d", i)
		jobs := make(chan *job, 100)
		manager.senderChannels = append(manager.senderChannels, jobs)
		manager.workerWG.Add(1)
		go manager.worker(i, jobs)
	}
}

func (manager *connectionManager) close() {
	manager.senderMu.Lock()
	if manager.closed {
		manager.senderMu.Unlock()
		return
	}
	manager.closed = true
	for _, jobs := range manager.senderChannels {
		close(jobs)
	}
	manager.senderMu.Unlock()
	manager.workerWG.Wait()

	manager.wsConnsMu.Lock()
	defer manager.wsConnsMu.Unlock()
	for id, conn := range manager.wsConns {
		if err := conn.Close(); err != nil {
			manager.logger.Debug().Err(err).Msgf("cannot close connection %s", id)
		}
		delete(manager.wsConns, id)
	}
}

func (manager *connectionManager) worker(id int, jobs <-chan *job) {
	defer manager.workerWG.Done()
	for j := range jobs {
		if err := manager.sendWS(j.dest, j.evt); err != nil {
			manager.logger.Error().Err(err).Msgf("worker #%d failed to send event", id)
			continue
		}
		manager.logger.Debug().Msgf("worker #%d event %s for %s sent to %s", id, j.evt.Type, j.evt.GetSource(), j.dest)
	}
}

func (manager *connectionManager) enqueue(j *job) error {
	manager.senderMu.RLock()
	defer manager.senderMu.RUnlock()
	if manager.closed || len(manager.senderChannels) == 0 {
		return errors.New("connection manager not running")
	}
	h := fnv.New32a()
	h.Write([]byte(j.dest))
	select {
	case manager.senderChannels[h.Sum32()%uint32(len(manager.senderChannels))] <- j:
		return nil
	default:
		return errors.WithStack(errQueueFull)
	}
}

// drop closes a connection that cannot keep up.
func (manager *connectionManager) drop(dest string, cause error) {
	conn, ok := manager.getWSConn(dest)
	if !ok {
		return
	}
	manager.logger.Warn().Err(cause).Msgf("dropping connection %s of %s", dest, conn.Player)
	manager.closeWSConn(conn)
}

// broadcast queues evt for every connection subscribed to player.
func (manager *connectionManager) broadcast(player string, evt *event.Event) error {
	manager.groupsMu.RLock()
	dests := slices.Clone(manager.groups[player])
	manager.groupsMu.RUnlock()
	var errs []error
	for _, dest := range dests {
		if err := manager.send(dest, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Combine(errs...)
}

// send queues evt for the single connection dest.
func (manager *connectionManager) send(dest string, evt *event.Event) error {
	err := manager.enqueue(&job{evt: evt, dest: dest})
	if errors.Is(err, errQueueFull) {
		manager.drop(dest, err)
	}
	return errors.Wrapf(err, "cannot send %s to %s", evt.GetType(), dest)
}

func (manager *connectionManager) sendWS(dest string, evt *event.Event) error {
	conn, ok := manager.getWSConn(dest)
	if !ok {
		return errors.Errorf("no connection for destination %s", dest)
	}
	if err := conn.WriteJSON(evt); err != nil {
		manager.drop(dest, err)
		return errors.Wrapf(err, "failed to send event %s to %s", evt.GetType(), dest)
	}
	return nil
}

func (manager *connectionManager) addWSConn(c *connection) {
	manager.wsConnsMu.Lock()
	manager.logger.Debug().Msgf("Adding connection %s for %s", c.ID, c.Player)
	manager.wsConns[c.ID] = c
	manager.wsConnsMu.Unlock()
	manager.addToGroup(c.ID, c.Player)
}

func (manager *connectionManager) getWSConn(id string) (*connection, bool) {
	manager.wsConnsMu.Lock()
	defer manager.wsConnsMu.Unlock()
	conn, ok := manager.wsConns[id]
	return conn, ok
}

func (manager *connectionManager) closeWSConn(wsConn *connection) {
	manager.removeFromGroup(wsConn.ID, wsConn.Player)
	manager.wsConnsMu.Lock()
	defer manager.wsConnsMu.Unlock()
	if _, ok := manager.wsConns[wsConn.ID]; !ok {
		manager.logger.Debug().Msgf("connection %s already closed", wsConn.ID)
		return
	}
	manager.logger.Debug().Msgf("Closing connection %s[%s]", wsConn.ID, wsConn.Conn.RemoteAddr())
	if err := wsConn.Close(); err != nil {
		manager.logger.Error().Err(err).Msg("Failed to close connection")
	}
	delete(manager.wsConns, wsConn.ID)
}

func (manager *connectionManager) subscribers(player string) int {
	manager.groupsMu.RLock()
	defer manager.groupsMu.RUnlock()
	return len(manager.groups[player])
}

func (manager *connectionManager) addToGroup(id string, group string) {
	manager.groupsMu.Lock()
	defer manager.groupsMu.Unlock()
	if !slices.Contains(manager.groups[group], id) {
		manager.groups[group] = append(manager.groups[group], id)
	}
}

func (manager *connectionManager) removeFromGroup(id string, group string) {
	manager.groupsMu.Lock()
	defer manager.groupsMu.Unlock()
	manager.groups[group] = slices.DeleteFunc(manager.groups[group], func(s string) bool {
		return s == id
	})
	if len(manager.groups[group]) == 0 {
		delete(manager.groups, group)
	}
}
