package server

import (
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/gorilla/websocket"
)

func newConnection(conn *websocket.Conn, id string, player string, writeTimeout time.Duration) *connection {
	return &connection{
		ID:           id,
		Conn:         conn,
		Player:       player,
		writeTimeout: writeTimeout,
	}
}

// connection is one control surface subscribed to a player.
type connection struct {
	ID           string
	Conn         *websocket.Conn
	Player       string
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

// WriteJSON serializes writes of concurrent workers. A client that does not
// read within writeTimeout fails the write.
func (c *connection) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(c.Conn.WriteJSON(v))
}

func (c *connection) Close() error {
	if c.Conn != nil {
		return errors.WithStack(c.Conn.Close())
	}
	return nil
}
