package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/je4/mediaplayer/pkg/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoProxy sends every received event straight back to the sender.
func echoProxy(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("cannot upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var evt event.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			if err := conn.WriteJSON(&evt); err != nil {
				return
			}
		}
	}))
}

func TestCommunication(t *testing.T) {
	proxy := echoProxy(t)
	defer proxy.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(proxy.URL, "http"), nil)
	require.NoError(t, err)
	logger := zerolog.Nop()
	comm := NewCommunication(conn, "display01", &logger)

	received := make(chan *event.Event, 1)
	comm.On(event.TypeSourceChanged, func(evt *event.Event) {
		received <- evt
	})
	require.NoError(t, comm.Start())

	evt, err := event.NewEvent(&event.SourceChange{Player: "video01", URL: "a.mp4"}, "display01", "")
	require.NoError(t, err)
	require.NoError(t, comm.Send(evt))
	// no receiver registered for errors
	errEvt, err := event.NewEvent(&event.ErrorMessage{Message: "ignored"}, "display01", "")
	require.NoError(t, err)
	require.NoError(t, comm.Send(errEvt))

	select {
	case got := <-received:
		assert.Equal(t, "display01", got.GetSource())
		var change event.SourceChange
		require.NoError(t, got.Decode(&change))
		assert.Equal(t, event.SourceChange{Player: "video01", URL: "a.mp4"}, change)
	case <-time.After(2 * time.Second):
		t.Fatal("no source-changed event received")
	}

	require.NoError(t, comm.Stop())
}
