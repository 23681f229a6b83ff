package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/je4/mediaplayer/pkg/player"
	"github.com/sahmad98/go-ringbuffer"
	"github.com/samber/lo"
)

const playerLogSize = 100

// playerLog keeps the most recent notifications of one player.
type playerLog struct {
	sync.Mutex
	buf *ringbuffer.RingBuffer
}

func newPlayerLog() *playerLog {
	return &playerLog{buf: ringbuffer.NewRingBuffer(playerLogSize)}
}

func (l *playerLog) write(format string, a ...interface{}) {
	l.Lock()
	defer l.Unlock()
	l.buf.Write(time.Now().Format(time.RFC3339) + " " + fmt.Sprintf(format, a...))
}

func (l *playerLog) writeView(view player.View) {
	l.write("%s %s %s volume=%d muted=%v rate=%g fullscreen=%v",
		lo.Ternary(view.State.Playing, player.Playing, player.Paused), view.Source, view.TimeLabel, view.State.Volume, view.State.Muted, view.State.PlaybackRate, view.State.Fullscreen)
}

// entries returns the log oldest first.
func (l *playerLog) entries() []string {
	l.Lock()
	defer l.Unlock()
	result := []string{}
	l.buf.Reader = l.buf.Writer
	var i int32
	for ; i < l.buf.Size; i++ {
		elem := l.buf.Read()
		str, ok := elem.(string)
		if !ok {
			continue
		}
		result = append(result, str)
	}
	return result
}
