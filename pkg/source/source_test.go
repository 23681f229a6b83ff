package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/alicebob/miniredis/v2"
	"github.com/je4/mediaplayer/pkg/event"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type collector struct {
	mu   sync.Mutex
	urls []string
}

func (c *collector) resolve(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = append(c.urls, url)
}

func (c *collector) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.urls) == 0 {
		return ""
	}
	return c.urls[len(c.urls)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}

func TestAdapterStatic(t *testing.T) {
	src := NewStatic("a.mp3")
	c := &collector{}
	adapter := NewAdapter("audio01", src, "default.mp3", c.resolve, testLogger())

	adapter.Mount(context.Background())
	adapter.Wait()
	assert.Equal(t, []string{"a.mp3"}, c.urls)
	assert.Equal(t, 1, src.Listeners())

	src.Set("b.mp3")
	adapter.Wait()
	assert.Equal(t, "b.mp3", c.last())

	src.Set("")
	adapter.Wait()
	assert.Equal(t, "default.mp3", c.last())

	src.Fail(errors.New("offline"))
	adapter.Wait()
	assert.Equal(t, "default.mp3", c.last())

	adapter.Unmount()
	assert.Equal(t, 0, src.Listeners())
	src.Set("c.mp3")
	adapter.Wait()
	assert.Equal(t, 4, c.count())
}

func TestAdapterWithoutSource(t *testing.T) {
	c := &collector{}
	adapter := NewAdapter("audio01", nil, "default.mp3", c.resolve, testLogger())
	adapter.Mount(context.Background())
	adapter.Wait()
	adapter.Unmount()
	assert.Equal(t, 0, c.count())
}

func TestAdapterMountOnce(t *testing.T) {
	src := NewStatic("a.mp3")
	c := &collector{}
	adapter := NewAdapter("audio01", src, "", c.resolve, testLogger())
	adapter.Mount(context.Background())
	adapter.Mount(context.Background())
	adapter.Wait()
	assert.Equal(t, 1, src.Listeners())
	assert.Equal(t, 1, c.count())
	adapter.Unmount()
	adapter.Unmount()
	assert.Equal(t, 0, src.Listeners())
}

// slowStatic answers after a random delay, so fetches finish out of order.
type slowStatic struct {
	*Static
}

func (s slowStatic) GetValue(ctx context.Context) (string, error) {
	value, err := s.Static.GetValue(ctx)
	time.Sleep(time.Duration(rand.IntN(20)) * time.Millisecond)
	return value, err
}

func TestAdapterKeepsNewestValue(t *testing.T) {
	for round := 0; round < 20; round++ {
		src := slowStatic{Static: NewStatic("v0.mp3")}
		c := &collector{}
		adapter := NewAdapter("audio01", src, "", c.resolve, testLogger())
		adapter.Mount(context.Background())
		for i := 1; i <= 5; i++ {
			src.Set(fmt.Sprintf("v%d.mp3", i))
			time.Sleep(2 * time.Millisecond)
		}
		adapter.Wait()
		require.Equal(t, "v5.mp3", c.last(), "round %d resolved %v", round, c.urls)
		adapter.Unmount()
	}
}

func TestRedisSource(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	ctx := context.Background()

	src := NewRedis(client, "mediaplayer:source:audio01", testLogger())
	value, err := src.GetValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, src.Start(ctx))
	defer src.Close()
	assert.Error(t, src.Start(ctx))

	c := &collector{}
	adapter := NewAdapter("audio01", src, "default.mp3", c.resolve, testLogger())
	adapter.Mount(ctx)
	adapter.Wait()
	assert.Equal(t, "default.mp3", c.last())

	require.NoError(t, src.Set(ctx, "https://example.org/a.mp3"))
	assert.Eventually(t, func() bool {
		return c.last() == "https://example.org/a.mp3"
	}, 2*time.Second, 10*time.Millisecond)
	adapter.Wait()

	got, err := s.Get("mediaplayer:source:audio01")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/a.mp3", got)

	adapter.Unmount()
	require.NoError(t, src.Close())
}

func TestRedisSourceUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	src := NewRedis(client, "mediaplayer:source:audio01", testLogger())
	s.Close()

	c := &collector{}
	adapter := NewAdapter("audio01", src, "default.mp3", c.resolve, testLogger())
	adapter.Mount(context.Background())
	adapter.Wait()
	assert.Equal(t, "default.mp3", c.last())
	adapter.Unmount()
}

func sourceChangeEvent(t *testing.T, player, url string) *event.Event {
	t.Helper()
	data, err := json.Marshal(event.SourceChange{Player: player, URL: url})
	require.NoError(t, err)
	return &event.Event{Type: event.TypeSourceChanged, Source: "cms", Target: "display01", Data: data}
}

func TestEventsSource(t *testing.T) {
	src := NewEvents("video01", testLogger())
	c := &collector{}
	adapter := NewAdapter("video01", src, "default.mp4", c.resolve, testLogger())
	adapter.Mount(context.Background())
	adapter.Wait()
	assert.Equal(t, "default.mp4", c.last())

	src.Receive(sourceChangeEvent(t, "other", "x.mp4"))
	src.Receive(&event.Event{Type: event.TypeSourceChanged, Data: json.RawMessage(`{broken`)})
	adapter.Wait()
	assert.Equal(t, 1, c.count())

	src.Receive(sourceChangeEvent(t, "video01", "y.mp4"))
	adapter.Wait()
	assert.Equal(t, "y.mp4", c.last())
	adapter.Unmount()
}
