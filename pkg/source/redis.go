package source

import (
	"context"
	"sync"

	"emperror.dev/errors"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/redis/go-redis/v9"
)

// NewRedis binds to the string stored under key. Changes are announced on
// the pub/sub channel "<key>:changed"; Set does both in one transaction.
func NewRedis(client *redis.Client, key string, logger zLogger.ZLogger) *Redis {
	return &Redis{
		client:  client,
		key:     key,
		channel: key + ":changed",
		logger:  logger,
	}
}

type Redis struct {
	listeners
	client  *redis.Client
	key     string
	channel string
	logger  zLogger.ZLogger
	pubsub  *redis.PubSub
	wg      sync.WaitGroup
}

// Start subscribes to the change channel and returns once the subscription
// is confirmed by the server.
func (r *Redis) Start(ctx context.Context) error {
	if r.pubsub != nil {
		return errors.Errorf("redis source %s already started", r.key)
	}
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return errors.Wrapf(err, "cannot subscribe to %s", r.channel)
	}
	r.pubsub = pubsub
	ch := pubsub.Channel()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for msg := range ch {
			r.logger.Debug().Msgf("source %s changed: %s", r.key, msg.Payload)
			r.notify(EventChanged)
		}
		r.logger.Debug().Msgf("subscription %s closed", r.channel)
	}()
	return nil
}

func (r *Redis) Close() error {
	if r.pubsub == nil {
		return nil
	}
	err := r.pubsub.Close()
	r.wg.Wait()
	r.pubsub = nil
	return errors.Wrapf(err, "cannot close subscription %s", r.channel)
}

func (r *Redis) GetValue(ctx context.Context) (string, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "cannot get %s", r.key)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, value string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key, value, 0)
	pipe.Publish(ctx, r.channel, value)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "cannot set %s", r.key)
	}
	return nil
}

func (r *Redis) AddListener(event string, fn func()) ListenerID {
	return r.add(event, fn)
}

func (r *Redis) RemoveListener(event string, id ListenerID) {
	r.remove(event, id)
}

var _ Source = (*Redis)(nil)
