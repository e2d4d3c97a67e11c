package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus maps each user channel onto a Redis pub/sub channel.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

func NewRedisBus(rdb *redis.Client, prefix string, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{rdb: rdb, prefix: prefix, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, userID string, env Envelope) error {
	if b.rdb == nil {
		return errors.New("signaling: redis client is nil")
	}
	if userID == "" {
		return errors.New("signaling: user id required")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, ChannelName(b.prefix, userID), data).Err(); err != nil {
		return fmt.Errorf("signaling: publish: %w", err)
	}
	return nil
}

// Subscribe waits for the SUBSCRIBE confirmation so that no event published
// after it returns is lost, then decodes messages until Close or ctx ends.
func (b *RedisBus) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	if b.rdb == nil {
		return nil, errors.New("signaling: redis client is nil")
	}
	channel := ChannelName(b.prefix, userID)
	ps := b.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("signaling: subscribe: %w", err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan Envelope, 64), done: make(chan struct{})}
	go func() {
		defer close(sub.out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case <-sub.done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("signaling: dropping malformed envelope", "channel", channel, "err", err)
					continue
				}
				select {
				case sub.out <- env:
				case <-sub.done:
					return
				case <-ctx.Done():
					_ = sub.Close()
					return
				}
			}
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan Envelope
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) C() <-chan Envelope { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
