package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisSubscriber implements Subscriber over redis pub/sub. Each scope
// maps to the channel "scope:<name>"; payloads are JSON-encoded Event
// envelopes.
type RedisSubscriber struct {
	rdb *redis.Client
	log *log.Logger
}

func NewRedisSubscriber(ctx context.Context, addr string, logger *log.Logger) (*RedisSubscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisSubscriber{rdb: rdb, log: logger}, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

func (r *RedisSubscriber) Subscribe(ctx context.Context, scope Scope) (Subscription, error) {
	pubsub := r.rdb.Subscribe(ctx, "scope:"+string(scope))

	// wait for the subscription confirmation so no event published
	// after Subscribe returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to scope %q: %w", scope, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, scopeBufSize),
	}

	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Printf("error parsing event on %q: %v", msg.Channel, err)
				continue
			}
			ev.Scope = scope
			sub.events <- ev
		}
	}()

	return sub, nil
}

func (r *RedisSubscriber) Close() error {
	return r.rdb.Close()
}
