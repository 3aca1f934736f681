package docstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type changeMessage struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
}

// RedisBroadcaster announces collection changes over a redis pub/sub channel
// so that every replica sharing a database refreshes its subscribers.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

// NewRedisBroadcaster creates a broadcaster on the namespace's channel.
func NewRedisBroadcaster(client *redis.Client, namespace string, logger *zap.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{
		client:  client,
		channel: "shiftflow:" + namespace + ":changes",
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Ping verifies redis connectivity.
func (b *RedisBroadcaster) Ping(ctx context.Context) error {
	if b == nil || b.client == nil {
		return errors.New("redis client not configured")
	}
	return b.client.Ping(ctx).Err()
}

// Announce implements Announcer.
func (b *RedisBroadcaster) Announce(ctx context.Context, collection string) error {
	payload, err := json.Marshal(changeMessage{Origin: b.origin, Collection: collection})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Listen calls onChange for every change announced by another replica. It
// blocks until ctx is cancelled. ready, if non-nil, is closed once the
// subscription is confirmed.
func (b *RedisBroadcaster) Listen(ctx context.Context, onChange func(collection string), ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return Classify(err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("ignoring malformed change message", zap.Error(err))
				continue
			}
			if change.Origin == b.origin {
				continue
			}
			onChange(change.Collection)
		}
	}
}
