// Package observer turns lossy keyspace-expiry notifications from the
// rooms namespace into durable records on the expired_ttl stream, where
// consumer-group semantics give the room managers at-least-once
// delivery.
package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/metrics"
)

type Observer struct {
	rooms  *redis.Client // rooms namespace, source of keyevent pub/sub
	stream *event_queue.Stream
	logger *zap.Logger
}

func New(rooms *redis.Client, stream *event_queue.Stream, logger *zap.Logger) *Observer {
	return &Observer{rooms: rooms, stream: stream, logger: logger}
}

// Channel returns the keyevent channel pattern for the rooms namespace.
// The subscription must target the rooms DB specifically; heartbeat and
// cleanup keys live nowhere else.
func Channel() string {
	return fmt.Sprintf("__keyevent@%d__:expired", config.RoomsDB)
}

// Run subscribes to expired-key events and republishes every one onto
// the stream until the context is cancelled. Pub/sub drops events while
// no subscriber is attached, so this loop reconnects aggressively; its
// restart window is the pipeline's only at-most-once gap.
func (o *Observer) Run(ctx context.Context) error {
	for {
		if err := o.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("expiry subscription dropped, reconnecting", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (o *Observer) consume(ctx context.Context) error {
	pubsub := o.rooms.PSubscribe(ctx, Channel())
	defer pubsub.Close()

	o.logger.Info("listening for key expiries", zap.String("channel", Channel()))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("pubsub channel closed")
			}
			// No filtering here: consumers decide relevance from the
			// key prefix.
			if err := o.stream.Append(ctx, msg.Payload); err != nil {
				o.logger.Error("failed to append expiry event", zap.String("key", msg.Payload), zap.Error(err))
				continue
			}
			metrics.ExpiryEventsRelayed.Inc()
			o.logger.Debug("expiry relayed", zap.String("key", msg.Payload))
		}
	}
}
