package room_management

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/metrics"
)

const consumerBlock = 5 * time.Second

// ExpiryConsumer reads the durable expiry stream as one named member of
// the room-manager consumer group. Entries are acknowledged only after
// handling, so a crash mid-entry redelivers it to the restarted
// consumer.
type ExpiryConsumer struct {
	rm       *RoomManager
	stream   *event_queue.Stream
	consumer string
	logger   *zap.Logger
}

func NewExpiryConsumer(rm *RoomManager, stream *event_queue.Stream, consumer string, logger *zap.Logger) *ExpiryConsumer {
	return &ExpiryConsumer{rm: rm, stream: stream, consumer: consumer, logger: logger}
}

// Run drains entries left unacked by a previous incarnation, then
// consumes new deliveries until the context is cancelled. Handler
// errors never stop the loop; at-least-once delivery retries for us.
func (c *ExpiryConsumer) Run(ctx context.Context) error {
	if err := c.stream.EnsureGroup(ctx); err != nil {
		return err
	}

	for {
		entry, err := c.stream.ReadPending(ctx, c.consumer)
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		c.handle(ctx, entry.Event.Key)
		c.stream.Ack(ctx, entry.ID)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, err := c.stream.ReadOne(ctx, c.consumer, consumerBlock)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("expiry stream read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if entry == nil {
			continue
		}

		c.handle(ctx, entry.Event.Key)
		if err := c.stream.Ack(ctx, entry.ID); err != nil {
			c.logger.Error("failed to ack expiry entry", zap.String("id", entry.ID), zap.Error(err))
		}
		metrics.ExpiryEventsConsumed.Inc()
	}
}

// handle routes one expired key. Only heartbeat keys matter; the rooms
// namespace holds other TTL-bearing keys whose expiries are noise here.
func (c *ExpiryConsumer) handle(ctx context.Context, key string) {
	userID, ok := keys.HeartbeatUser(key)
	if !ok {
		return
	}
	c.logger.Info("heartbeat expired", zap.String("user_id", userID))
	c.rm.handlePartnerLeft(ctx, userID)
}
