package room_management

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
)

func setupConsumer(t *testing.T, f *roomFixture) (*ExpiryConsumer, *event_queue.Stream) {
	stream := event_queue.NewStream(f.rdb, "expired_ttl", "collab")
	c := NewExpiryConsumer(f.rm, stream, "consumer-1", zap.NewNop())
	return c, stream
}

func TestConsumerHandleExpiredHeartbeat(t *testing.T) {
	f := setupRoomManager(t)
	c, _ := setupConsumer(t, f)
	ctx := context.Background()

	assert.NoError(t, f.rm.CreateRoom(ctx, sampleEvent()))

	// Alice's heartbeat lapsed; bob is still alive and gets told.
	f.rdb.Del(ctx, keys.Heartbeat("alice"))
	c.handle(ctx, keys.Heartbeat("alice"))

	frames := f.notifier.sent()
	assert.Len(t, frames, 1)
	assert.Equal(t, "bob", frames[0].UserID)
	assert.Equal(t, models.MsgPartnerLeft, frames[0].Message)
}

func TestConsumerIgnoresForeignKeys(t *testing.T) {
	f := setupRoomManager(t)
	c, _ := setupConsumer(t, f)
	ctx := context.Background()

	assert.NoError(t, f.rm.CreateRoom(ctx, sampleEvent()))

	c.handle(ctx, "cleanup:room-1")
	c.handle(ctx, "some:random:key")

	assert.Empty(t, f.notifier.sent())
}

func TestConsumerDrainsPendingOnStartup(t *testing.T) {
	f := setupRoomManager(t)
	c, stream := setupConsumer(t, f)
	ctx := context.Background()

	assert.NoError(t, f.rm.CreateRoom(ctx, sampleEvent()))
	f.rdb.Del(ctx, keys.Heartbeat("alice"))

	// A previous incarnation read the entry but crashed before acking.
	assert.NoError(t, stream.EnsureGroup(ctx))
	assert.NoError(t, stream.Append(ctx, keys.Heartbeat("alice")))
	entry, err := stream.ReadOne(ctx, "consumer-1", 100*time.Millisecond)
	assert.NoError(t, err)
	assert.NotNil(t, entry)

	// The restarted consumer replays the pending entry before blocking
	// on new deliveries, then exits on context cancellation.
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()

	waitFor(t, 2*time.Second, func() bool {
		return len(f.notifier.sent()) == 1
	})
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer never stopped")
	}

	frames := f.notifier.sent()
	assert.Equal(t, "bob", frames[0].UserID)
	assert.Equal(t, models.MsgPartnerLeft, frames[0].Message)

	// The replayed entry was acked; nothing is pending anymore.
	pending, err := stream.ReadPending(ctx, "consumer-1")
	assert.NoError(t, err)
	assert.Nil(t, pending)
}
