package event_queue

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
)

// Stream wraps the durable expired_ttl stream. The observer appends,
// room-manager instances read through a consumer group so each entry is
// delivered at least once and replayed after a crash.
type Stream struct {
	rdb   *redis.Client
	key   string
	group string
}

func NewStream(rdb *redis.Client, key, group string) *Stream {
	return &Stream{rdb: rdb, key: key, group: group}
}

// Append records one expiry event.
func (s *Stream) Append(ctx context.Context, key string) error {
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]interface{}{
			"key":       key,
			"event":     "expired",
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}).Err()
}

// EnsureGroup creates the consumer group at the start of the stream,
// creating the stream itself if needed. Re-creation of an existing
// group is not an error.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.key, s.group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// Entry is one delivered stream record, acknowledged by ID.
type Entry struct {
	ID    string
	Event models.ExpiryEvent
}

// ReadOne blocks up to `block` for the next undelivered entry for this
// consumer. Returns nil when the block window elapses empty.
func (s *Stream) ReadOne(ctx context.Context, consumer string, block time.Duration) (*Entry, error) {
	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{s.key, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, nil
	}
	return entryFrom(res[0].Messages[0]), nil
}

// ReadPending re-reads entries delivered to this consumer but never
// acknowledged, oldest first. Used on restart to drain the crash window.
func (s *Stream) ReadPending(ctx context.Context, consumer string) (*Entry, error) {
	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{s.key, "0"},
		Count:    1,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, nil
	}
	return entryFrom(res[0].Messages[0]), nil
}

// Ack marks an entry as handled.
func (s *Stream) Ack(ctx context.Context, id string) error {
	return s.rdb.XAck(ctx, s.key, s.group, id).Err()
}

func entryFrom(msg redis.XMessage) *Entry {
	e := &Entry{ID: msg.ID}
	if v, ok := msg.Values["key"].(string); ok {
		e.Event.Key = v
	}
	if v, ok := msg.Values["event"].(string); ok {
		e.Event.Event = v
	}
	if v, ok := msg.Values["timestamp"].(string); ok {
		e.Event.Timestamp = v
	}
	return e
}
