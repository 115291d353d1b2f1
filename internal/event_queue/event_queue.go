// Package event_queue holds every cross-service rendezvous that lives in
// the event-queue namespace: the one-shot mailbox lists the matcher and
// its waiters use, the create_room hash handed to the collaboration
// service, and the durable expired_ttl stream the observer feeds.
package event_queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
)

type Queue struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Client exposes the underlying namespace client for callers that need
// primitives outside the queue's surface, such as the event-manager lock.
func (q *Queue) Client() *redis.Client { return q.rdb }

// --- Rendezvous lists ---
//
// The waiter block-pops, the notifier right-pushes exactly one token.
// Pushing a match id wakes a queued user; the reserved tokens signal
// termination or replacement instead.

func (q *Queue) NotifyMatchFound(ctx context.Context, userID, matchID string) error {
	return q.rdb.RPush(ctx, keys.MatchFound(userID), matchID).Err()
}

func (q *Queue) NotifyTerminated(ctx context.Context, userID string) error {
	return q.rdb.RPush(ctx, keys.MatchFound(userID), models.TokenTerminate).Err()
}

func (q *Queue) NotifyNewRequest(ctx context.Context, userID string) error {
	return q.rdb.RPush(ctx, keys.MatchFound(userID), models.TokenNewRequest).Err()
}

// WaitMatchFound blocks until a token arrives for the user or the
// timeout elapses. Returns ("", nil) on timeout.
func (q *Queue) WaitMatchFound(ctx context.Context, userID string, timeout time.Duration) (string, error) {
	return q.blpop(ctx, keys.MatchFound(userID), timeout)
}

// NotifyConfirmed wakes a user blocked in confirm_match. An empty token
// means the partner declined; anything else carries the match id.
func (q *Queue) NotifyConfirmed(ctx context.Context, userID, token string) error {
	return q.rdb.RPush(ctx, keys.MatchConfirm(userID), token).Err()
}

// WaitConfirmed blocks until the partner's decision arrives or the
// timeout elapses. Timeout is reported as declined: the supervisor has a
// shorter fuse, so its empty token is observed before this fires in
// normal operation.
func (q *Queue) WaitConfirmed(ctx context.Context, userID string, timeout time.Duration) (string, bool, error) {
	token, err := q.blpopRaw(ctx, keys.MatchConfirm(userID), timeout)
	if err != nil {
		return "", false, err
	}
	if token == nil {
		return "", false, nil
	}
	return *token, true, nil
}

func (q *Queue) blpop(ctx context.Context, key string, timeout time.Duration) (string, error) {
	token, err := q.blpopRaw(ctx, key, timeout)
	if err != nil || token == nil {
		return "", err
	}
	return *token, nil
}

func (q *Queue) blpopRaw(ctx context.Context, key string, timeout time.Duration) (*string, error) {
	vals, err := q.rdb.BLPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPop returns [key, value].
	return &vals[1], nil
}

// DropMailboxes discards any stale rendezvous lists for a user. Called
// before re-queueing so a leftover token from an earlier request cannot
// wake the new one.
func (q *Queue) DropMailboxes(ctx context.Context, userID string) error {
	return q.rdb.Del(ctx, keys.MatchFound(userID), keys.MatchConfirm(userID)).Err()
}

// --- create_room event ---

func (q *Queue) PublishCreateRoom(ctx context.Context, ev models.CreateRoomEvent) error {
	return q.rdb.HSet(ctx, keys.CreateRoomEvent, map[string]interface{}{
		"match_id":      ev.MatchID,
		"user_one":      ev.UserOne,
		"user_one_name": ev.UserOneName,
		"user_two":      ev.UserTwo,
		"user_two_name": ev.UserTwoName,
		"difficulty":    ev.Difficulty,
		"category":      ev.Category,
	}).Err()
}

// PollCreateRoom returns the pending event, if any. A nil event means
// nothing is waiting.
func (q *Queue) PollCreateRoom(ctx context.Context) (*models.CreateRoomEvent, error) {
	fields, err := q.rdb.HGetAll(ctx, keys.CreateRoomEvent).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &models.CreateRoomEvent{
		MatchID:     fields["match_id"],
		UserOne:     fields["user_one"],
		UserOneName: fields["user_one_name"],
		UserTwo:     fields["user_two"],
		UserTwoName: fields["user_two_name"],
		Difficulty:  fields["difficulty"],
		Category:    fields["category"],
	}, nil
}

func (q *Queue) ConsumeCreateRoom(ctx context.Context) error {
	return q.rdb.Del(ctx, keys.CreateRoomEvent).Err()
}
