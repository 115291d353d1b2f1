package match_management

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
)

// setupTestRedis creates a miniredis instance and a redis client for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

// testConfig shrinks the production wait budgets so tests finish fast.
func testConfig() *config.Config {
	return &config.Config{
		RedisStreamKey:     "expired_ttl",
		RedisGroup:         "collab",
		JWTSecret:          "test-secret",
		MatchWaitTimeout:   time.Second,
		ConfirmWaitTimeout: time.Second,
		SupervisorDelay:    300 * time.Millisecond,
		HeartbeatTTL:       time.Minute,
		GraceHold:          300 * time.Millisecond,
		GracePollInterval:  20 * time.Millisecond,
		LockTTL:            5 * time.Second,
		HeartbeatPeriod:    time.Minute,
		RoomPollInterval:   20 * time.Millisecond,
	}
}

func setupMatchmaker(t *testing.T) (*Matchmaker, *redis.Client, *event_queue.Queue) {
	_, rdb := setupTestRedis(t)
	events := event_queue.New(rdb)
	mm := NewMatchmaker(testConfig(), rdb, rdb, events, zap.NewNop())
	return mm, rdb, events
}

func waitForQueueMember(t *testing.T, rdb *redis.Client, difficulty, category, userID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		members := rdb.LRange(context.Background(), keys.Queue(difficulty, category), 0, -1).Val()
		for _, m := range members {
			if m == userID {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %s never appeared in queue", userID)
}

func TestFindMatchPairsTwoUsers(t *testing.T) {
	mm, rdb, _ := setupMatchmaker(t)
	ctx := context.Background()

	type outcome struct {
		result *models.MatchResult
		err    error
	}
	aliceDone := make(chan outcome, 1)
	go func() {
		res, err := mm.FindMatch(ctx, "alice", "easy", "arrays")
		aliceDone <- outcome{res, err}
	}()

	waitForQueueMember(t, rdb, "easy", "arrays", "alice")

	bobResult, err := mm.FindMatch(ctx, "bob", "easy", "arrays")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusMatched, bobResult.Status)
	assert.NotEmpty(t, bobResult.MatchID)

	select {
	case got := <-aliceDone:
		assert.NoError(t, got.err)
		assert.Equal(t, models.StatusMatched, got.result.Status)
		assert.Equal(t, bobResult.MatchID, got.result.MatchID, "both sides must observe the same match id")
	case <-time.After(2 * time.Second):
		t.Fatal("alice never woke up")
	}

	// Both in-queue records flip to match_found.
	assert.Equal(t, "1", rdb.HGet(ctx, keys.InQueue("alice"), "match_found").Val())
	assert.Equal(t, "1", rdb.HGet(ctx, keys.InQueue("bob"), "match_found").Val())

	// The confirmation record references both users.
	fields := rdb.HGetAll(ctx, keys.Match(bobResult.MatchID)).Val()
	assert.Equal(t, "alice", fields["user_one"])
	assert.Equal(t, "bob", fields["user_two"])
	assert.Equal(t, "0", fields["user_one_confirmation"])
	assert.Equal(t, "0", fields["user_two_confirmation"])
}

func TestFindMatchTimesOut(t *testing.T) {
	mm, rdb, _ := setupMatchmaker(t)
	ctx := context.Background()

	result, err := mm.FindMatch(ctx, "alice", "hard", "graphs")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusNoMatch, result.Status)
	assert.Equal(t, "could not find a match after 3 minutes", result.Message)

	// The bucket and the in-queue record return to their pre-call state.
	assert.Empty(t, rdb.LRange(ctx, keys.Queue("hard", "graphs"), 0, -1).Val())
	assert.Equal(t, int64(0), rdb.Exists(ctx, keys.InQueue("alice")).Val())
	assert.False(t, rdb.SIsMember(ctx, keys.QueuedUsersSet, "alice").Val())
}

func TestTerminateMatchWakesWaiter(t *testing.T) {
	mm, rdb, _ := setupMatchmaker(t)
	ctx := context.Background()

	done := make(chan *models.MatchResult, 1)
	go func() {
		res, err := mm.FindMatch(ctx, "alice", "easy", "arrays")
		assert.NoError(t, err)
		done <- res
	}()

	waitForQueueMember(t, rdb, "easy", "arrays", "alice")

	assert.NoError(t, mm.TerminateMatch(ctx, "alice", "easy", "arrays"))

	select {
	case res := <-done:
		assert.Equal(t, models.StatusTerminated, res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never observed termination")
	}

	assert.Empty(t, rdb.LRange(ctx, keys.Queue("easy", "arrays"), 0, -1).Val())
	assert.Equal(t, int64(0), rdb.Exists(ctx, keys.InQueue("alice")).Val())
}

func TestTerminateMatchNotQueued(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)

	err := mm.TerminateMatch(context.Background(), "nobody", "easy", "arrays")
	assert.ErrorIs(t, err, models.ErrNotQueued)
}

func TestFindMatchReplacesPriorRequest(t *testing.T) {
	mm, rdb, _ := setupMatchmaker(t)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := mm.FindMatch(ctx, "alice", "easy", "arrays")
		firstDone <- err
	}()

	waitForQueueMember(t, rdb, "easy", "arrays", "alice")

	secondDone := make(chan *models.MatchResult, 1)
	go func() {
		res, err := mm.FindMatch(ctx, "alice", "medium", "strings")
		assert.NoError(t, err)
		secondDone <- res
	}()

	select {
	case err := <-firstDone:
		assert.ErrorIs(t, err, models.ErrConflict)
	case <-time.After(2 * time.Second):
		t.Fatal("first request never failed")
	}

	// The replaced request is out of its old bucket; the new one waits
	// in the new bucket until its own timeout.
	assert.Empty(t, rdb.LRange(ctx, keys.Queue("easy", "arrays"), 0, -1).Val())

	select {
	case res := <-secondDone:
		assert.Equal(t, models.StatusNoMatch, res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("second request never resolved")
	}
}

func TestFindMatchRefusedWhenMatchPending(t *testing.T) {
	mm, rdb, _ := setupMatchmaker(t)
	ctx := context.Background()

	// A pair already formed for alice; a new request cannot replace it.
	rdb.HSet(ctx, keys.InQueue("alice"), map[string]interface{}{
		"difficulty":  "easy",
		"category":    "arrays",
		"match_found": 1,
	})

	_, err := mm.FindMatch(ctx, "alice", "easy", "arrays")
	assert.ErrorIs(t, err, models.ErrAlreadyQueued)
}

func TestDeriveMatchIDDeterministic(t *testing.T) {
	a := deriveMatchID("bob", "alice")
	b := deriveMatchID("bob", "alice")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, deriveMatchID("alice", "bob"))
}

func TestFindMatchFIFOWithinBucket(t *testing.T) {
	mm, rdb, _ := setupMatchmaker(t)
	ctx := context.Background()

	// Pop-on-arrival never leaves two waiters queued through the public
	// API, so seed the bucket directly to pin the ordering.
	for _, user := range []string{"first", "second"} {
		rdb.RPush(ctx, keys.Queue("easy", "arrays"), user)
		rdb.HSet(ctx, keys.InQueue(user), map[string]interface{}{
			"difficulty":  "easy",
			"category":    "arrays",
			"match_found": 0,
		})
		rdb.SAdd(ctx, keys.QueuedUsersSet, user)
	}

	// The next arrival pairs with the head of the queue.
	res, err := mm.FindMatch(ctx, "third", "easy", "arrays")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusMatched, res.Status)

	fields := rdb.HGetAll(ctx, keys.Match(res.MatchID)).Val()
	assert.Equal(t, "first", fields["user_one"])
	assert.Equal(t, "third", fields["user_two"])

	// The second user stays queued.
	assert.Equal(t, []string{"second"}, rdb.LRange(ctx, keys.Queue("easy", "arrays"), 0, -1).Val())
}
