package match_management

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/redislock"
)

func seedMatch(t *testing.T, mm *Matchmaker, matchID string) {
	t.Helper()
	err := mm.confirm.HSet(context.Background(), keys.Match(matchID), map[string]interface{}{
		"user_one":              "alice",
		"user_two":              "bob",
		"difficulty":            "easy",
		"category":              "arrays",
		"user_one_confirmation": 0,
		"user_two_confirmation": 0,
	}).Err()
	assert.NoError(t, err)
}

func TestConfirmMatchBothSides(t *testing.T) {
	mm, rdb, events := setupMatchmaker(t)
	ctx := context.Background()

	seedMatch(t, mm, "match-1")
	rdb.HSet(ctx, keys.InQueue("alice"), "match_found", 1)
	rdb.HSet(ctx, keys.InQueue("bob"), "match_found", 1)
	rdb.SAdd(ctx, keys.QueuedUsersSet, "alice", "bob")

	type outcome struct {
		out *models.ConfirmOutcome
		err error
	}
	aliceDone := make(chan outcome, 1)
	go func() {
		out, err := mm.ConfirmMatch(ctx, "match-1", "alice")
		aliceDone <- outcome{out, err}
	}()

	// Wait until alice's confirmation flag lands before bob confirms.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if mm.confirm.HGet(ctx, keys.Match("match-1"), "user_one_confirmation").Val() == "1" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	bobOut, err := mm.ConfirmMatch(ctx, "match-1", "bob")
	assert.NoError(t, err)
	assert.True(t, bobOut.Confirmed)
	assert.Equal(t, "alice", bobOut.Details.UserOne)

	select {
	case got := <-aliceDone:
		assert.NoError(t, got.err)
		assert.True(t, got.out.Confirmed)
	case <-time.After(2 * time.Second):
		t.Fatal("first confirmer never woke up")
	}

	// A confirmed match emits a room-creation event and clears all
	// matchmaking state for both users.
	ev, err := events.PollCreateRoom(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, ev)
	assert.Equal(t, "match-1", ev.MatchID)
	assert.Equal(t, "alice", ev.UserOne)
	assert.Equal(t, "bob", ev.UserTwo)

	assert.Equal(t, int64(0), mm.confirm.Exists(ctx, keys.Match("match-1")).Val())
	assert.Equal(t, int64(0), rdb.Exists(ctx, keys.InQueue("alice")).Val())
	assert.Equal(t, int64(0), rdb.Exists(ctx, keys.InQueue("bob")).Val())
	assert.False(t, rdb.SIsMember(ctx, keys.QueuedUsersSet, "alice").Val())
}

func TestConfirmMatchUsesNameResolver(t *testing.T) {
	mm, _, events := setupMatchmaker(t)
	ctx := context.Background()

	mm.SetNameResolver(func(_ context.Context, userID string) string {
		return "display-" + userID
	})

	seedMatch(t, mm, "match-1")
	mm.confirm.HSet(ctx, keys.Match("match-1"), "user_one_confirmation", 1)

	out, err := mm.ConfirmMatch(ctx, "match-1", "bob")
	assert.NoError(t, err)
	assert.True(t, out.Confirmed)

	ev, err := events.PollCreateRoom(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, ev)
	assert.Equal(t, "display-alice", ev.UserOneName)
	assert.Equal(t, "display-bob", ev.UserTwoName)
}

func TestConfirmMatchInvalidID(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)

	_, err := mm.ConfirmMatch(context.Background(), "no-such-match", "alice")
	assert.ErrorIs(t, err, models.ErrInvalidMatch)
}

func TestConfirmMatchNotMember(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)

	seedMatch(t, mm, "match-1")

	_, err := mm.ConfirmMatch(context.Background(), "match-1", "mallory")
	assert.ErrorIs(t, err, models.ErrNotMember)
}

func TestSupervisorAbandonsUnconfirmedMatch(t *testing.T) {
	mm, rdb, _ := setupMatchmaker(t)
	ctx := context.Background()

	seedMatch(t, mm, "match-1")
	mm.confirm.HSet(ctx, keys.Match("match-1"), "user_one_confirmation", 1)
	rdb.HSet(ctx, keys.InQueue("alice"), "match_found", 1)
	rdb.HSet(ctx, keys.InQueue("bob"), "match_found", 1)
	rdb.SAdd(ctx, keys.QueuedUsersSet, "alice", "bob")

	mm.superviseConfirmation("match-1", "alice", "bob")

	// The confirmed side gets the abandon token; the silent side gets
	// nothing.
	token, woken, err := mm.events.WaitConfirmed(ctx, "alice", time.Second)
	assert.NoError(t, err)
	assert.True(t, woken)
	assert.Empty(t, token)

	_, woken, err = mm.events.WaitConfirmed(ctx, "bob", time.Second)
	assert.NoError(t, err)
	assert.False(t, woken)

	assert.Equal(t, int64(0), mm.confirm.Exists(ctx, keys.Match("match-1")).Val())
	assert.Equal(t, int64(0), rdb.Exists(ctx, keys.InQueue("alice")).Val())
	assert.False(t, rdb.SIsMember(ctx, keys.QueuedUsersSet, "bob").Val())
}

func TestSupervisorLeavesConfirmedMatchAlone(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)
	ctx := context.Background()

	// The record is already gone, as after a successful finalize.
	mm.superviseConfirmation("match-gone", "alice", "bob")

	// No stray wakeups for either side.
	_, woken, err := mm.events.WaitConfirmed(ctx, "alice", time.Second)
	assert.NoError(t, err)
	assert.False(t, woken)
}

func TestFirstConfirmerSeesPartnerDecline(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)
	ctx := context.Background()

	seedMatch(t, mm, "match-1")

	done := make(chan *models.ConfirmOutcome, 1)
	go func() {
		out, err := mm.ConfirmMatch(ctx, "match-1", "alice")
		assert.NoError(t, err)
		done <- out
	}()

	// The supervisor fires while alice waits for bob.
	time.Sleep(100 * time.Millisecond)
	mm.superviseConfirmation("match-1", "alice", "bob")

	select {
	case out := <-done:
		assert.False(t, out.Confirmed)
		assert.Equal(t, partnerDeclinedMsg, out.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("first confirmer never resolved")
	}
}

func TestSupervisorDefersToMatchLock(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)
	ctx := context.Background()

	seedMatch(t, mm, "match-1")
	mm.confirm.HSet(ctx, keys.Match("match-1"), "user_one_confirmation", 1)

	// A finalize in flight holds the match lock.
	lock, err := redislock.Acquire(ctx, mm.confirm, keys.MatchLock("match-1"), 5*time.Second)
	assert.NoError(t, err)

	done := make(chan struct{})
	go func() {
		mm.superviseConfirmation("match-1", "alice", "bob")
		close(done)
	}()

	// Well past the supervisor delay the lock is still held: the record
	// must be intact and no decline token delivered.
	time.Sleep(mm.cfg.SupervisorDelay + 200*time.Millisecond)
	assert.Equal(t, int64(1), mm.confirm.Exists(ctx, keys.Match("match-1")).Val())
	assert.Equal(t, int64(0), mm.events.Client().LLen(ctx, keys.MatchConfirm("alice")).Val())

	// The finalize completes: record deleted under the lock, lock
	// released. The supervisor then finds nothing to abandon.
	mm.confirm.Del(ctx, keys.Match("match-1"))
	assert.NoError(t, lock.Release(ctx))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor never finished")
	}
	assert.Equal(t, int64(0), mm.events.Client().LLen(ctx, keys.MatchConfirm("alice")).Val())
}

func TestConfirmMatchAfterSupervisorTeardown(t *testing.T) {
	mm, _, _ := setupMatchmaker(t)
	ctx := context.Background()

	seedMatch(t, mm, "match-1")

	// Simulate the supervisor deleting the record between the membership
	// read and the lock acquisition: delete the record while nothing
	// holds the lock, then confirm.
	details, err := mm.readMatch(ctx, "match-1")
	assert.NoError(t, err)
	assert.Equal(t, "bob", details.Partner("alice"))

	mm.confirm.Del(ctx, keys.Match("match-1"))

	out, err := mm.ConfirmMatch(ctx, "match-1", "alice")
	assert.ErrorIs(t, err, models.ErrInvalidMatch)
	assert.Nil(t, out)
}
