package match_management

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/metrics"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/redislock"
)

// NameResolver maps a user id to a display name for room creation.
type NameResolver func(ctx context.Context, userID string) string

// Matchmaker pairs users out of per-bucket FIFO queues and drives the
// two-step confirmation state machine. All state lives in redis so any
// instance can serve any request.
type Matchmaker struct {
	cfg     *config.Config
	rdb     *redis.Client // matchmaking namespace
	confirm *redis.Client // confirmation namespace
	events  *event_queue.Queue
	names   NameResolver
	logger  *zap.Logger
}

func NewMatchmaker(cfg *config.Config, rdb, confirm *redis.Client, events *event_queue.Queue, logger *zap.Logger) *Matchmaker {
	return &Matchmaker{
		cfg:     cfg,
		rdb:     rdb,
		confirm: confirm,
		events:  events,
		names:   func(_ context.Context, userID string) string { return userID },
		logger:  logger,
	}
}

// SetNameResolver overrides the display-name lookup used when building
// the room-creation event. Defaults to echoing the user id.
func (m *Matchmaker) SetNameResolver(r NameResolver) { m.names = r }

// FindMatch enqueues the user into their bucket and blocks until a
// partner arrives, the request is terminated or replaced, or the wait
// budget runs out.
func (m *Matchmaker) FindMatch(ctx context.Context, userID, difficulty, category string) (*models.MatchResult, error) {
	replaced, err := m.replacePriorRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !replaced {
		// Fresh request: discard any tokens a long-dead request left
		// behind so they cannot wake this one.
		if err := m.events.DropMailboxes(ctx, userID); err != nil {
			return nil, err
		}
	}

	if err := m.rdb.HSet(ctx, keys.InQueue(userID), map[string]interface{}{
		"difficulty":  difficulty,
		"category":    category,
		"match_found": 0,
	}).Err(); err != nil {
		return nil, err
	}
	m.rdb.SAdd(ctx, keys.QueuedUsersSet, userID)

	lock, err := redislock.Acquire(ctx, m.rdb, keys.QueueLock(difficulty, category), m.cfg.LockTTL)
	if err != nil {
		return nil, err
	}

	partner, err := m.rdb.LPop(ctx, keys.Queue(difficulty, category)).Result()
	if err == redis.Nil {
		// Nobody waiting; join the queue and block for a partner.
		pushErr := m.rdb.RPush(ctx, keys.Queue(difficulty, category), userID).Err()
		lock.Release(ctx)
		if pushErr != nil {
			return nil, pushErr
		}
		return m.waitForPartner(ctx, userID, difficulty, category)
	}
	if err != nil {
		lock.Release(ctx)
		return nil, err
	}

	matchID, err := m.pairWith(ctx, userID, partner, difficulty, category)
	lock.Release(ctx)
	if err != nil {
		return nil, err
	}

	go m.superviseConfirmation(matchID, partner, userID)

	return &models.MatchResult{Status: models.StatusMatched, MatchID: matchID}, nil
}

// replacePriorRequest tears down an outstanding request for the same
// user. Returns true if one existed. A request whose pair already formed
// cannot be replaced.
func (m *Matchmaker) replacePriorRequest(ctx context.Context, userID string) (bool, error) {
	prior, err := m.rdb.HGetAll(ctx, keys.InQueue(userID)).Result()
	if err != nil {
		return false, err
	}
	if len(prior) == 0 {
		return false, nil
	}
	if prior["match_found"] == "1" {
		return false, models.ErrAlreadyQueued
	}

	m.logger.Info("replacing prior match request", zap.String("user_id", userID))

	// Wake the old waiter first; its handler returns the conflict.
	if err := m.events.NotifyNewRequest(ctx, userID); err != nil {
		return false, err
	}
	m.rdb.LRem(ctx, keys.Queue(prior["difficulty"], prior["category"]), 1, userID)
	m.rdb.Del(ctx, keys.InQueue(userID))
	return true, nil
}

// pairWith builds the confirmation record for (partner, userID) and
// wakes the waiting partner. Caller holds the bucket lock.
func (m *Matchmaker) pairWith(ctx context.Context, userID, partner, difficulty, category string) (string, error) {
	matchID := deriveMatchID(userID, partner)

	if err := m.confirm.HSet(ctx, keys.Match(matchID), map[string]interface{}{
		"user_one":              partner,
		"user_two":              userID,
		"difficulty":            difficulty,
		"category":              category,
		"user_one_confirmation": 0,
		"user_two_confirmation": 0,
	}).Err(); err != nil {
		return "", err
	}

	m.rdb.HSet(ctx, keys.InQueue(partner), "match_found", 1)
	m.rdb.HSet(ctx, keys.InQueue(userID), "match_found", 1)

	if err := m.events.NotifyMatchFound(ctx, partner, matchID); err != nil {
		// The partner never learns about the pair; the confirmation
		// supervisor times both sides out, so nothing leaks.
		m.logger.Error("failed to wake partner", zap.String("partner", partner), zap.Error(err))
	}

	metrics.MatchesFormed.Inc()
	m.logger.Info("pair formed",
		zap.String("match_id", matchID),
		zap.String("user_one", partner),
		zap.String("user_two", userID))
	return matchID, nil
}

// waitForPartner block-pops the user's rendezvous list until a token
// arrives or the wait budget elapses.
func (m *Matchmaker) waitForPartner(ctx context.Context, userID, difficulty, category string) (*models.MatchResult, error) {
	metrics.QueueWaiters.WithLabelValues(difficulty, category).Inc()
	defer metrics.QueueWaiters.WithLabelValues(difficulty, category).Dec()

	token, err := m.events.WaitMatchFound(ctx, userID, m.cfg.MatchWaitTimeout)
	if err != nil {
		return nil, err
	}

	switch token {
	case "":
		return m.abandonQueue(ctx, userID, difficulty, category)
	case models.TokenTerminate:
		return &models.MatchResult{
			Status:  models.StatusTerminated,
			Message: "match request terminated",
		}, nil
	case models.TokenNewRequest:
		return nil, models.ErrConflict
	default:
		return &models.MatchResult{Status: models.StatusMatched, MatchID: token}, nil
	}
}

// abandonQueue removes a timed-out waiter under the bucket lock.
func (m *Matchmaker) abandonQueue(ctx context.Context, userID, difficulty, category string) (*models.MatchResult, error) {
	lock, err := redislock.Acquire(ctx, m.rdb, keys.QueueLock(difficulty, category), m.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	m.rdb.LRem(ctx, keys.Queue(difficulty, category), 1, userID)
	m.rdb.Del(ctx, keys.InQueue(userID))
	m.rdb.SRem(ctx, keys.QueuedUsersSet, userID)

	m.logger.Info("match request timed out", zap.String("user_id", userID))
	return &models.MatchResult{
		Status:  models.StatusNoMatch,
		Message: "could not find a match after 3 minutes",
	}, nil
}

// TerminateMatch withdraws an outstanding request: wakes the blocked
// waiter with the terminate token and clears the queue state.
func (m *Matchmaker) TerminateMatch(ctx context.Context, userID, difficulty, category string) error {
	exists, err := m.rdb.Exists(ctx, keys.InQueue(userID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return models.ErrNotQueued
	}

	if err := m.events.NotifyTerminated(ctx, userID); err != nil {
		return err
	}

	lock, err := redislock.Acquire(ctx, m.rdb, keys.QueueLock(difficulty, category), m.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	m.rdb.LRem(ctx, keys.Queue(difficulty, category), 1, userID)
	m.rdb.Del(ctx, keys.InQueue(userID))
	m.rdb.SRem(ctx, keys.QueuedUsersSet, userID)

	m.logger.Info("match request terminated", zap.String("user_id", userID))
	return nil
}

// deriveMatchID produces the same id on both sides of a pair: a v5 uuid
// over the concatenation in (popper, popped) order.
func deriveMatchID(userID, partner string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fmt.Sprintf("%s%s", userID, partner))).String()
}
