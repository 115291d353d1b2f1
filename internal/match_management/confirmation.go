package match_management

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/metrics"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/redislock"
)

const partnerDeclinedMsg = "partner declined the match"

// ConfirmMatch records one side's acceptance. The second confirmer
// finalizes the pair under the match lock; the first blocks on its
// rendezvous list for the partner's decision.
func (m *Matchmaker) ConfirmMatch(ctx context.Context, matchID, userID string) (*models.ConfirmOutcome, error) {
	details, err := m.readMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if details.Partner(userID) == "" {
		return nil, models.ErrNotMember
	}

	lock, err := redislock.Acquire(ctx, m.confirm, keys.MatchLock(matchID), m.cfg.LockTTL)
	if err != nil {
		return nil, err
	}

	// The supervisor may have torn the record down while we waited for
	// the lock.
	exists, err := m.confirm.Exists(ctx, keys.Match(matchID)).Result()
	if err != nil || exists == 0 {
		lock.Release(ctx)
		if err != nil {
			return nil, err
		}
		return &models.ConfirmOutcome{Confirmed: false, Message: partnerDeclinedMsg}, nil
	}

	field := "user_one_confirmation"
	if userID == details.UserTwo {
		field = "user_two_confirmation"
	}
	if err := m.confirm.HSet(ctx, keys.Match(matchID), field, 1).Err(); err != nil {
		lock.Release(ctx)
		return nil, err
	}

	both, err := m.bothConfirmed(ctx, matchID)
	if err != nil {
		lock.Release(ctx)
		return nil, err
	}

	if both {
		err := m.finalizeMatch(ctx, details, userID)
		lock.Release(ctx)
		if err != nil {
			return nil, err
		}
		return &models.ConfirmOutcome{Confirmed: true, Details: details}, nil
	}

	// First confirmer: wait for the partner. The lock must not be held
	// across the block-pop.
	lock.Release(ctx)

	token, woken, err := m.events.WaitConfirmed(ctx, userID, m.cfg.ConfirmWaitTimeout)
	if err != nil {
		return nil, err
	}
	if !woken || token == "" {
		// Empty token is the supervisor's abandon signal; a timeout
		// means even the supervisor never fired, same outcome.
		return &models.ConfirmOutcome{Confirmed: false, Message: partnerDeclinedMsg}, nil
	}
	return &models.ConfirmOutcome{Confirmed: true, Details: details}, nil
}

// finalizeMatch runs the match-confirmed side effects. Caller holds the
// match lock.
func (m *Matchmaker) finalizeMatch(ctx context.Context, details *models.MatchDetails, confirmer string) error {
	partner := details.Partner(confirmer)

	ev := models.CreateRoomEvent{
		MatchID:     details.MatchID,
		UserOne:     details.UserOne,
		UserOneName: m.names(ctx, details.UserOne),
		UserTwo:     details.UserTwo,
		UserTwoName: m.names(ctx, details.UserTwo),
		Difficulty:  details.Difficulty,
		Category:    details.Category,
	}
	if err := m.events.PublishCreateRoom(ctx, ev); err != nil {
		return err
	}

	if err := m.events.NotifyConfirmed(ctx, partner, details.MatchID); err != nil {
		return err
	}

	m.rdb.SRem(ctx, keys.QueuedUsersSet, details.UserOne, details.UserTwo)
	m.rdb.Del(ctx, keys.InQueue(details.UserOne), keys.InQueue(details.UserTwo))
	if err := m.confirm.Del(ctx, keys.Match(details.MatchID)).Err(); err != nil {
		return err
	}

	metrics.MatchesConfirmed.Inc()
	m.logger.Info("match confirmed", zap.String("match_id", details.MatchID))
	return nil
}

// superviseConfirmation watches a freshly formed pair. If the record
// still exists after the grace window, whoever confirmed gets woken with
// the abandon token and everything is cleaned up.
func (m *Matchmaker) superviseConfirmation(matchID, userOne, userTwo string) {
	time.Sleep(m.cfg.SupervisorDelay)

	ctx := context.Background()

	// Teardown races finalizeMatch on the same record; both hold the
	// match lock so the record is deleted exactly once and the waiter's
	// mailbox never sees a decline token after a finalize.
	lock, err := redislock.Acquire(ctx, m.confirm, keys.MatchLock(matchID), m.cfg.LockTTL)
	if err != nil {
		m.logger.Error("confirmation supervisor could not lock match", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	defer lock.Release(ctx)

	fields, err := m.confirm.HGetAll(ctx, keys.Match(matchID)).Result()
	if err != nil {
		m.logger.Error("confirmation supervisor read failed", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	if len(fields) == 0 {
		return // confirmed and finalized in time
	}

	if fields["user_one_confirmation"] == "1" {
		m.events.NotifyConfirmed(ctx, userOne, "")
	}
	if fields["user_two_confirmation"] == "1" {
		m.events.NotifyConfirmed(ctx, userTwo, "")
	}

	m.confirm.Del(ctx, keys.Match(matchID))
	m.rdb.Del(ctx, keys.InQueue(userOne), keys.InQueue(userTwo))
	m.rdb.SRem(ctx, keys.QueuedUsersSet, userOne, userTwo)

	metrics.MatchesAbandoned.Inc()
	m.logger.Info("match abandoned by supervisor", zap.String("match_id", matchID))
}

// readMatch loads the confirmation record, mapping absence to
// ErrInvalidMatch.
func (m *Matchmaker) readMatch(ctx context.Context, matchID string) (*models.MatchDetails, error) {
	fields, err := m.confirm.HGetAll(ctx, keys.Match(matchID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, models.ErrInvalidMatch
	}
	return &models.MatchDetails{
		MatchID:    matchID,
		UserOne:    fields["user_one"],
		UserTwo:    fields["user_two"],
		Difficulty: fields["difficulty"],
		Category:   fields["category"],
	}, nil
}

func (m *Matchmaker) bothConfirmed(ctx context.Context, matchID string) (bool, error) {
	fields, err := m.confirm.HGetAll(ctx, keys.Match(matchID)).Result()
	if err != nil {
		return false, err
	}
	return fields["user_one_confirmation"] == "1" && fields["user_two_confirmation"] == "1", nil
}
