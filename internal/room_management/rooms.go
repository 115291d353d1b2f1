package room_management

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/gateway"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/keys"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/metrics"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/redislock"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/utils"
)

// QuestionFetcher samples a question for a bucket. Satisfied by
// questions.Client.
type QuestionFetcher interface {
	Fetch(ctx context.Context, category, difficulty string) (*models.Question, error)
}

// AttemptSubmitter archives a completed attempt. Satisfied by
// review.Client.
type AttemptSubmitter interface {
	Submit(ctx context.Context, attempt models.Attempt) error
}

// RoomManager owns room lifecycle: creation from confirmed matches,
// per-user heartbeats, disconnect handling with grace-period recovery,
// and teardown with downstream submission. Rooms are stored as two
// per-user snapshots so every lookup is O(1) from a user id.
type RoomManager struct {
	cfg       *config.Config
	rooms     *redis.Client // rooms namespace
	events    *event_queue.Queue
	notifier  gateway.Notifier
	questions QuestionFetcher
	review    AttemptSubmitter
	logger    *zap.Logger
	jwtSecret []byte
}

func NewRoomManager(cfg *config.Config, rooms *redis.Client, events *event_queue.Queue,
	notifier gateway.Notifier, questions QuestionFetcher, review AttemptSubmitter, logger *zap.Logger) *RoomManager {
	return &RoomManager{
		cfg:       cfg,
		rooms:     rooms,
		events:    events,
		notifier:  notifier,
		questions: questions,
		review:    review,
		logger:    logger,
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

// --- Room creation ---

// RunEventPoller consumes create_room events until the context is
// cancelled. The event-manager lock ensures exactly one collab instance
// builds each room.
func (rm *RoomManager) RunEventPoller(ctx context.Context) {
	ticker := time.NewTicker(rm.cfg.RoomPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rm.pollOnce(ctx); err != nil {
				rm.logger.Error("create_room poll failed", zap.Error(err))
			}
		}
	}
}

func (rm *RoomManager) pollOnce(ctx context.Context) error {
	lock, err := redislock.Acquire(ctx, rm.events.Client(), keys.EventManagerLock, rm.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	ev, err := rm.events.PollCreateRoom(ctx)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}

	if err := rm.CreateRoom(ctx, *ev); err != nil {
		return err
	}
	return rm.events.ConsumeCreateRoom(ctx)
}

// CreateRoom materializes both user snapshots and heartbeats for a
// confirmed match. The question is assigned lazily on first connect.
func (rm *RoomManager) CreateRoom(ctx context.Context, ev models.CreateRoomEvent) error {
	now := time.Now().Unix()

	members := []struct{ id, name, partnerID, partnerName string }{
		{ev.UserOne, ev.UserOneName, ev.UserTwo, ev.UserTwoName},
		{ev.UserTwo, ev.UserTwoName, ev.UserOne, ev.UserOneName},
	}

	pipe := rm.rooms.Pipeline()
	for _, mb := range members {
		token, err := utils.GenerateRoomToken(ev.MatchID, mb.id, rm.jwtSecret)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, keys.UserRoom(mb.id), map[string]interface{}{
			"match_id":     ev.MatchID,
			"user_id":      mb.id,
			"partner_id":   mb.partnerID,
			"partner_name": mb.partnerName,
			"difficulty":   ev.Difficulty,
			"category":     ev.Category,
			"start_time":   now,
			"room_token":   token,
		})
		pipe.Set(ctx, keys.Heartbeat(mb.id), time.Now().Format(time.RFC3339), rm.cfg.HeartbeatTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	metrics.RoomsCreated.Inc()
	rm.logger.Info("room created", zap.String("room_id", ev.MatchID))
	return nil
}

// --- Snapshot access ---

func (rm *RoomManager) loadSnapshot(ctx context.Context, userID string) (*models.RoomSnapshot, error) {
	fields, err := rm.rooms.HGetAll(ctx, keys.UserRoom(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, models.ErrNoRoom
	}

	startTime, _ := strconv.ParseInt(fields["start_time"], 10, 64)
	snap := &models.RoomSnapshot{
		MatchID:     fields["match_id"],
		UserID:      fields["user_id"],
		PartnerID:   fields["partner_id"],
		PartnerName: fields["partner_name"],
		Difficulty:  fields["difficulty"],
		Category:    fields["category"],
		StartTime:   startTime,
		RoomToken:   fields["room_token"],
	}
	if fields["question_title"] != "" {
		snap.Question = &models.Question{
			Title:          fields["question_title"],
			Description:    fields["question_description"],
			CodeTemplate:   fields["question_code_template"],
			SolutionSample: fields["question_solution_sample"],
			Difficulty:     fields["difficulty"],
			Category:       fields["category"],
		}
	}
	return snap, nil
}

func questionFields(q *models.Question) map[string]interface{} {
	return map[string]interface{}{
		"question_title":           q.Title,
		"question_description":     q.Description,
		"question_code_template":   q.CodeTemplate,
		"question_solution_sample": q.SolutionSample,
	}
}

// --- Public operations ---

// Connect is the first join of a room: verifies membership and assigns
// the question exactly once, mirroring it into both snapshots.
func (rm *RoomManager) Connect(ctx context.Context, userID, roomID string) (*models.ConnectResponse, error) {
	snap, err := rm.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap.MatchID != roomID {
		return nil, models.ErrNotInRoom
	}

	lock, err := redislock.Acquire(ctx, rm.rooms, keys.RoomLock(roomID), rm.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	// Re-read under the lock; the partner may have connected first.
	snap, err = rm.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !snap.HasQuestion() {
		question, err := rm.questions.Fetch(ctx, snap.Category, snap.Difficulty)
		if err != nil {
			return nil, models.ErrUpstream
		}
		fields := questionFields(question)
		pipe := rm.rooms.Pipeline()
		pipe.HSet(ctx, keys.UserRoom(userID), fields)
		pipe.HSet(ctx, keys.UserRoom(snap.PartnerID), fields)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		snap.Question = question
	}

	return &models.ConnectResponse{
		Question:    snap.Question,
		PartnerName: snap.PartnerName,
	}, nil
}

// Reconnect resumes an existing room within (or after) the grace
// window: cancels any pending cleanup, revives the heartbeat and tells
// the partner.
func (rm *RoomManager) Reconnect(ctx context.Context, userID string) error {
	snap, err := rm.loadSnapshot(ctx, userID)
	if err != nil {
		return err
	}

	rm.rooms.Del(ctx, keys.Cleanup(snap.MatchID))
	if err := rm.rooms.Set(ctx, keys.Heartbeat(userID), time.Now().Format(time.RFC3339), rm.cfg.HeartbeatTTL).Err(); err != nil {
		return err
	}

	if rm.heartbeatAlive(ctx, snap.PartnerID) {
		rm.notify(models.GatewayFrame{
			UserID:  snap.PartnerID,
			RoomID:  snap.MatchID,
			Message: models.MsgPartnerJoin,
		})
	}

	rm.logger.Info("user reconnected", zap.String("user_id", userID), zap.String("room_id", snap.MatchID))
	return nil
}

// Exit is a deliberate departure. Deleting a key emits no expiry event,
// so the partner-left path runs synchronously here instead of through
// the observer pipeline.
func (rm *RoomManager) Exit(ctx context.Context, userID string) error {
	if !rm.heartbeatAlive(ctx, userID) {
		return models.ErrNotInRoom
	}

	if err := rm.rooms.Del(ctx, keys.Heartbeat(userID)).Err(); err != nil {
		return err
	}

	rm.handlePartnerLeft(ctx, userID)
	rm.logger.Info("user exited room", zap.String("user_id", userID))
	return nil
}

// Terminate ends the session for both users and forwards the attempt
// for review. Teardown is idempotent; the review POST is best-effort.
func (rm *RoomManager) Terminate(ctx context.Context, userID, roomID, submittedSolution string) error {
	if !rm.heartbeatAlive(ctx, userID) {
		return models.ErrNotInRoom
	}
	snap, err := rm.loadSnapshot(ctx, userID)
	if err != nil {
		return err
	}
	if snap.MatchID != roomID {
		return models.ErrNotInRoom
	}

	rm.notify(models.GatewayFrame{
		UserID:  snap.PartnerID,
		RoomID:  roomID,
		Message: models.MsgMatchTerminate,
	})

	// Cleanup holds the room lock so it cannot interleave with Connect's
	// question mirroring and leave a recreated snapshot behind.
	lock, err := redislock.Acquire(ctx, rm.rooms, keys.RoomLock(roomID), rm.cfg.LockTTL)
	if err != nil {
		return err
	}
	pipe := rm.rooms.Pipeline()
	pipe.Del(ctx, keys.Cleanup(roomID))
	pipe.Del(ctx, keys.UserRoom(userID), keys.UserRoom(snap.PartnerID))
	pipe.Del(ctx, keys.Heartbeat(userID), keys.Heartbeat(snap.PartnerID))
	_, execErr := pipe.Exec(ctx)
	lock.Release(ctx)
	if execErr != nil {
		return execErr
	}
	metrics.RoomsCleaned.Inc()

	attempt := models.Attempt{
		Difficulty:        snap.Difficulty,
		Category:          snap.Category,
		TimeElapsed:       time.Now().Unix() - snap.StartTime,
		SubmittedSolution: submittedSolution,
		Users:             []string{userID, snap.PartnerID},
	}
	if snap.Question != nil {
		attempt.Title = snap.Question.Title
		attempt.Description = snap.Question.Description
		attempt.CodeTemplate = snap.Question.CodeTemplate
		attempt.SolutionSample = snap.Question.SolutionSample
	}
	if err := rm.review.Submit(ctx, attempt); err != nil {
		rm.logger.Error("review submission failed", zap.String("room_id", roomID), zap.Error(err))
	}

	rm.logger.Info("room terminated", zap.String("room_id", roomID), zap.String("by", userID))
	return nil
}

// HeartbeatTick refreshes the user's liveness budget. Refresh-only: a
// heartbeat is never recreated by a ping, only by room creation or an
// explicit reconnect.
func (rm *RoomManager) HeartbeatTick(ctx context.Context, userID string) {
	rm.rooms.Expire(ctx, keys.Heartbeat(userID), rm.cfg.HeartbeatTTL)
}

// --- Departure handling ---

// handlePartnerLeft runs after userID's heartbeat disappeared, whether
// by TTL expiry or explicit exit. A live partner gets notified; a dead
// pair goes into grace-hold.
func (rm *RoomManager) handlePartnerLeft(ctx context.Context, userID string) {
	snap, err := rm.loadSnapshot(ctx, userID)
	if err != nil {
		// Room already cleaned; stale expiry events land here.
		return
	}

	if rm.heartbeatAlive(ctx, snap.PartnerID) {
		rm.notify(models.GatewayFrame{
			UserID:  snap.PartnerID,
			RoomID:  snap.MatchID,
			Message: models.MsgPartnerLeft,
		})
		return
	}

	go rm.graceHold(snap.MatchID, userID, snap.PartnerID)
}

// graceHold parks a vacated room for the grace window. A reconnect from
// either side removes the sentinel and the hold exits silently;
// otherwise both snapshots are dropped in one pipeline.
func (rm *RoomManager) graceHold(roomID, departedUser, partnerID string) {
	ctx := context.Background()

	// SetNX keyed by room id keeps concurrent departures from stacking
	// holds on the same room. The TTL outlives the hold (window plus the
	// worst-case lock wait) so a crashed instance cannot strand the
	// sentinel and its snapshots forever.
	set, err := rm.rooms.SetNX(ctx, keys.Cleanup(roomID), departedUser, rm.cfg.GraceHold+rm.cfg.LockTTL).Result()
	if err != nil || !set {
		return
	}

	rm.logger.Info("grace-hold started", zap.String("room_id", roomID), zap.String("departed", departedUser))

	deadline := time.Now().Add(rm.cfg.GraceHold)
	for time.Now().Before(deadline) {
		time.Sleep(rm.cfg.GracePollInterval)
		exists, err := rm.rooms.Exists(ctx, keys.Cleanup(roomID)).Result()
		if err != nil {
			continue
		}
		if exists == 0 {
			rm.logger.Info("grace-hold cancelled by reconnect", zap.String("room_id", roomID))
			return
		}
	}

	// Same lock as Connect's question mirroring; a reconnect that got in
	// while we waited for it shows up as a missing sentinel.
	lock, err := redislock.Acquire(ctx, rm.rooms, keys.RoomLock(roomID), rm.cfg.LockTTL)
	if err != nil {
		rm.logger.Error("grace-hold could not lock room", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	defer lock.Release(ctx)

	exists, err := rm.rooms.Exists(ctx, keys.Cleanup(roomID)).Result()
	if err != nil || exists == 0 {
		rm.logger.Info("grace-hold cancelled by reconnect", zap.String("room_id", roomID))
		return
	}

	pipe := rm.rooms.Pipeline()
	pipe.Del(ctx, keys.UserRoom(departedUser), keys.UserRoom(partnerID))
	pipe.Del(ctx, keys.Cleanup(roomID))
	if _, err := pipe.Exec(ctx); err != nil {
		rm.logger.Error("grace-hold cleanup failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}

	metrics.RoomsCleaned.Inc()
	rm.logger.Info("room cleaned after grace-hold", zap.String("room_id", roomID))
}

func (rm *RoomManager) heartbeatAlive(ctx context.Context, userID string) bool {
	exists, err := rm.rooms.Exists(ctx, keys.Heartbeat(userID)).Result()
	return err == nil && exists == 1
}

// notify pushes a frame through the gateway. Delivery failures are
// logged, never propagated: local state transitions must not block on
// the notification channel.
func (rm *RoomManager) notify(frame models.GatewayFrame) {
	if err := rm.notifier.Notify(frame); err != nil {
		rm.logger.Warn("gateway notification failed",
			zap.String("user_id", frame.UserID),
			zap.String("message", frame.Message),
			zap.Error(err))
	}
}
