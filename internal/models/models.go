package models

// Difficulty levels
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Rendezvous tokens pushed onto a waiter's match_found list. Anything
// else on the list is a match id.
const (
	TokenTerminate  = "terminate"
	TokenNewRequest = "new request made"
)

type MatchRequest struct {
	UserID     string `json:"user_id"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
}

type MatchConfirmRequest struct {
	UserID string `json:"user_id"`
}

type Resp struct {
	OK   bool        `json:"ok"`
	Info interface{} `json:"info"`
}

// MatchResult is what find_match resolves to once the rendezvous fires.
type MatchResult struct {
	Status  string `json:"status"`
	MatchID string `json:"match_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Match statuses surfaced to the HTTP boundary.
const (
	StatusMatched    = "matched"
	StatusNoMatch    = "no_match"
	StatusTerminated = "terminated"
)

// MatchDetails mirrors the match:{id} confirmation hash.
type MatchDetails struct {
	MatchID    string `json:"match_id"`
	UserOne    string `json:"user_one"`
	UserTwo    string `json:"user_two"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
}

// Partner returns the other member of the pair, or "" if userID is not
// a member.
func (m *MatchDetails) Partner(userID string) string {
	switch userID {
	case m.UserOne:
		return m.UserTwo
	case m.UserTwo:
		return m.UserOne
	}
	return ""
}

// ConfirmOutcome is what confirm_match resolves to.
type ConfirmOutcome struct {
	Confirmed bool          `json:"confirmed"`
	Details   *MatchDetails `json:"match_details,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// CreateRoomEvent is the one-shot hash handed from the matcher to the
// room manager when both sides confirm.
type CreateRoomEvent struct {
	MatchID     string `json:"match_id"`
	UserOne     string `json:"user_one"`
	UserOneName string `json:"user_one_name"`
	UserTwo     string `json:"user_two"`
	UserTwoName string `json:"user_two_name"`
	Difficulty  string `json:"difficulty"`
	Category    string `json:"category"`
}

// Question is the payload returned by the question-bank pool endpoint.
type Question struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	CodeTemplate   string `json:"code_template"`
	SolutionSample string `json:"solution_sample"`
	Difficulty     string `json:"difficulty"`
	Category       string `json:"category"`
}

// RoomSnapshot is the per-user room hash. Two snapshots exist per room,
// one under each user's key, so every hot path is a single O(1) lookup
// from a user id.
type RoomSnapshot struct {
	MatchID     string `json:"match_id"`
	UserID      string `json:"user_id"`
	PartnerID   string `json:"partner_id"`
	PartnerName string `json:"partner_name"`
	Difficulty  string `json:"difficulty"`
	Category    string `json:"category"`
	StartTime   int64  `json:"start_time"`
	RoomToken   string `json:"room_token,omitempty"`

	// Question fields are empty until the first connect assigns one.
	Question *Question `json:"question,omitempty"`
}

// HasQuestion reports whether lazy assignment already ran for this room.
func (s *RoomSnapshot) HasQuestion() bool {
	return s.Question != nil && s.Question.Title != ""
}

// ConnectResponse is returned from the first join of a room.
type ConnectResponse struct {
	Question    *Question `json:"question"`
	PartnerName string    `json:"partner_name"`
}

// TerminateRequest carries the submitted solution on session end.
type TerminateRequest struct {
	Data string `json:"data"`
}

// Attempt is the payload posted to the review service on terminate.
type Attempt struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	CodeTemplate      string   `json:"code_template"`
	SolutionSample    string   `json:"solution_sample"`
	Difficulty        string   `json:"difficulty"`
	Category          string   `json:"category"`
	TimeElapsed       int64    `json:"time_elapsed"`
	SubmittedSolution string   `json:"submitted_solution"`
	Users             []string `json:"users"`
}

// GatewayFrame is the JSON frame relayed to a user through the gateway
// websocket.
type GatewayFrame struct {
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id,omitempty"`
	Message string `json:"message"`
}

// Gateway frame messages.
const (
	MsgPartnerLeft    = "partner_left"
	MsgPartnerJoin    = "partner_join"
	MsgMatchTerminate = "match_terminate"
	MsgHeartbeat      = "heartbeat"
)

// ExpiryEvent is one entry of the expired_ttl stream.
type ExpiryEvent struct {
	Key       string `json:"key"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}
