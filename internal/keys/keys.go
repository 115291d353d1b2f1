// Package keys centralizes the redis key syntax shared by the matching,
// observer and collaboration services. Any drift between services here
// breaks cross-instance rendezvous, so nobody formats keys by hand.
package keys

import (
	"fmt"
	"strings"
)

const (
	// QueuedUsersSet tracks which users currently hold an outstanding
	// match request, independent of bucket.
	QueuedUsersSet = "queued-users"

	// CreateRoomEvent is the hash the matcher writes and the room
	// manager consumes when both sides confirm.
	CreateRoomEvent = "create_room"

	// EventManagerLock serializes create_room consumption across
	// collab instances.
	EventManagerLock = "event_manager_lock"

	heartbeatPrefix = "heartbeat:"
	cleanupPrefix   = "cleanup:"
)

// Queue returns the FIFO bucket list for a (difficulty, category) pair.
func Queue(difficulty, category string) string {
	return fmt.Sprintf("queue:%s:%s", difficulty, category)
}

// QueueLock returns the lock key guarding a bucket's pop-and-pair section.
func QueueLock(difficulty, category string) string {
	return fmt.Sprintf("lock:queue:%s:%s", difficulty, category)
}

// InQueue returns the per-user request hash key.
func InQueue(userID string) string {
	return "inqueue:" + userID
}

// Match returns the confirmation record key for a match id.
func Match(matchID string) string {
	return "match:" + matchID
}

// MatchLock returns the lock key guarding a match record's FSM writes.
func MatchLock(matchID string) string {
	return "lock:match:" + matchID
}

// MatchFound is the rendezvous list a queued user block-pops while
// waiting to be paired.
func MatchFound(userID string) string {
	return "match_found:" + userID
}

// MatchConfirm is the rendezvous list a confirming user block-pops while
// waiting for their partner's decision.
func MatchConfirm(userID string) string {
	return "match_confirm:" + userID
}

// UserRoom returns the per-user room snapshot key.
func UserRoom(userID string) string {
	return "userroom:" + userID
}

// Heartbeat returns the TTL sentinel key whose expiry means the user
// dropped out of their room.
func Heartbeat(userID string) string {
	return heartbeatPrefix + userID
}

// Cleanup returns the grace-hold sentinel key for a room.
func Cleanup(roomID string) string {
	return cleanupPrefix + roomID
}

// RoomLock returns the lock key guarding lazy question assignment.
func RoomLock(roomID string) string {
	return "lock:" + roomID
}

// HeartbeatUser extracts the user id from a heartbeat key. The second
// return is false for any other key shape.
func HeartbeatUser(key string) (string, bool) {
	if !strings.HasPrefix(key, heartbeatPrefix) {
		return "", false
	}
	return key[len(heartbeatPrefix):], true
}

// CleanupRoom extracts the room id from a cleanup sentinel key.
func CleanupRoom(key string) (string, bool) {
	if !strings.HasPrefix(key, cleanupPrefix) {
		return "", false
	}
	return key[len(cleanupPrefix):], true
}
