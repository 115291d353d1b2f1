package models

import "errors"

// Sentinel errors the HTTP layer maps onto status codes. Background
// workers log these and continue; only request handlers surface them.
var (
	ErrAlreadyQueued = errors.New("user already has a match waiting for confirmation")
	ErrNotQueued     = errors.New("user is not in the queue")
	ErrInvalidMatch  = errors.New("match does not exist")
	ErrNotMember     = errors.New("user is not part of this match")
	ErrConflict      = errors.New("a newer request replaced this one")
	ErrNoRoom        = errors.New("user has no active room")
	ErrNotInRoom     = errors.New("user is not in the room")
	ErrUpstream      = errors.New("upstream service unavailable")
)
