package domain

import "errors"

var (
	// ErrValidation is returned when a question or player field is malformed.
	ErrValidation = errors.New("validation failed")
	// ErrPlayerNotFound is returned when an operation requires an existing player.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrQuestionNotFound indicates no question exists at the requested level.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNotRanked means the player has no leaderboard events yet.
	ErrNotRanked = errors.New("player has no leaderboard entry")
	// ErrInvalidTransition is returned when a session command is not allowed in its current state.
	ErrInvalidTransition = errors.New("command not allowed in current session state")
	// ErrUnauthorized indicates bad admin credentials or a bad token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionNotFound is returned when a session ID is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
)
