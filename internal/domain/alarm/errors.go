package alarm

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrPlayback matches every PlaybackError via errors.Is.
	ErrPlayback = errors.New("playback failed")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	// Field names the rejected input.
	Field string
	// Reason describes what is wrong with it.
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PlaybackError reports that the player failed to start or change audio output.
type PlaybackError struct {
	// Action is the state machine operation that was attempted.
	Action string
	// Err is the underlying player failure.
	Err error
}

// Error implements error.
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

// Unwrap returns the underlying player failure.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPlayback) match.
func (e *PlaybackError) Is(target error) bool {
	return target == ErrPlayback
}
