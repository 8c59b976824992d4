package alarm

import (
	"math"
	"time"
)

// Mode is the current playback intent.
type Mode string

const (
	// ModeIdle means nothing is playing and no timer is armed.
	ModeIdle Mode = "idle"
	// ModePlayingOnce means the alarm file plays through a single time.
	ModePlayingOnce Mode = "playing_once"
	// ModeLooping means the alarm file repeats until the loop deadline.
	ModeLooping Mode = "looping"
	// ModeStopping is reported by Snapshot.Status while a delayed stop is armed.
	ModeStopping Mode = "stopping"
)

// Snapshot is a point-in-time read of the alarm state.
type Snapshot struct {
	// TakenAt is the clock reading the snapshot was computed against.
	TakenAt time.Time
	// StartedAt is when the current playback began, zero when idle.
	StartedAt time.Time
	// LoopDeadline is when a looping session auto-stops, zero otherwise.
	LoopDeadline time.Time
	// PendingStopAt is when a delayed stop fires, zero when none is armed.
	PendingStopAt time.Time
	// Mode is the playback intent.
	Mode Mode
	// Volume is the output volume in percent.
	Volume int
	// IsPlaying reports whether the player is producing sound.
	IsPlaying bool
}

// DelayedStopArmed reports whether a delayed stop is scheduled.
func (s *Snapshot) DelayedStopArmed() bool {
	return !s.PendingStopAt.IsZero()
}

// Status returns the mode with the delayed-stop sub-state folded in.
func (s *Snapshot) Status() Mode {
	if s.Mode != ModeIdle && s.DelayedStopArmed() {
		return ModeStopping
	}

	return s.Mode
}

// Deadline returns the sooner of the loop deadline and the pending stop.
// The boolean is false when neither is set.
func (s *Snapshot) Deadline() (time.Time, bool) {
	switch {
	case s.LoopDeadline.IsZero() && s.PendingStopAt.IsZero():
		return time.Time{}, false
	case s.LoopDeadline.IsZero():
		return s.PendingStopAt, true
	case s.PendingStopAt.IsZero():
		return s.LoopDeadline, true
	case s.PendingStopAt.Before(s.LoopDeadline):
		return s.PendingStopAt, true
	default:
		return s.LoopDeadline, true
	}
}

// Remaining returns the time left until the active deadline, never negative.
func (s *Snapshot) Remaining() (time.Duration, bool) {
	deadline, ok := s.Deadline()
	if !ok {
		return 0, false
	}

	return max(deadline.Sub(s.TakenAt), 0), true
}

// RemainingSeconds returns the remaining time rounded up to whole seconds,
// or nil when no deadline is active.
func (s *Snapshot) RemainingSeconds() *int64 {
	remaining, ok := s.Remaining()
	if !ok {
		return nil
	}

	seconds := int64(math.Ceil(remaining.Seconds()))

	return &seconds
}
