// Package alarm contains core domain types for the alarm playback logic.
//
// It defines the playback Mode, the immutable Snapshot returned to callers
// and the error kinds (ValidationError, PlaybackError) shared by the state
// machine and the HTTP layer.
package alarm
