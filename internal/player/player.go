package player

import (
	"errors"
	"fmt"
)

// Player plays a single loaded sound file.
//
// Implementations must be safe for concurrent use. onFinish passed to Play is
// invoked on a separate goroutine when playback ends on its own; it is never
// invoked after Stop or after a subsequent Play replaced the session.
type Player interface {
	// Load opens and checks the sound file used by subsequent Play calls.
	Load(path string) error
	// Play starts the loaded file from the beginning, replacing any current playback.
	Play(loop bool, onFinish func()) error
	// Stop silences the output. Stopping an idle player is not an error.
	Stop() error
	// SetVolume sets the output volume in percent.
	SetVolume(volume int) error
	// IsPlaying reports whether sound is being produced.
	IsPlaying() bool
	// Close stops playback and releases the audio resources.
	Close() error
}

// MaxVolume is the upper bound of the volume scale.
const MaxVolume = 100

var (
	// ErrNotLoaded is returned by Play before a successful Load.
	ErrNotLoaded = errors.New("no sound file loaded")
	// ErrVolumeOutOfRange is returned for a volume outside [0, MaxVolume].
	ErrVolumeOutOfRange = errors.New("volume out of range")
)

// CheckVolume returns ErrVolumeOutOfRange unless 0 <= volume <= MaxVolume.
func CheckVolume(volume int) error {
	if volume < 0 || volume > MaxVolume {
		return fmt.Errorf("%w: %d", ErrVolumeOutOfRange, volume)
	}

	return nil
}
