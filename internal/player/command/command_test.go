package command

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/remote-alarm/internal/player"
)

// writeScript creates a shell script used as the "sound file" handed to sh.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alarm.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

// TestArguments verifies the volume mapping per executable.
func TestArguments(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", "70", "a.mp3"},
		Arguments("ffplay", "a.mp3", 70))
	require.Equal(t, []string{"-q", "-f", "16384", "a.mp3"}, Arguments("mpg123", "a.mp3", 50))
	require.Equal(t, []string{"--volume=65536", "a.mp3"}, Arguments("paplay", "a.mp3", 100))
	require.Equal(t, []string{"-v", "0.25", "a.mp3"}, Arguments("afplay", "a.mp3", 25))
	require.Equal(t, []string{"a.mp3"}, Arguments("sh", "a.mp3", 25))
}

// TestNew_UnknownBinary asserts a missing executable is reported.
func TestNew_UnknownBinary(t *testing.T) {
	t.Parallel()

	_, err := New("definitely-not-an-audio-player")
	require.ErrorIs(t, err, ErrNoPlayer)
}

// TestPlayer_LoadAndNotLoaded covers Load validation and Play before Load.
func TestPlayer_LoadAndNotLoaded(t *testing.T) {
	t.Parallel()

	p, err := New("sh")
	require.NoError(t, err)
	require.Equal(t, "sh", p.Name())

	require.ErrorIs(t, p.Play(false, nil), player.ErrNotLoaded)
	require.Error(t, p.Load(filepath.Join(t.TempDir(), "missing.mp3")))
	require.Error(t, p.Load(t.TempDir()))
	require.ErrorIs(t, p.SetVolume(101), player.ErrVolumeOutOfRange)
}

// TestPlayer_FinishesOnItsOwn ensures onFinish fires when the process exits.
func TestPlayer_FinishesOnItsOwn(t *testing.T) {
	t.Parallel()

	p, err := New("sh")
	require.NoError(t, err)
	require.NoError(t, p.Load(writeScript(t, "exit 0\n")))

	var finished atomic.Int32

	require.NoError(t, p.Play(false, func() { finished.Add(1) }))
	require.Eventually(t, func() bool { return finished.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.False(t, p.IsPlaying())
}

// TestPlayer_StopSuppressesFinish verifies a killed process does not report a natural end.
func TestPlayer_StopSuppressesFinish(t *testing.T) {
	t.Parallel()

	p, err := New("sh")
	require.NoError(t, err)
	require.NoError(t, p.Load(writeScript(t, "sleep 30\n")))

	var finished atomic.Int32

	require.NoError(t, p.Play(true, func() { finished.Add(1) }))
	require.True(t, p.IsPlaying())

	require.NoError(t, p.Stop())
	require.False(t, p.IsPlaying())

	// Stopping twice is fine.
	require.NoError(t, p.Stop())

	time.Sleep(200 * time.Millisecond)
	require.Zero(t, finished.Load())
}

// TestPlayer_LoopRespawns checks a looping session restarts after a clean exit.
func TestPlayer_LoopRespawns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	counter := filepath.Join(dir, "runs")
	script := writeScript(t, "echo run >> "+counter+"\n")

	p, err := New("sh")
	require.NoError(t, err)
	require.NoError(t, p.Load(script))
	require.NoError(t, p.Play(true, nil))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(counter)
		return err == nil && len(data) >= len("run\n")*3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Close())
}
