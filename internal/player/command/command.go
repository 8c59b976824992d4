// Package command plays the alarm through an OS player executable such as
// ffplay or mpg123. Looping restarts the process each time it exits cleanly.
package command

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/oshokin/remote-alarm/internal/player"
)

// Candidates lists the executables probed, in order, when none is configured.
//
//nolint:gochecknoglobals // Read-only lookup table.
var Candidates = []string{"ffplay", "mpg123", "paplay", "afplay"}

// ErrNoPlayer is returned when no supported executable is found in PATH.
var ErrNoPlayer = errors.New("no audio player executable found in PATH")

// Player implements player.Player by spawning one process per playback.
type Player struct {
	// binary is the resolved executable path.
	binary string
	// name is the executable base name used to pick arguments.
	name string
	// path is the loaded sound file.
	path string
	// cmd is the running process, nil when idle.
	cmd *exec.Cmd
	// session changes whenever playback is started or stopped.
	session uint64
	// volume is the percentage passed to the next spawned process.
	volume int
	// mu guards every field above.
	mu sync.Mutex
}

// New resolves binary in PATH, or probes Candidates when binary is empty.
func New(binary string) (*Player, error) {
	names := Candidates
	if binary != "" {
		names = []string{binary}
	}

	for _, name := range names {
		resolved, err := exec.LookPath(name)
		if err != nil {
			continue
		}

		return &Player{
			binary: resolved,
			name:   filepath.Base(name),
			volume: player.MaxVolume,
		}, nil
	}

	return nil, fmt.Errorf("%w: tried %v", ErrNoPlayer, names)
}

// Name returns the executable base name in use.
func (p *Player) Name() string {
	return p.name
}

// Load checks that the sound file exists and is a regular file.
func (p *Player) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat sound file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("sound file %s is a directory", path)
	}

	p.mu.Lock()
	p.path = path
	p.mu.Unlock()

	return nil
}

// Play spawns the player process, replacing any running one.
func (p *Player) Play(loop bool, onFinish func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return player.ErrNotLoaded
	}

	if err := p.stopLocked(); err != nil {
		return err
	}

	p.session++

	return p.spawnLocked(p.session, loop, onFinish)
}

// spawnLocked starts a process for session and waits for it in the background.
func (p *Player) spawnLocked(session uint64, loop bool, onFinish func()) error {
	//nolint:gosec // The binary comes from configuration or a fixed list.
	cmd := exec.Command(p.binary, Arguments(p.name, p.path, p.volume)...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.name, err)
	}

	p.cmd = cmd

	go p.wait(cmd, session, loop, onFinish)

	return nil
}

// wait reaps cmd and either respawns it for a loop or reports a natural end.
func (p *Player) wait(cmd *exec.Cmd, session uint64, loop bool, onFinish func()) {
	err := cmd.Wait()

	p.mu.Lock()

	if p.session != session {
		p.mu.Unlock()

		return
	}

	p.cmd = nil

	// A failing process would respawn in a tight loop, so only clean exits repeat.
	if loop && err == nil {
		if spawnErr := p.spawnLocked(session, loop, onFinish); spawnErr == nil {
			p.mu.Unlock()

			return
		}
	}

	p.session++
	p.mu.Unlock()

	if onFinish != nil {
		onFinish()
	}
}

// Stop kills the running process.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stopLocked()
}

func (p *Player) stopLocked() error {
	p.session++

	if p.cmd == nil {
		return nil
	}

	process := p.cmd.Process
	p.cmd = nil

	if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", p.name, err)
	}

	return nil
}

// SetVolume stores the volume for the next spawned process.
func (p *Player) SetVolume(volume int) error {
	if err := player.CheckVolume(volume); err != nil {
		return err
	}

	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()

	return nil
}

// IsPlaying reports whether a player process is running.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cmd != nil
}

// Close kills the running process.
func (p *Player) Close() error {
	return p.Stop()
}

// Arguments builds the command line for the named executable.
// Unknown executables receive the file path only.
func Arguments(name, path string, volume int) []string {
	switch name {
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(volume), path}
	case "mpg123":
		// Scale factor, 32768 is unity gain.
		return []string{"-q", "-f", strconv.Itoa(volume * 32768 / player.MaxVolume), path}
	case "paplay":
		// 65536 is 100%.
		return []string{"--volume=" + strconv.Itoa(volume*65536/player.MaxVolume), path}
	case "afplay":
		return []string{"-v", strconv.FormatFloat(float64(volume)/player.MaxVolume, 'f', 2, 64), path}
	default:
		return []string{path}
	}
}
