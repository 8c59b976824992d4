// Package device plays mp3 files in-process: go-mp3 decodes the file and an
// oto player writes the PCM stream to the default audio device.
package device

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/oshokin/remote-alarm/internal/player"
)

const (
	// channelCount is fixed by go-mp3, which always decodes to stereo.
	channelCount = 2
	// pollInterval is how often a finished playback is checked for.
	pollInterval = 100 * time.Millisecond
)

// Player implements player.Player on top of oto.
type Player struct {
	// otoCtx is created on first Load; oto allows one context per process.
	otoCtx *oto.Context
	// current is the active oto player, nil when stopped.
	current *oto.Player
	// data holds the encoded file so every Play decodes from the start.
	data []byte
	// session changes whenever playback is started or stopped.
	session uint64
	// volume is the output gain in [0, 1].
	volume float64
	// mu guards every field above.
	mu sync.Mutex
}

// New returns a device player at full volume. The audio device is opened lazily.
func New() *Player {
	return &Player{volume: 1}
}

// Load reads and probes the mp3 file, opening the audio device on first use.
func (p *Player) Load(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read sound file: %w", err)
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.otoCtx == nil {
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   decoder.SampleRate(),
			ChannelCount: channelCount,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			return fmt.Errorf("open audio device: %w", err)
		}

		<-ready

		p.otoCtx = otoCtx
	}

	p.data = data

	return nil
}

// Play starts a fresh decode of the loaded file.
func (p *Player) Play(loop bool, onFinish func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data == nil || p.otoCtx == nil {
		return player.ErrNotLoaded
	}

	p.stopLocked()

	decoder, err := mp3.NewDecoder(bytes.NewReader(p.data))
	if err != nil {
		return fmt.Errorf("decode sound file: %w", err)
	}

	var source io.Reader = decoder
	if loop {
		source = player.NewLoopReader(decoder)
	}

	current := p.otoCtx.NewPlayer(source)
	current.SetVolume(p.volume)
	current.Play()

	p.session++
	p.current = current

	go p.watch(current, p.session, onFinish)

	return nil
}

// watch waits for current to drain and reports a natural end through onFinish.
func (p *Player) watch(current *oto.Player, session uint64, onFinish func()) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()

		if p.session != session {
			p.mu.Unlock()

			return
		}

		if current.IsPlaying() {
			p.mu.Unlock()

			continue
		}

		p.current = nil
		p.session++
		p.mu.Unlock()

		if onFinish != nil {
			onFinish()
		}

		return
	}
}

// Stop silences the current playback.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	return nil
}

// stopLocked pauses the current oto player and invalidates its watcher.
// Dropped oto players are released when garbage collected.
func (p *Player) stopLocked() {
	p.session++

	if p.current == nil {
		return
	}

	p.current.Pause()
	p.current = nil
}

// SetVolume applies the volume to the current and future playbacks.
func (p *Player) SetVolume(volume int) error {
	if err := player.CheckVolume(volume); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = float64(volume) / player.MaxVolume

	if p.current != nil {
		p.current.SetVolume(p.volume)
	}

	return nil
}

// IsPlaying reports whether oto is still producing sound.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current != nil && p.current.IsPlaying()
}

// Close stops playback and suspends the audio device.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	if p.otoCtx != nil {
		if err := p.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("suspend audio device: %w", err)
		}
	}

	return nil
}
