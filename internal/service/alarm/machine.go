package alarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	domain "github.com/oshokin/remote-alarm/internal/domain/alarm"
	"github.com/oshokin/remote-alarm/internal/logger"
	"github.com/oshokin/remote-alarm/internal/player"
)

const (
	// DefaultLoopDuration bounds a looping session.
	DefaultLoopDuration = 6 * time.Hour
	// DefaultStopDelay is used by StopDelayed for a non-positive delay.
	DefaultStopDelay = 10 * time.Second
	// DefaultVolume is applied when Options.Volume is nil.
	DefaultVolume = 70
)

// errAlarmFileRequired is returned by NewMachine without an alarm file.
var errAlarmFileRequired = errors.New("alarm file must be provided")

// Options configures a Machine.
type Options struct {
	// Clock drives timers and timestamps; nil uses the real clock.
	Clock clockwork.Clock
	// Volume is the initial volume in percent; nil uses DefaultVolume.
	Volume *int
	// AlarmFile is loaded into the player on every play.
	AlarmFile string
	// LoopDuration bounds a looping session; zero uses DefaultLoopDuration.
	LoopDuration time.Duration
	// StopDelay is the default delay of StopDelayed; zero uses DefaultStopDelay.
	StopDelay time.Duration
}

// Machine owns the playback mode, its deadlines and the single pending timer.
type Machine struct {
	// player produces the sound.
	player player.Player
	// clock drives timers and timestamps.
	clock clockwork.Clock
	// alarmFile is the sound handed to the player.
	alarmFile string
	// loopDuration bounds a looping session.
	loopDuration time.Duration
	// stopDelay is the default delayed-stop wait.
	stopDelay time.Duration

	// mode is the playback intent.
	mode domain.Mode
	// startedAt is when the current playback began.
	startedAt time.Time
	// loopDeadline is when looping auto-stops.
	loopDeadline time.Time
	// pendingStopAt is when the delayed stop fires.
	pendingStopAt time.Time
	// volume is the output volume in percent.
	volume int
	// generation changes on every mode or timer change; timers armed for an
	// older generation are stale.
	generation uint64
	// session changes whenever a new playback starts or playback is reset;
	// player completion callbacks for an older session are stale.
	session uint64
	// timer is the only pending timer, nil when none is armed.
	timer clockwork.Timer
	// mu guards every field above.
	mu sync.Mutex
}

// NewMachine returns an idle machine and applies the initial volume to p.
func NewMachine(p player.Player, opts *Options) (*Machine, error) {
	if opts == nil {
		opts = new(Options)
	}

	if opts.AlarmFile == "" {
		return nil, errAlarmFileRequired
	}

	m := &Machine{
		player:       p,
		clock:        opts.Clock,
		alarmFile:    opts.AlarmFile,
		loopDuration: opts.LoopDuration,
		stopDelay:    opts.StopDelay,
		mode:         domain.ModeIdle,
		volume:       DefaultVolume,
	}

	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}

	if m.loopDuration <= 0 {
		m.loopDuration = DefaultLoopDuration
	}

	if m.stopDelay <= 0 {
		m.stopDelay = DefaultStopDelay
	}

	if opts.Volume != nil {
		if err := validateVolume(*opts.Volume); err != nil {
			return nil, err
		}

		m.volume = *opts.Volume
	}

	if err := p.SetVolume(m.volume); err != nil {
		return nil, &domain.PlaybackError{Action: "set volume", Err: err}
	}

	return m, nil
}

// LoopDuration returns the configured loop window.
func (m *Machine) LoopDuration() time.Duration {
	return m.loopDuration
}

// StopDelay returns the default delayed-stop wait.
func (m *Machine) StopDelay() time.Duration {
	return m.stopDelay
}

// PlayOnce restarts the alarm from the beginning without looping.
// A loop or delayed stop in progress is cancelled.
func (m *Machine) PlayOnce(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimerLocked()
	m.generation++

	m.mode = domain.ModePlayingOnce
	m.startedAt = m.clock.Now()
	m.loopDeadline = time.Time{}
	m.pendingStopAt = time.Time{}

	if err := m.startLocked(ctx, false); err != nil {
		logger.ErrorKV(ctx, "Failed to play alarm once", "alarm_file", m.alarmFile, "error", err)

		return &domain.PlaybackError{Action: "play once", Err: err}
	}

	logger.InfoKV(ctx, "Playing alarm once", "alarm_file", m.alarmFile, "volume", m.volume)

	return nil
}

// Loop plays the alarm repeatedly until the loop window elapses.
func (m *Machine) Loop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimerLocked()
	m.generation++

	now := m.clock.Now()
	m.mode = domain.ModeLooping
	m.startedAt = now
	m.loopDeadline = now.Add(m.loopDuration)
	m.pendingStopAt = time.Time{}

	// The auto-stop is armed even when the player fails so that the loop
	// window still ends the session.
	m.armLocked(ctx, m.loopDuration, "loop window elapsed")

	if err := m.startLocked(ctx, true); err != nil {
		logger.ErrorKV(ctx, "Failed to loop alarm", "alarm_file", m.alarmFile, "error", err)

		return &domain.PlaybackError{Action: "loop", Err: err}
	}

	logger.InfoKV(ctx, "Looping alarm", "duration", m.loopDuration.String(), "until", m.loopDeadline)

	return nil
}

// Stop silences the alarm and cancels any timer. Stopping an idle machine is a no-op.
func (m *Machine) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked(ctx, "manual stop")
}

// StopDelayed arms a one-shot stop after delay, replacing any earlier delayed
// stop. A non-positive delay uses the configured default. It reports false
// when the machine is idle and nothing was armed.
func (m *Machine) StopDelayed(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		delay = m.stopDelay
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == domain.ModeIdle {
		logger.InfoKV(ctx, "Delayed stop ignored, nothing is playing")

		return false
	}

	m.cancelTimerLocked()
	m.generation++

	now := m.clock.Now()
	m.pendingStopAt = now.Add(delay)

	// One timer serves both deadlines, so fire at whichever comes first.
	fireIn := delay
	if m.mode == domain.ModeLooping && m.loopDeadline.Before(m.pendingStopAt) {
		fireIn = max(m.loopDeadline.Sub(now), 0)
	}

	m.armLocked(ctx, fireIn, "delayed stop")

	logger.InfoKV(ctx, "Delayed stop armed", "delay", delay.String(), "at", m.pendingStopAt)

	return true
}

// SetVolume validates and applies the volume regardless of the current mode.
func (m *Machine) SetVolume(ctx context.Context, volume int) error {
	if err := validateVolume(volume); err != nil {
		logger.WarnKV(ctx, "Rejected volume", "volume", volume)

		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.player.SetVolume(volume); err != nil {
		logger.ErrorKV(ctx, "Failed to set volume", "volume", volume, "error", err)

		return &domain.PlaybackError{Action: "set volume", Err: err}
	}

	m.volume = volume

	logger.InfoKV(ctx, "Volume set", "volume", volume)

	return nil
}

// Snapshot returns the current state. It has no side effects.
func (m *Machine) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return domain.Snapshot{
		TakenAt:       m.clock.Now(),
		StartedAt:     m.startedAt,
		LoopDeadline:  m.loopDeadline,
		PendingStopAt: m.pendingStopAt,
		Mode:          m.mode,
		Volume:        m.volume,
		IsPlaying:     m.player.IsPlaying(),
	}
}

// Close stops playback and releases the player.
func (m *Machine) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked(ctx, "shutdown")

	return m.player.Close()
}

// startLocked loads the alarm file and starts the player for a new session.
func (m *Machine) startLocked(ctx context.Context, loop bool) error {
	m.session++
	session := m.session

	if err := m.player.Load(m.alarmFile); err != nil {
		return err
	}

	// Callbacks outlive the request that started playback.
	ctx = context.WithoutCancel(ctx)

	return m.player.Play(loop, func() { m.finished(ctx, session) })
}

// finished returns a single play to idle once the sound has ended on its own.
func (m *Machine) finished(ctx context.Context, session uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session != m.session || m.mode != domain.ModePlayingOnce {
		return
	}

	m.cancelTimerLocked()
	m.resetLocked()

	logger.Info(ctx, "Alarm finished playing")
}

// armLocked schedules the single pending timer for the current generation.
func (m *Machine) armLocked(ctx context.Context, d time.Duration, reason string) {
	ctx = context.WithoutCancel(ctx)
	generation := m.generation
	m.timer = m.clock.AfterFunc(d, func() { m.expire(ctx, generation, reason) })
}

// expire runs a timer callback unless the state moved on after it was armed.
func (m *Machine) expire(ctx context.Context, generation uint64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		logger.DebugKV(ctx, "Ignoring stale timer", "reason", reason)

		return
	}

	m.timer = nil
	m.stopLocked(ctx, reason)
}

// stopLocked silences the player and returns to idle.
func (m *Machine) stopLocked(ctx context.Context, reason string) {
	m.cancelTimerLocked()

	if m.mode == domain.ModeIdle {
		return
	}

	if err := m.player.Stop(); err != nil {
		logger.ErrorKV(ctx, "Failed to stop player", "reason", reason, "error", err)
	}

	m.resetLocked()

	logger.InfoKV(ctx, "Alarm stopped", "reason", reason)
}

// resetLocked clears the playback state and invalidates pending callbacks.
func (m *Machine) resetLocked() {
	m.generation++
	m.session++

	m.mode = domain.ModeIdle
	m.startedAt = time.Time{}
	m.loopDeadline = time.Time{}
	m.pendingStopAt = time.Time{}
}

// cancelTimerLocked stops the pending timer, if any.
func (m *Machine) cancelTimerLocked() {
	if m.timer == nil {
		return
	}

	m.timer.Stop()
	m.timer = nil
}

// validateVolume rejects values outside [0, player.MaxVolume].
func validateVolume(volume int) error {
	if err := player.CheckVolume(volume); err != nil {
		return &domain.ValidationError{Field: "volume", Reason: "must be between 0 and 100"}
	}

	return nil
}
