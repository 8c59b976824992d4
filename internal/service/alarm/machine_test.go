package alarm

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/remote-alarm/internal/domain/alarm"
)

var errTestDevice = errors.New("device unavailable")

// fakePlayer records the calls made by the machine.
type fakePlayer struct {
	// loadErr is returned from Load.
	loadErr error
	// onFinish is the callback passed to the latest Play.
	onFinish func()
	// loops records the loop flag of every Play.
	loops []bool
	// stops counts Stop calls.
	stops int
	// volume is the last volume applied.
	volume int
	// playing mirrors IsPlaying.
	playing bool
	// mu guards every field above.
	mu sync.Mutex
}

func (f *fakePlayer) Load(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loadErr
}

func (f *fakePlayer) Play(loop bool, onFinish func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loops = append(f.loops, loop)
	f.onFinish = onFinish
	f.playing = true

	return nil
}

func (f *fakePlayer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++
	f.playing = false

	return nil
}

func (f *fakePlayer) SetVolume(volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.volume = volume

	return nil
}

func (f *fakePlayer) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.playing
}

func (f *fakePlayer) Close() error {
	return nil
}

// finish simulates the sound ending on its own.
func (f *fakePlayer) finish() {
	f.mu.Lock()
	onFinish := f.onFinish
	f.playing = false
	f.mu.Unlock()

	onFinish()
}

func (f *fakePlayer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stops
}

// countingClock tracks how many timers are pending at once.
type countingClock struct {
	clockwork.Clock

	// active is the number of armed, unfired, unstopped timers.
	active atomic.Int32
	// peak is the highest value active reached.
	peak atomic.Int32
}

func (c *countingClock) AfterFunc(d time.Duration, f func()) clockwork.Timer {
	if n := c.active.Add(1); n > c.peak.Load() {
		c.peak.Store(n)
	}

	timer := c.Clock.AfterFunc(d, func() {
		c.active.Add(-1)
		f()
	})

	return &countingTimer{Timer: timer, clock: c}
}

// countingTimer decrements the pending count when stopped before firing.
type countingTimer struct {
	clockwork.Timer

	clock *countingClock
}

func (t *countingTimer) Stop() bool {
	stopped := t.Timer.Stop()
	if stopped {
		t.clock.active.Add(-1)
	}

	return stopped
}

// advancer is the part of the fake clock the tests drive.
type advancer interface {
	clockwork.Clock

	Advance(d time.Duration)
}

// newTestMachine builds a machine on a fake clock.
func newTestMachine(t *testing.T, opts *Options) (*Machine, *fakePlayer, *countingClock, advancer) {
	t.Helper()

	var fake advancer = clockwork.NewFakeClock()
	clock := &countingClock{Clock: fake}
	p := new(fakePlayer)

	if opts == nil {
		opts = new(Options)
	}

	opts.Clock = clock
	if opts.AlarmFile == "" {
		opts.AlarmFile = "alarm.mp3"
	}

	m, err := NewMachine(p, opts)
	require.NoError(t, err)

	return m, p, clock, fake
}

func requireEventuallyIdle(t *testing.T, m *Machine) {
	t.Helper()

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Mode == domain.ModeIdle
	}, 2*time.Second, 5*time.Millisecond)
}

// TestNewMachine validates construction defaults and errors.
func TestNewMachine(t *testing.T) {
	t.Parallel()

	m, p, _, _ := newTestMachine(t, nil)
	s := m.Snapshot()
	require.Equal(t, domain.ModeIdle, s.Mode)
	require.Equal(t, DefaultVolume, s.Volume)
	require.Equal(t, DefaultVolume, p.volume)
	require.True(t, s.StartedAt.IsZero())
	require.Nil(t, s.RemainingSeconds())
	require.Equal(t, DefaultLoopDuration, m.LoopDuration())
	require.Equal(t, DefaultStopDelay, m.StopDelay())

	_, err := NewMachine(new(fakePlayer), &Options{})
	require.Error(t, err)

	volume := 150
	_, err = NewMachine(new(fakePlayer), &Options{AlarmFile: "alarm.mp3", Volume: &volume})
	require.ErrorIs(t, err, domain.ErrValidation)

	volume = 0
	m, err = NewMachine(new(fakePlayer), &Options{AlarmFile: "alarm.mp3", Volume: &volume})
	require.NoError(t, err)
	require.Zero(t, m.Snapshot().Volume)
}

// TestMachine_Scenario walks play once, loop and delayed stop on a fake clock.
func TestMachine_Scenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, p, _, fake := newTestMachine(t, nil)

	require.NoError(t, m.PlayOnce(ctx))
	s := m.Snapshot()
	require.Equal(t, domain.ModePlayingOnce, s.Mode)
	require.True(t, s.IsPlaying)
	require.Nil(t, s.RemainingSeconds())
	require.Equal(t, fake.Now(), s.StartedAt)

	require.NoError(t, m.Loop(ctx))
	s = m.Snapshot()
	require.Equal(t, domain.ModeLooping, s.Mode)
	require.Equal(t, int64(21600), *s.RemainingSeconds())
	require.Equal(t, []bool{false, true}, p.loops)

	require.True(t, m.StopDelayed(ctx, 10*time.Second))
	s = m.Snapshot()
	require.Equal(t, domain.ModeLooping, s.Mode)
	require.Equal(t, domain.ModeStopping, s.Status())
	require.Equal(t, int64(10), *s.RemainingSeconds())

	fake.Advance(4 * time.Second)
	s = m.Snapshot()
	require.Equal(t, int64(6), *s.RemainingSeconds())

	fake.Advance(6 * time.Second)
	requireEventuallyIdle(t, m)

	s = m.Snapshot()
	require.False(t, s.IsPlaying)
	require.True(t, s.StartedAt.IsZero())
	require.Nil(t, s.RemainingSeconds())
	require.Equal(t, 1, p.stopCount())
}

// TestMachine_LoopAutoStops checks the loop ends by itself at the deadline.
func TestMachine_LoopAutoStops(t *testing.T) {
	t.Parallel()

	m, p, _, fake := newTestMachine(t, nil)

	require.NoError(t, m.Loop(context.Background()))

	fake.Advance(6*time.Hour - time.Second)
	require.Equal(t, domain.ModeLooping, m.Snapshot().Mode)

	fake.Advance(time.Second)
	requireEventuallyIdle(t, m)
	require.Equal(t, 1, p.stopCount())
}

// TestMachine_StopIsIdempotent ensures a second stop changes nothing.
func TestMachine_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, p, _, _ := newTestMachine(t, nil)

	// Idle stop does not touch the player.
	m.Stop(ctx)
	require.Zero(t, p.stopCount())

	require.NoError(t, m.Loop(ctx))
	m.Stop(ctx)
	once := m.Snapshot()

	m.Stop(ctx)
	twice := m.Snapshot()

	require.Equal(t, once, twice)
	require.Equal(t, domain.ModeIdle, twice.Mode)
	require.Equal(t, 1, p.stopCount())
}

// TestMachine_SetVolume covers range validation and mode independence.
func TestMachine_SetVolume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, p, _, _ := newTestMachine(t, nil)

	require.NoError(t, m.Loop(ctx))
	before := m.Snapshot()

	for _, v := range []int{-1, 101, 1000} {
		err := m.SetVolume(ctx, v)
		require.ErrorIs(t, err, domain.ErrValidation)

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Equal(t, "volume", validationErr.Field)

		after := m.Snapshot()
		require.Equal(t, before.Mode, after.Mode)
		require.Equal(t, before.StartedAt, after.StartedAt)
		require.Equal(t, before.Volume, after.Volume)
	}

	require.Equal(t, DefaultVolume, p.volume)

	steps := []func(){
		func() { m.Stop(ctx) },
		func() { require.NoError(t, m.PlayOnce(ctx)) },
		func() { require.NoError(t, m.Loop(ctx)) },
		func() { require.True(t, m.StopDelayed(ctx, 0)) },
	}
	for _, step := range steps {
		step()
		require.NoError(t, m.SetVolume(ctx, 50))
		require.Equal(t, 50, m.Snapshot().Volume)
		require.NoError(t, m.SetVolume(ctx, 0))
		require.Zero(t, m.Snapshot().Volume)
	}

	// Volume changes do not disturb the armed timer.
	snap := m.Snapshot()
	require.Equal(t, domain.ModeStopping, snap.Status())
}

// TestMachine_StaleTimerIgnored verifies the generation check after a manual stop.
func TestMachine_StaleTimerIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, p, _, fake := newTestMachine(t, nil)

	require.NoError(t, m.PlayOnce(ctx))
	require.True(t, m.StopDelayed(ctx, 10*time.Second))

	m.mu.Lock()
	armed := m.generation
	m.mu.Unlock()

	m.Stop(ctx)
	require.Equal(t, 1, p.stopCount())

	// The cancelled timer never fires.
	fake.Advance(11 * time.Second)
	require.Equal(t, 1, p.stopCount())

	// A stale callback that slipped through is a no-op.
	m.expire(ctx, armed, "delayed stop")
	require.Equal(t, domain.ModeIdle, m.Snapshot().Mode)
	require.Equal(t, 1, p.stopCount())

	// Nor does it stop a session started afterwards.
	require.NoError(t, m.PlayOnce(ctx))
	m.expire(ctx, armed, "delayed stop")
	require.Equal(t, domain.ModePlayingOnce, m.Snapshot().Mode)
	require.Equal(t, 1, p.stopCount())
}

// TestMachine_StopDelayedReschedules ensures a second delayed stop replaces the first.
func TestMachine_StopDelayedReschedules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, p, clock, fake := newTestMachine(t, nil)

	require.NoError(t, m.PlayOnce(ctx))
	require.True(t, m.StopDelayed(ctx, 10*time.Second))

	fake.Advance(5 * time.Second)
	require.True(t, m.StopDelayed(ctx, 10*time.Second))
	require.Equal(t, int32(1), clock.active.Load())
	snap := m.Snapshot()
	require.Equal(t, int64(10), *snap.RemainingSeconds())

	// The first deadline passes without effect.
	fake.Advance(6 * time.Second)
	require.Equal(t, domain.ModePlayingOnce, m.Snapshot().Mode)
	require.Zero(t, p.stopCount())

	fake.Advance(4 * time.Second)
	requireEventuallyIdle(t, m)
	require.Equal(t, 1, p.stopCount())
}

// TestMachine_StopDelayedWhileIdle is a no-op.
func TestMachine_StopDelayedWhileIdle(t *testing.T) {
	t.Parallel()

	m, _, clock, _ := newTestMachine(t, nil)

	require.False(t, m.StopDelayed(context.Background(), 10*time.Second))

	s := m.Snapshot()
	require.False(t, s.DelayedStopArmed())
	require.Equal(t, domain.ModeIdle, s.Status())
	require.Zero(t, clock.active.Load())
}

// TestMachine_StopDelayedHonorsSoonerLoopDeadline checks the single timer fires at the earlier deadline.
func TestMachine_StopDelayedHonorsSoonerLoopDeadline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, _, fake := newTestMachine(t, &Options{LoopDuration: 5 * time.Second})

	require.NoError(t, m.Loop(ctx))
	require.True(t, m.StopDelayed(ctx, 10*time.Second))
	snap := m.Snapshot()
	require.Equal(t, int64(5), *snap.RemainingSeconds())

	fake.Advance(5 * time.Second)
	requireEventuallyIdle(t, m)
}

// TestMachine_AtMostOneTimer runs mixed operations and checks the pending timer count.
func TestMachine_AtMostOneTimer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, clock, fake := newTestMachine(t, nil)

	ops := []func(){
		func() { _ = m.Loop(ctx) },
		func() { m.StopDelayed(ctx, 10*time.Second) },
		func() { m.StopDelayed(ctx, 3*time.Second) },
		func() { _ = m.Loop(ctx) },
		func() { _ = m.PlayOnce(ctx) },
		func() { m.StopDelayed(ctx, 0) },
		func() { m.Stop(ctx) },
		func() { m.Stop(ctx) },
		func() { _ = m.Loop(ctx) },
		func() { _ = m.SetVolume(ctx, 10) },
		func() { fake.Advance(time.Second) },
		func() { m.StopDelayed(ctx, time.Second) },
		func() { fake.Advance(2 * time.Second) },
	}

	for _, op := range ops {
		op()
		require.LessOrEqual(t, clock.active.Load(), int32(1))
	}

	requireEventuallyIdle(t, m)
	require.Zero(t, clock.active.Load())
	require.Equal(t, int32(1), clock.peak.Load())
}

// TestMachine_PlayOnceFinishes returns to idle when the sound ends by itself.
func TestMachine_PlayOnceFinishes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, p, _, _ := newTestMachine(t, nil)

	require.NoError(t, m.PlayOnce(ctx))
	p.finish()
	require.Equal(t, domain.ModeIdle, m.Snapshot().Mode)
	require.Zero(t, p.stopCount())

	// A completion from a replaced session does not end the new one.
	require.NoError(t, m.PlayOnce(ctx))

	p.mu.Lock()
	stale := p.onFinish
	p.mu.Unlock()

	require.NoError(t, m.Loop(ctx))
	stale()
	require.Equal(t, domain.ModeLooping, m.Snapshot().Mode)
}

// TestMachine_PlaybackError leaves the mode set but reports no sound.
func TestMachine_PlaybackError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, p, _, _ := newTestMachine(t, nil)
	p.loadErr = os.ErrNotExist

	err := m.PlayOnce(ctx)
	require.ErrorIs(t, err, domain.ErrPlayback)
	require.ErrorIs(t, err, os.ErrNotExist)

	s := m.Snapshot()
	require.Equal(t, domain.ModePlayingOnce, s.Mode)
	require.False(t, s.IsPlaying)

	err = m.Loop(ctx)
	require.ErrorIs(t, err, domain.ErrPlayback)
	require.Equal(t, domain.ModeLooping, m.Snapshot().Mode)
	snap := m.Snapshot()
	require.NotNil(t, snap.RemainingSeconds())

	m.Stop(ctx)
	require.Equal(t, domain.ModeIdle, m.Snapshot().Mode)
}

// volumeFailingPlayer rejects every volume change after construction.
type volumeFailingPlayer struct {
	fakePlayer

	// fail turns SetVolume errors on.
	fail bool
}

func (v *volumeFailingPlayer) SetVolume(volume int) error {
	if v.fail {
		return errTestDevice
	}

	return v.fakePlayer.SetVolume(volume)
}

// TestMachine_SetVolumePlayerFailure keeps the previous volume when the player refuses.
func TestMachine_SetVolumePlayerFailure(t *testing.T) {
	t.Parallel()

	p := new(volumeFailingPlayer)
	m, err := NewMachine(p, &Options{AlarmFile: "alarm.mp3", Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)

	p.fail = true

	err = m.SetVolume(context.Background(), 30)
	require.ErrorIs(t, err, domain.ErrPlayback)
	require.ErrorIs(t, err, errTestDevice)
	require.Equal(t, DefaultVolume, m.Snapshot().Volume)
}

// TestMachine_Concurrent hammers the machine from several goroutines on the real clock.
func TestMachine_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := NewMachine(new(fakePlayer), &Options{AlarmFile: "alarm.mp3", StopDelay: time.Millisecond})
	require.NoError(t, err)

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 50 {
				switch (worker + i) % 6 {
				case 0:
					_ = m.PlayOnce(ctx)
				case 1:
					_ = m.Loop(ctx)
				case 2:
					m.StopDelayed(ctx, 0)
				case 3:
					m.Stop(ctx)
				case 4:
					_ = m.SetVolume(ctx, i%101)
				default:
					_ = m.Snapshot()
				}
			}
		}()
	}

	wg.Wait()

	m.Stop(ctx)
	require.Equal(t, domain.ModeIdle, m.Snapshot().Mode)
	require.NoError(t, m.Close(ctx))
}
