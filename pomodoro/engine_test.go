package pomodoro

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjamonnguyen/focusforge-go"
)

type fakeTrack struct {
	data    string
	playing bool
	muted   bool
	closed  bool
	plays   int
	rewinds int
}

func (t *fakeTrack) Play() error {
	t.playing = true
	t.plays++
	return nil
}
func (t *fakeTrack) Pause()          { t.playing = false }
func (t *fakeTrack) Rewind()         { t.rewinds++ }
func (t *fakeTrack) SetMuted(m bool) { t.muted = m }
func (t *fakeTrack) Close() error {
	t.closed = true
	return nil
}

type fakePlayer struct {
	tracks   []*fakeTrack
	alerts   int
	alertErr error
	loadErr  error
}

func (p *fakePlayer) Load(_ string, r io.Reader) (Track, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	t := &fakeTrack{data: string(b)}
	p.tracks = append(p.tracks, t)
	return t, nil
}

func (p *fakePlayer) Alert() error {
	p.alerts++
	return p.alertErr
}

func (p *fakePlayer) last() *fakeTrack {
	return p.tracks[len(p.tracks)-1]
}

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	e      *Engine
	clock  *ManualClock
	vis    *VisibilitySignal
	player *fakePlayer
	events []PhaseEnded
}

func newHarness(settings focusforge.PomodoroSettings) *harness {
	h := &harness{
		clock:  NewManualClock(t0),
		vis:    NewVisibilitySignal(),
		player: &fakePlayer{},
	}
	h.e = NewEngine(settings, func(ev PhaseEnded) {
		h.events = append(h.events, ev)
	}, WithClock(h.clock), WithVisibility(h.vis), WithPlayer(h.player))
	return h
}

// tick advances the clock and the engine by n seconds.
func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
		h.e.Tick()
	}
}

// finishPhase starts the timer and ticks until the current phase ends.
func (h *harness) finishPhase(t *testing.T) {
	t.Helper()
	before := len(h.events)
	h.e.Start()
	for i := 0; h.e.State().IsRunning; i++ {
		require.Less(t, i, 24*60*60, "phase never ended")
		h.tick(1)
	}
	require.Len(t, h.events, before+1)
}

func minutes(work, short, long, every int) focusforge.PomodoroSettings {
	return focusforge.PomodoroSettings{
		WorkDuration:              work,
		ShortBreakDuration:        short,
		LongBreakDuration:         long,
		WorkPhasesBeforeLongBreak: every,
	}
}

func TestNewEngine(t *testing.T) {
	h := newHarness(focusforge.DefaultPomodoroSettings())

	s := h.e.State()
	assert.Equal(t, focusforge.WorkPhase, s.Phase)
	assert.Equal(t, 25*60, s.RemainingSeconds)
	assert.Equal(t, 25*60, s.PhaseDuration)
	assert.False(t, s.IsRunning)
	assert.Equal(t, 0, s.CompletedWorkPhases)
	assert.False(t, s.IsMuted)
	assert.Empty(t, s.AmbientTrackName)
}

func TestNewEngine_NormalizesSettings(t *testing.T) {
	h := newHarness(minutes(0, -3, 15, 0))

	s := h.e.State()
	assert.Equal(t, minutes(1, 1, 15, 1), s.Settings)
	assert.Equal(t, 60, s.RemainingSeconds)
}

func TestEngine_PhaseCycle(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 3, 4, 6} {
		t.Run(strings.Repeat("w", n), func(t *testing.T) {
			t.Parallel()
			h := newHarness(minutes(1, 1, 2, n))

			for i := 1; i <= n; i++ {
				require.Equal(t, focusforge.WorkPhase, h.e.State().Phase)
				h.finishPhase(t)

				ev := h.events[len(h.events)-1]
				assert.Equal(t, focusforge.WorkPhase, ev.Ended)
				assert.Equal(t, i, ev.CompletedWorkPhases)
				if i == n {
					assert.Equal(t, focusforge.LongBreakPhase, ev.Next)
				} else {
					assert.Equal(t, focusforge.ShortBreakPhase, ev.Next)
				}
				assert.Equal(t, ev.Next, h.e.State().Phase)

				if i < n {
					h.finishPhase(t)
				}
			}
		})
	}
}

func TestEngine_FourPomodoroScenario(t *testing.T) {
	h := newHarness(focusforge.DefaultPomodoroSettings())

	for h.e.State().CompletedWorkPhases < 4 {
		h.finishPhase(t)
	}

	require.Len(t, h.events, 7)
	want := []struct {
		ended, next focusforge.Phase
		completed   int
	}{
		{focusforge.WorkPhase, focusforge.ShortBreakPhase, 1},
		{focusforge.ShortBreakPhase, focusforge.WorkPhase, 1},
		{focusforge.WorkPhase, focusforge.ShortBreakPhase, 2},
		{focusforge.ShortBreakPhase, focusforge.WorkPhase, 2},
		{focusforge.WorkPhase, focusforge.ShortBreakPhase, 3},
		{focusforge.ShortBreakPhase, focusforge.WorkPhase, 3},
		{focusforge.WorkPhase, focusforge.LongBreakPhase, 4},
	}
	for i, w := range want {
		assert.Equal(t, w.ended, h.events[i].Ended, "event %d", i)
		assert.Equal(t, w.next, h.events[i].Next, "event %d", i)
		assert.Equal(t, w.completed, h.events[i].CompletedWorkPhases, "event %d", i)
	}
	assert.Equal(t, 25*time.Minute, h.events[0].EndedDuration)
	assert.Equal(t, 5*time.Minute, h.events[1].EndedDuration)

	s := h.e.State()
	assert.Equal(t, 4, s.CompletedWorkPhases)
	assert.Equal(t, focusforge.LongBreakPhase, s.Phase)
	assert.Equal(t, 15*60, s.RemainingSeconds)
	assert.False(t, s.IsRunning)
	assert.Equal(t, 7, h.player.alerts)
}

func TestEngine_RemainingBound(t *testing.T) {
	h := newHarness(minutes(1, 1, 1, 2))

	h.e.Start()
	for i := 0; i < 10*60; i++ {
		s := h.e.State()
		assert.GreaterOrEqual(t, s.RemainingSeconds, 0)
		assert.LessOrEqual(t, s.RemainingSeconds, s.Settings.Seconds(s.Phase))
		if !s.IsRunning {
			h.e.Start()
		}
		h.tick(1)
	}
}

func TestEngine_Pause(t *testing.T) {
	h := newHarness(focusforge.DefaultPomodoroSettings())

	h.e.Start()
	h.tick(30)
	h.e.Pause()
	first := h.e.State()
	h.e.Pause()
	second := h.e.State()

	assert.Equal(t, first.RemainingSeconds, second.RemainingSeconds)
	assert.Equal(t, first.Phase, second.Phase)
	assert.Equal(t, 25*60-30, second.RemainingSeconds)
	assert.False(t, second.IsRunning)

	// ticks while paused are ignored
	h.tick(10)
	assert.Equal(t, 25*60-30, h.e.State().RemainingSeconds)
}

func TestEngine_Reset(t *testing.T) {
	h := newHarness(minutes(1, 1, 1, 4))
	h.finishPhase(t)
	h.finishPhase(t)
	h.e.Start()
	h.tick(5)

	h.e.Reset()

	s := h.e.State()
	assert.Equal(t, focusforge.WorkPhase, s.Phase)
	assert.Equal(t, 60, s.RemainingSeconds)
	assert.Equal(t, 0, s.CompletedWorkPhases)
	assert.False(t, s.IsRunning)
}

func TestEngine_SkipBreak(t *testing.T) {
	h := newHarness(minutes(2, 1, 1, 4))

	assert.False(t, h.e.SkipBreak(), "nothing to skip during work")

	h.finishPhase(t)
	h.e.Start()
	h.tick(10)

	assert.True(t, h.e.SkipBreak())
	s := h.e.State()
	assert.Equal(t, focusforge.WorkPhase, s.Phase)
	assert.Equal(t, 120, s.RemainingSeconds)
	assert.Equal(t, 1, s.CompletedWorkPhases)
	assert.False(t, s.IsRunning)
	assert.Len(t, h.events, 1, "skipping is not a phase end")
}

func TestEngine_ChangeMode(t *testing.T) {
	h := newHarness(focusforge.DefaultPomodoroSettings())
	h.e.Start()
	h.tick(100)

	h.e.ChangeMode(focusforge.LongBreakPhase)
	s := h.e.State()
	assert.Equal(t, focusforge.LongBreakPhase, s.Phase)
	assert.Equal(t, 15*60, s.RemainingSeconds)
	assert.False(t, s.IsRunning)

	// same phase still restores the full duration
	h.e.Start()
	h.tick(20)
	h.e.ChangeMode(focusforge.LongBreakPhase)
	assert.Equal(t, 15*60, h.e.State().RemainingSeconds)

	h.e.ChangeMode(focusforge.Phase(9))
	assert.Equal(t, focusforge.LongBreakPhase, h.e.State().Phase)
	assert.Empty(t, h.events)
}

func TestEngine_UpdateSettings(t *testing.T) {
	t.Run("stopped recomputes", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.UpdateSettings(minutes(50, 10, 30, 2))

		s := h.e.State()
		assert.Equal(t, 50*60, s.RemainingSeconds)
		assert.Equal(t, 50*60, s.PhaseDuration)
	})

	t.Run("paused recomputes", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.Start()
		h.tick(60)
		h.e.Pause()
		h.e.UpdateSettings(minutes(30, 5, 15, 4))

		assert.Equal(t, 30*60, h.e.State().RemainingSeconds)
	})

	t.Run("running keeps remaining until next phase", func(t *testing.T) {
		h := newHarness(minutes(2, 1, 1, 4))
		h.e.Start()
		h.tick(30)
		h.e.UpdateSettings(minutes(1, 3, 1, 4))

		s := h.e.State()
		assert.True(t, s.IsRunning)
		assert.Equal(t, 90, s.RemainingSeconds)
		assert.Equal(t, 120, s.PhaseDuration)

		h.tick(90)
		require.Len(t, h.events, 1)
		assert.Equal(t, 2*time.Minute, h.events[0].EndedDuration)
		assert.Equal(t, 3*60, h.e.State().RemainingSeconds)
	})
}

func TestEngine_Reconciliation(t *testing.T) {
	t.Run("subtracts hidden time", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.Start()
		h.tick(100)
		r := h.e.State().RemainingSeconds

		h.vis.Hide()
		h.clock.Advance(600 * time.Second)
		h.vis.Show()

		assert.Equal(t, r-600, h.e.State().RemainingSeconds)
		assert.True(t, h.e.State().IsRunning)

		// a second show is not a second correction
		h.vis.Show()
		assert.Equal(t, r-600, h.e.State().RemainingSeconds)
	})

	t.Run("partial seconds are floored", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.Start()

		h.vis.Hide()
		h.clock.Advance(9*time.Second + 900*time.Millisecond)
		h.vis.Show()

		assert.Equal(t, 25*60-9, h.e.State().RemainingSeconds)
	})

	t.Run("ticks while hidden are not counted twice", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.Start()

		h.vis.Hide()
		h.tick(10)
		h.clock.Advance(50 * time.Second)
		h.vis.Show()

		assert.Equal(t, 25*60-60, h.e.State().RemainingSeconds)
	})

	t.Run("stopped timer is not corrected", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())

		h.vis.Hide()
		h.clock.Advance(time.Hour)
		h.vis.Show()

		assert.Equal(t, 25*60, h.e.State().RemainingSeconds)
	})

	t.Run("overdue phase ends exactly once", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.Start()

		h.vis.Hide()
		h.clock.Advance(2 * time.Hour)
		h.vis.Show()

		require.Len(t, h.events, 1)
		assert.Equal(t, focusforge.WorkPhase, h.events[0].Ended)
		assert.Equal(t, focusforge.ShortBreakPhase, h.e.State().Phase)
		assert.Equal(t, 5*60, h.e.State().RemainingSeconds)

		h.tick(3)
		h.vis.Hide()
		h.vis.Show()
		assert.Len(t, h.events, 1)
	})

	t.Run("pause while hidden settles, start forces phase end", func(t *testing.T) {
		h := newHarness(minutes(1, 1, 1, 4))
		h.e.Start()

		h.vis.Hide()
		h.clock.Advance(5 * time.Minute)
		h.e.Pause()
		h.vis.Show()

		s := h.e.State()
		assert.Equal(t, 0, s.RemainingSeconds)
		assert.False(t, s.IsRunning)
		assert.Empty(t, h.events)

		h.e.Start()
		require.Len(t, h.events, 1)
		assert.Equal(t, focusforge.ShortBreakPhase, h.e.State().Phase)
		assert.False(t, h.e.State().IsRunning)

		h.e.Start()
		h.tick(1)
		assert.Len(t, h.events, 1)
	})

	t.Run("time paused while hidden is not counted", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.Start()

		h.vis.Hide()
		h.clock.Advance(10 * time.Second)
		h.e.Pause()
		h.clock.Advance(time.Hour)
		h.e.Start()
		h.clock.Advance(20 * time.Second)
		h.vis.Show()

		assert.Equal(t, 25*60-30, h.e.State().RemainingSeconds)
	})
}

func TestEngine_CallbackMayReenter(t *testing.T) {
	clock := NewManualClock(t0)
	var e *Engine
	var states []State
	e = NewEngine(minutes(1, 1, 1, 4), func(ev PhaseEnded) {
		states = append(states, e.State())
		e.Start()
	}, WithClock(clock))

	e.Start()
	for i := 0; i < 60; i++ {
		e.Tick()
	}

	require.Len(t, states, 1)
	assert.Equal(t, focusforge.ShortBreakPhase, states[0].Phase)
	assert.False(t, states[0].IsRunning, "state is committed before the callback")
	assert.True(t, e.State().IsRunning)
}

func TestEngine_Ambient(t *testing.T) {
	t.Run("plays only while work runs", func(t *testing.T) {
		h := newHarness(minutes(1, 1, 1, 4))
		require.NoError(t, h.e.UploadAmbientTrack("rain.opus", strings.NewReader("rain")))
		tr := h.player.last()
		assert.Equal(t, "rain.opus", h.e.State().AmbientTrackName)
		assert.False(t, tr.playing)

		h.e.Start()
		assert.True(t, tr.playing)

		h.e.Pause()
		assert.False(t, tr.playing)
		assert.Equal(t, 0, tr.rewinds, "pause does not rewind")

		h.e.Start()
		h.tick(60)
		require.Len(t, h.events, 1)
		assert.False(t, tr.playing)
		assert.Equal(t, 1, tr.rewinds, "work end rewinds")

		// break running: no ambient
		h.e.Start()
		assert.False(t, tr.playing)
		h.tick(60)
		assert.Equal(t, 1, tr.rewinds)

		h.e.Start()
		assert.True(t, tr.playing)
	})

	t.Run("upload while work runs starts playback", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		h.e.Start()
		require.NoError(t, h.e.UploadAmbientTrack("a", strings.NewReader("a")))
		assert.True(t, h.player.last().playing)
	})

	t.Run("replacing releases previous", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		require.NoError(t, h.e.UploadAmbientTrack("a", strings.NewReader("a")))
		require.NoError(t, h.e.UploadAmbientTrack("b", strings.NewReader("b")))

		require.Len(t, h.player.tracks, 2)
		assert.True(t, h.player.tracks[0].closed)
		assert.False(t, h.player.tracks[1].closed)
		assert.Equal(t, "b", h.e.State().AmbientTrackName)
	})

	t.Run("failed load keeps previous", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		require.NoError(t, h.e.UploadAmbientTrack("a", strings.NewReader("a")))
		h.player.loadErr = errors.New("unsupported codec")

		assert.Error(t, h.e.UploadAmbientTrack("b", strings.NewReader("b")))
		assert.False(t, h.player.tracks[0].closed)
		assert.Equal(t, "a", h.e.State().AmbientTrackName)
	})

	t.Run("nil clears", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		require.NoError(t, h.e.UploadAmbientTrack("a", strings.NewReader("a")))
		require.NoError(t, h.e.UploadAmbientTrack("", nil))

		assert.True(t, h.player.tracks[0].closed)
		assert.Empty(t, h.e.State().AmbientTrackName)
	})

	t.Run("leaving work rewinds", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		require.NoError(t, h.e.UploadAmbientTrack("a", strings.NewReader("a")))
		h.e.Start()
		tr := h.player.last()

		h.e.ChangeMode(focusforge.WorkPhase)
		assert.False(t, tr.playing)
		assert.Equal(t, 0, tr.rewinds)

		h.e.Start()
		h.e.ChangeMode(focusforge.ShortBreakPhase)
		assert.False(t, tr.playing)
		assert.Equal(t, 1, tr.rewinds)

		h.e.Reset()
		assert.Equal(t, 2, tr.rewinds)
	})

	t.Run("mute is independent of playback", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		assert.True(t, h.e.ToggleMute())
		require.NoError(t, h.e.UploadAmbientTrack("a", strings.NewReader("a")))
		h.e.Start()

		tr := h.player.last()
		assert.True(t, tr.muted, "mute carries over to new tracks")
		assert.True(t, tr.playing)
		assert.True(t, h.e.State().IsMuted)

		assert.False(t, h.e.ToggleMute())
		assert.False(t, tr.muted)
		assert.True(t, tr.playing)
	})

	t.Run("alert plays when muted and failures are swallowed", func(t *testing.T) {
		h := newHarness(minutes(1, 1, 1, 4))
		h.e.ToggleMute()
		h.player.alertErr = errors.New("autoplay blocked")

		h.finishPhase(t)
		h.finishPhase(t)

		assert.Equal(t, 2, h.player.alerts)
		assert.Equal(t, focusforge.WorkPhase, h.e.State().Phase)
	})

	t.Run("close releases everything", func(t *testing.T) {
		h := newHarness(focusforge.DefaultPomodoroSettings())
		require.NoError(t, h.e.UploadAmbientTrack("a", strings.NewReader("a")))
		h.e.Start()

		require.NoError(t, h.e.Close())
		tr := h.player.last()
		assert.True(t, tr.closed)
		assert.False(t, tr.playing)
		assert.False(t, h.e.State().IsRunning)

		// further operations are no-ops
		h.e.Start()
		assert.False(t, h.e.State().IsRunning)
		h.vis.Hide()
		h.clock.Advance(time.Hour)
		h.vis.Show()
		assert.Empty(t, h.events)
		require.NoError(t, h.e.Close())
	})
}

func TestEngine_Run(t *testing.T) {
	orig := tickRate
	tickRate = time.Millisecond
	t.Cleanup(func() { tickRate = orig })

	ended := make(chan PhaseEnded, 1)
	e := NewEngine(minutes(1, 1, 1, 4), func(ev PhaseEnded) { ended <- ev })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Start()
	select {
	case ev := <-ended:
		assert.Equal(t, focusforge.WorkPhase, ev.Ended)
	case <-time.After(5 * time.Second):
		t.Fatal("phase did not end")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSilentPlayer(t *testing.T) {
	var p SilentPlayer
	tr, err := p.Load("a", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.NoError(t, tr.Play())
	assert.NoError(t, tr.Close())
	assert.NoError(t, p.Alert())

	_, err = p.Load("a", nil)
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed tty") }

func TestBellPlayer(t *testing.T) {
	var out strings.Builder
	p := NewBellPlayer(&out)
	require.NoError(t, p.Alert())
	assert.Equal(t, "\a", out.String())

	tr, err := p.Load("rain", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.NoError(t, tr.Play())

	assert.Error(t, NewBellPlayer(failingWriter{}).Alert())
}

func TestEngine_BellOnEveryPhaseEnd(t *testing.T) {
	var out strings.Builder
	clock := NewManualClock(t0)
	var ended int
	e := NewEngine(minutes(1, 1, 1, 2), func(PhaseEnded) { ended++ },
		WithClock(clock), WithPlayer(NewBellPlayer(&out)))
	require.NoError(t, e.UploadAmbientTrack("rain", strings.NewReader("abc")))
	e.ToggleMute()

	for i := 0; i < 3; i++ {
		e.Start()
		for j := 0; j < 60; j++ {
			clock.Advance(time.Second)
			e.Tick()
		}
	}
	assert.Equal(t, 3, ended)
	assert.Equal(t, "\a\a\a", out.String())

	e = NewEngine(minutes(1, 1, 1, 2), nil, WithClock(clock), WithPlayer(NewBellPlayer(failingWriter{})))
	e.Start()
	for j := 0; j < 60; j++ {
		e.Tick()
	}
	assert.Equal(t, focusforge.ShortBreakPhase, e.State().Phase, "bell failure does not block the phase end")
}
