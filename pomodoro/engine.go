// Package pomodoro implements the focus timer: a Work/ShortBreak/LongBreak
// state machine driven by a one-second tick, with wall-clock reconciliation
// for periods in which ticks could not run and an ambient audio track that
// plays during running Work phases.
package pomodoro

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go"
)

var tickRate = time.Second

// PhaseEnded is emitted once per completed phase, after the engine has
// committed the next phase.
type PhaseEnded struct {
	Ended               focusforge.Phase
	Next                focusforge.Phase
	CompletedWorkPhases int
	// EndedDuration is the configured duration the ended phase was entered with.
	EndedDuration time.Duration
	At            time.Time
}

// State is a read-only snapshot of the engine.
type State struct {
	Phase               focusforge.Phase
	RemainingSeconds    int
	IsRunning           bool
	CompletedWorkPhases int
	IsMuted             bool
	AmbientTrackName    string
	// PhaseDuration is the duration in seconds the current phase was entered with.
	PhaseDuration int
	Settings      focusforge.PomodoroSettings
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithPlayer(p Player) Option {
	return func(e *Engine) { e.player = p }
}

func WithVisibility(v VisibilitySource) Option {
	return func(e *Engine) { e.visibility = v }
}

func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.l = l }
}

type Engine struct {
	mu sync.Mutex

	settings      focusforge.PomodoroSettings
	phase         focusforge.Phase
	remaining     int
	phaseDuration time.Duration
	running       bool
	completed     int

	hidden      bool
	hiddenAt    time.Time
	hiddenTicks int

	closed      bool
	unsubscribe func()

	ambient    *ambient
	player     Player
	clock      Clock
	visibility VisibilitySource
	l          log.Logger
	onPhaseEnd func(PhaseEnded)
}

// NewEngine returns a stopped engine at the start of a Work phase. onPhaseEnd
// may be nil. It is called without the engine lock held, so it may call back
// into the engine.
func NewEngine(settings focusforge.PomodoroSettings, onPhaseEnd func(PhaseEnded), opts ...Option) *Engine {
	e := &Engine{
		settings:   settings.Normalize(),
		onPhaseEnd: onPhaseEnd,
		player:     SilentPlayer{},
		clock:      systemClock{},
		l:          *log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.player == nil {
		e.player = SilentPlayer{}
	}
	e.ambient = newAmbient(e.player, e.l)
	e.enterPhaseLocked(focusforge.WorkPhase)

	if e.visibility != nil {
		e.unsubscribe = e.visibility.Subscribe(e.onHidden, e.onVisible)
	}
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		Phase:               e.phase,
		RemainingSeconds:    e.remaining,
		IsRunning:           e.running,
		CompletedWorkPhases: e.completed,
		IsMuted:             e.ambient.muted,
		AmbientTrackName:    e.ambient.name,
		PhaseDuration:       int(e.phaseDuration / time.Second),
		Settings:            e.settings,
	}
}

// Start resumes the countdown. A phase whose remaining time already reached
// zero ends immediately.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.closed || e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	if e.hidden {
		e.hiddenAt = e.clock.Now()
		e.hiddenTicks = 0
	}
	ev, ended := e.maybeEndPhaseLocked()
	if !ended && e.phase == focusforge.WorkPhase {
		e.ambient.play()
	}
	e.mu.Unlock()

	if ended {
		e.emit(ev)
	}
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.running {
		return
	}

	if e.hidden {
		e.settleHiddenLocked()
	}
	e.running = false
	e.ambient.pause()
}

// Reset stops the timer and restarts the whole cycle from the first Work phase.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.running = false
	e.completed = 0
	e.ambient.stop()
	e.enterPhaseLocked(focusforge.WorkPhase)
}

// SkipBreak stops the timer and moves from a break to Work. It reports
// whether a break was skipped.
func (e *Engine) SkipBreak() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.phase.IsBreak() {
		return false
	}

	e.running = false
	e.enterPhaseLocked(focusforge.WorkPhase)
	return true
}

// ChangeMode stops the timer and switches to target with its full duration.
func (e *Engine) ChangeMode(target focusforge.Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.settings.Seconds(target) == 0 {
		return
	}

	e.running = false
	if e.phase == focusforge.WorkPhase && target != focusforge.WorkPhase {
		e.ambient.stop()
	} else {
		e.ambient.pause()
	}
	e.enterPhaseLocked(target)
}

// UpdateSettings replaces the settings. A stopped timer picks up the new
// duration immediately; a running one at the next phase entry.
func (e *Engine) UpdateSettings(settings focusforge.PomodoroSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.settings = settings.Normalize()
	if !e.running {
		e.enterPhaseLocked(e.phase)
	}
}

// Tick advances a running timer by one second.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.closed || !e.running {
		e.mu.Unlock()
		return
	}
	if e.remaining > 0 {
		e.remaining--
	}
	if e.hidden {
		e.hiddenTicks++
	}
	ev, ended := e.maybeEndPhaseLocked()
	e.mu.Unlock()

	if ended {
		e.emit(ev)
	}
}

// Run calls Tick every second until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// UploadAmbientTrack replaces the ambient track. A nil reader clears it.
func (e *Engine) UploadAmbientTrack(name string, r io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	if r == nil {
		e.ambient.release()
		return nil
	}
	if err := e.ambient.acquire(name, r); err != nil {
		return err
	}
	if e.running && e.phase == focusforge.WorkPhase {
		e.ambient.play()
	}
	e.l.Info("loaded ambient track", "name", name)
	return nil
}

// ToggleMute flips the mute flag and returns the new value.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ambient.toggleMute()
}

// Close stops the timer and releases all audio resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	e.closed = true
	e.running = false
	e.ambient.release()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	return nil
}

func (e *Engine) onHidden() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hidden = true
	e.hiddenAt = e.clock.Now()
	e.hiddenTicks = 0
}

func (e *Engine) onVisible() {
	e.mu.Lock()
	if !e.hidden {
		e.mu.Unlock()
		return
	}
	var (
		ev    PhaseEnded
		ended bool
	)
	if e.running && !e.closed {
		e.settleHiddenLocked()
		ev, ended = e.maybeEndPhaseLocked()
	}
	e.hidden = false
	e.mu.Unlock()

	if ended {
		e.emit(ev)
	}
}

// settleHiddenLocked subtracts the wall-clock seconds spent hidden that ticks
// did not already account for.
func (e *Engine) settleHiddenLocked() {
	now := e.clock.Now()
	missed := int(now.Sub(e.hiddenAt)/time.Second) - e.hiddenTicks
	if missed > 0 {
		e.remaining = max(0, e.remaining-missed)
		e.l.Debug("reconciled hidden time", "missedSeconds", missed, "remaining", e.remaining)
	}
	e.hiddenAt = now
	e.hiddenTicks = 0
}

// maybeEndPhaseLocked is the single place a phase can end. Clearing running
// guarantees the same completion is not processed twice.
func (e *Engine) maybeEndPhaseLocked() (PhaseEnded, bool) {
	if !e.running || e.remaining > 0 {
		return PhaseEnded{}, false
	}

	ended := e.phase
	endedDuration := e.phaseDuration
	e.running = false
	if ended == focusforge.WorkPhase {
		e.ambient.stop()
	}
	e.ambient.alert()

	var next focusforge.Phase
	if ended == focusforge.WorkPhase {
		e.completed++
		if e.completed%e.settings.WorkPhasesBeforeLongBreak == 0 {
			next = focusforge.LongBreakPhase
		} else {
			next = focusforge.ShortBreakPhase
		}
	} else {
		next = focusforge.WorkPhase
	}
	e.enterPhaseLocked(next)

	e.l.Info("phase ended", "ended", ended, "next", next, "completedWorkPhases", e.completed)
	return PhaseEnded{
		Ended:               ended,
		Next:                next,
		CompletedWorkPhases: e.completed,
		EndedDuration:       endedDuration,
		At:                  e.clock.Now(),
	}, true
}

func (e *Engine) enterPhaseLocked(p focusforge.Phase) {
	e.phase = p
	e.phaseDuration = e.settings.Duration(p)
	e.remaining = int(e.phaseDuration / time.Second)
}

func (e *Engine) emit(ev PhaseEnded) {
	if e.onPhaseEnd != nil {
		e.onPhaseEnd(ev)
	}
}
