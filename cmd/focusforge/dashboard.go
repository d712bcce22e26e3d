package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go"
	"github.com/benjamonnguyen/focusforge-go/habit"
	"github.com/benjamonnguyen/focusforge-go/pomodoro"
	"github.com/benjamonnguyen/focusforge-go/timelog"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2).
			MarginRight(1)

	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	breakStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7DC6F")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).MarginTop(1)
	footerKeyMap = "space start/pause • r reset • s skip break • 1/2/3 mode • m mute • a ambient • ↑/↓ habit • enter done • x reset streak • q quit"
)

type tickMsg time.Time

// phaseEndedMsg is delivered from the engine callback.
type phaseEndedMsg struct {
	ev         pomodoro.PhaseEnded
	invitation string
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type dashboardModel struct {
	engine      *pomodoro.Engine
	visibility  *pomodoro.VisibilitySignal
	board       *habit.Board
	recorder    *timelog.Recorder
	ambientPath string
	now         func() time.Time
	l           log.Logger

	habits       []focusforge.Habit
	cursor       int
	pendingReset string
	notice       string
	width        int
}

func newDashboardModel(
	engine *pomodoro.Engine,
	visibility *pomodoro.VisibilitySignal,
	board *habit.Board,
	recorder *timelog.Recorder,
	ambientPath string,
	l log.Logger,
) dashboardModel {
	return dashboardModel{
		engine:      engine,
		visibility:  visibility,
		board:       board,
		recorder:    recorder,
		ambientPath: ambientPath,
		now:         time.Now,
		l:           l,
		habits:      board.List(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tickCmd()
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.BlurMsg:
		m.visibility.Hide()
	case tea.FocusMsg:
		m.visibility.Show()
	case phaseEndedMsg:
		if msg.invitation != "" {
			m.notice = msg.invitation
		} else {
			m.notice = fmt.Sprintf("%s ended. Back to focus.", msg.ev.Ended)
		}
	case tickMsg:
		return m, tickCmd()
	}
	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "x" {
		m.pendingReset = ""
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.notice = ""
		if m.engine.State().IsRunning {
			m.engine.Pause()
		} else {
			m.engine.Start()
		}
	case "r":
		m.engine.Reset()
		m.notice = "Timer reset."
	case "s":
		if !m.engine.SkipBreak() {
			m.notice = "No break to skip."
		} else {
			m.notice = ""
		}
	case "1":
		m.engine.ChangeMode(focusforge.WorkPhase)
	case "2":
		m.engine.ChangeMode(focusforge.ShortBreakPhase)
	case "3":
		m.engine.ChangeMode(focusforge.LongBreakPhase)
	case "m":
		if m.engine.ToggleMute() {
			m.notice = "Ambient muted."
		} else {
			m.notice = "Ambient unmuted."
		}
	case "a":
		m.notice = m.toggleAmbient()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.habits)-1 {
			m.cursor++
		}
	case "enter":
		m.toggleHabit()
	case "x":
		m.resetHabit()
	}
	return m, nil
}

func (m dashboardModel) toggleAmbient() string {
	if m.engine.State().AmbientTrackName != "" {
		_ = m.engine.UploadAmbientTrack("", nil)
		return "Ambient track cleared."
	}
	if m.ambientPath == "" {
		return fmt.Sprintf("Set %s to load an ambient track.", focusforge.AmbientPathKey)
	}

	f, err := os.Open(m.ambientPath)
	if err != nil {
		m.l.Error("failed to open ambient track", "path", m.ambientPath, "err", err)
		return "Could not open ambient track."
	}
	defer f.Close() //nolint

	if err := m.engine.UploadAmbientTrack(filepath.Base(m.ambientPath), f); err != nil {
		m.l.Error("failed to load ambient track", "path", m.ambientPath, "err", err)
		return "Could not load ambient track."
	}
	return "Ambient track loaded."
}

func (m *dashboardModel) toggleHabit() {
	if len(m.habits) == 0 {
		return
	}
	h := m.habits[m.cursor]
	now := m.now()
	// completions already made today can still be undone
	if !habit.IsDue(h, now) && !habit.CompletedOn(h, now) {
		m.notice = fmt.Sprintf("%s is not due today.", h.Name)
		return
	}
	updated, err := m.board.Toggle(h.ID, now)
	if err != nil {
		m.l.Error("failed to toggle habit", "id", h.ID, "err", err)
		m.notice = "Could not update habit."
		return
	}
	m.refreshHabits()
	if habit.CompletedOn(updated, now) {
		m.notice = fmt.Sprintf("%s done. Streak: %d", updated.Name, updated.Streak)
	} else {
		m.notice = fmt.Sprintf("%s unmarked.", updated.Name)
	}
}

func (m *dashboardModel) resetHabit() {
	if len(m.habits) == 0 {
		return
	}
	h := m.habits[m.cursor]
	if m.pendingReset != h.ID {
		m.pendingReset = h.ID
		m.notice = fmt.Sprintf("Press x again to reset the streak for %s.", h.Name)
		return
	}

	m.pendingReset = ""
	if _, err := m.board.ResetStreak(h.ID, true); err != nil {
		m.l.Error("failed to reset streak", "id", h.ID, "err", err)
		m.notice = "Could not reset streak."
		return
	}
	m.refreshHabits()
	m.notice = fmt.Sprintf("Streak reset for %s.", h.Name)
}

func (m *dashboardModel) refreshHabits() {
	m.habits = m.board.List()
	if m.cursor >= len(m.habits) {
		m.cursor = max(0, len(m.habits)-1)
	}
}

func (m dashboardModel) View() string {
	now := m.now()
	hs := headerStyle
	if m.width > 0 {
		hs = hs.Width(m.width)
	}
	header := hs.Render(fmt.Sprintf("FocusForge - %s", now.Format("Mon Jan 2, 15:04")))

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(m.timerView()),
		boxStyle.Render(m.habitsView(now)),
	)

	parts := []string{header, content}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	parts = append(parts, footerStyle.Render(footerKeyMap))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m dashboardModel) timerView() string {
	s := m.engine.State()

	style := focusStyle
	if s.Phase.IsBreak() {
		style = breakStyle
	}
	status := "running"
	if !s.IsRunning {
		style = pausedStyle
		status = "paused"
	}

	lines := []string{
		style.Render(fmt.Sprintf("%s  %s", s.Phase, clock(s.RemainingSeconds))),
		timerBar(s.RemainingSeconds, s.PhaseDuration),
		dimStyle.Render(status),
		"",
		fmt.Sprintf("Pomodoros: %d (long break every %d)", s.CompletedWorkPhases, s.Settings.WorkPhasesBeforeLongBreak),
	}

	ambient := "none"
	if s.AmbientTrackName != "" {
		ambient = s.AmbientTrackName
	}
	if s.IsMuted {
		ambient += " (muted)"
	}
	lines = append(lines, fmt.Sprintf("Ambient: %s", ambient))

	if m.recorder != nil {
		totals := timelog.Totals(m.recorder.ForDate(focusforge.DateString(m.now())))
		lines = append(lines, fmt.Sprintf("Today: %s focus, %s break", totals[focusforge.FocusLog].Round(time.Minute), totals[focusforge.BreakLog].Round(time.Minute)))
		if d := totals[focusforge.DistractionLog]; d > 0 {
			lines = append(lines, fmt.Sprintf("Distracted: %s", d.Round(time.Minute)))
		}
	}
	return strings.Join(lines, "\n")
}

func (m dashboardModel) habitsView(now time.Time) string {
	lines := []string{"Discipline Board", ""}
	if len(m.habits) == 0 {
		lines = append(lines, dimStyle.Render("No habits yet. Add one with `focusforge habit add NAME`."))
		return strings.Join(lines, "\n")
	}

	for i, h := range m.habits {
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		mark := "[ ]"
		if habit.CompletedOn(h, now) {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s%s %s  streak %d", prefix, mark, h.Name, h.Streak)
		if !habit.IsDue(h, now) {
			line = dimStyle.Render(line + "  (not due today)")
		}
		lines = append(lines, line)
		if h.Consequence != "" && i == m.cursor {
			lines = append(lines, dimStyle.Render("    if missed: "+h.Consequence))
		}
	}
	return strings.Join(lines, "\n")
}
