package focusforge

import (
	"fmt"
	"time"
)

type Phase uint8

const (
	_ Phase = iota
	WorkPhase
	ShortBreakPhase
	LongBreakPhase
)

func (p Phase) String() string {
	switch p {
	case WorkPhase:
		return "Focus"
	case ShortBreakPhase:
		return "Short Break"
	case LongBreakPhase:
		return "Long Break"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

func (p Phase) IsBreak() bool {
	return p == ShortBreakPhase || p == LongBreakPhase
}

const (
	DefaultWorkMinutes               = 25
	DefaultShortBreakMinutes         = 5
	DefaultLongBreakMinutes          = 15
	DefaultWorkPhasesBeforeLongBreak = 4
)

// PomodoroSettings are expressed in whole minutes. JSON names match what the
// dashboard has always persisted.
type PomodoroSettings struct {
	WorkDuration              int `json:"workDuration"`
	ShortBreakDuration        int `json:"shortBreakDuration"`
	LongBreakDuration         int `json:"longBreakDuration"`
	WorkPhasesBeforeLongBreak int `json:"pomodorosBeforeLongBreak"`
}

func DefaultPomodoroSettings() PomodoroSettings {
	return PomodoroSettings{
		WorkDuration:              DefaultWorkMinutes,
		ShortBreakDuration:        DefaultShortBreakMinutes,
		LongBreakDuration:         DefaultLongBreakMinutes,
		WorkPhasesBeforeLongBreak: DefaultWorkPhasesBeforeLongBreak,
	}
}

// Normalize clamps every field to a minimum of 1.
func (s PomodoroSettings) Normalize() PomodoroSettings {
	s.WorkDuration = max(s.WorkDuration, 1)
	s.ShortBreakDuration = max(s.ShortBreakDuration, 1)
	s.LongBreakDuration = max(s.LongBreakDuration, 1)
	s.WorkPhasesBeforeLongBreak = max(s.WorkPhasesBeforeLongBreak, 1)
	return s
}

func (s PomodoroSettings) Duration(p Phase) time.Duration {
	return time.Duration(s.Seconds(p)) * time.Second
}

func (s PomodoroSettings) Seconds(p Phase) int {
	switch p {
	case WorkPhase:
		return s.WorkDuration * 60
	case ShortBreakPhase:
		return s.ShortBreakDuration * 60
	case LongBreakPhase:
		return s.LongBreakDuration * 60
	default:
		return 0
	}
}
