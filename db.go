package focusforge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage keys shared by every consumer of the key-value store.
const (
	PomodoroSettingsKey = "FocusForge_pomodoroSettings"
	TimeLogsKey         = "FocusForge_timeLogs"
	HabitsKey           = "FocusForge_habits"
)

// ErrNotFound is returned by a KVRepo for a missing key.
var ErrNotFound = errors.New("not found")

// KVRepo persists opaque values by key.
type KVRepo interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const DateLayout = "2006-01-02"

// DateString formats the calendar day of t as yyyy-mm-dd.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

func NewID() string {
	return uuid.NewString()
}

type TimeLogType string

const (
	FocusLog       TimeLogType = "focus"
	BreakLog       TimeLogType = "break"
	DistractionLog TimeLogType = "distraction"
)

func ParseTimeLogType(s string) (TimeLogType, error) {
	switch t := TimeLogType(strings.ToLower(strings.TrimSpace(s))); t {
	case FocusLog, BreakLog, DistractionLog:
		return t, nil
	}
	return "", fmt.Errorf("unknown time log type %q", s)
}

type TimeLog struct {
	ID        string      `json:"id"`
	StartTime int64       `json:"startTime"` // epoch ms
	EndTime   int64       `json:"endTime"`   // epoch ms
	Activity  string      `json:"activity"`
	Type      TimeLogType `json:"type"`
	Date      string      `json:"date"`
}

func (l TimeLog) Duration() time.Duration {
	return time.Duration(l.EndTime-l.StartTime) * time.Millisecond
}

type Habit struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Streak            int     `json:"streak"`
	LastCompletedDate *string `json:"lastCompletedDate"`
	Consequence       string  `json:"consequence,omitempty"`
	TargetDays        []int   `json:"targetDays,omitempty"` // 0 (Sun) - 6 (Sat)
}
