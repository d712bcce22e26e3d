// Package timelog keeps the time log: entries derived from timer phase ends
// and activities logged by hand.
package timelog

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go"
	"github.com/benjamonnguyen/focusforge-go/pomodoro"
	"github.com/benjamonnguyen/focusforge-go/store"
)

// FromPhaseEnd derives the log entry for a completed phase.
func FromPhaseEnd(ev pomodoro.PhaseEnded) focusforge.TimeLog {
	tl := focusforge.TimeLog{
		ID:        focusforge.NewID(),
		StartTime: ev.At.Add(-ev.EndedDuration).UnixMilli(),
		EndTime:   ev.At.UnixMilli(),
		Date:      focusforge.DateString(ev.At),
	}
	if ev.Ended == focusforge.WorkPhase {
		tl.Type = focusforge.FocusLog
		tl.Activity = fmt.Sprintf("Pomodoro Session #%d", ev.CompletedWorkPhases)
	} else {
		tl.Type = focusforge.BreakLog
		tl.Activity = ev.Ended.String()
	}
	return tl
}

// BreakInvitation is the message shown when a work phase ends. It is empty
// for break ends.
func BreakInvitation(ev pomodoro.PhaseEnded) string {
	if ev.Ended != focusforge.WorkPhase {
		return ""
	}
	return fmt.Sprintf("Focus time ended! Time for a %s.", ev.Next)
}

var (
	ErrNotFound       = errors.New("time log not found")
	ErrEmptyActivity  = errors.New("activity is required")
	ErrEndBeforeStart = errors.New("end time must be after start time")
)

// Entry is a manually logged activity.
type Entry struct {
	Activity string
	Type     focusforge.TimeLogType
	Start    time.Time
	End      time.Time
}

func (e Entry) apply(tl *focusforge.TimeLog) error {
	activity := strings.TrimSpace(e.Activity)
	if activity == "" {
		return ErrEmptyActivity
	}
	typ, err := focusforge.ParseTimeLogType(string(e.Type))
	if err != nil {
		return err
	}
	if !e.End.After(e.Start) {
		return ErrEndBeforeStart
	}

	tl.Activity = activity
	tl.Type = typ
	tl.StartTime = e.Start.UnixMilli()
	tl.EndTime = e.End.UnixMilli()
	tl.Date = focusforge.DateString(e.Start)
	return nil
}

type Recorder struct {
	s *store.Store
	l log.Logger
}

func NewRecorder(s *store.Store, l log.Logger) *Recorder {
	return &Recorder{s: s, l: l}
}

// Record persists the log for ev, newest first.
func (r *Recorder) Record(ev pomodoro.PhaseEnded) focusforge.TimeLog {
	tl := FromPhaseEnd(ev)
	store.Update(r.s, focusforge.TimeLogsKey, nil, func(logs []focusforge.TimeLog) []focusforge.TimeLog {
		return slices.Insert(logs, 0, tl)
	})
	r.l.Info("recorded time log", "activity", tl.Activity, "type", tl.Type, "date", tl.Date)
	return tl
}

// Add stores a manually logged activity, newest first.
func (r *Recorder) Add(e Entry) (focusforge.TimeLog, error) {
	tl := focusforge.TimeLog{ID: focusforge.NewID()}
	if err := e.apply(&tl); err != nil {
		return focusforge.TimeLog{}, err
	}

	store.Update(r.s, focusforge.TimeLogsKey, nil, func(logs []focusforge.TimeLog) []focusforge.TimeLog {
		return slices.Insert(logs, 0, tl)
	})
	r.l.Info("added time log", "id", tl.ID, "activity", tl.Activity, "type", tl.Type)
	return tl, nil
}

// Edit replaces every field of the log except its id.
func (r *Recorder) Edit(id string, e Entry) (focusforge.TimeLog, error) {
	var (
		out focusforge.TimeLog
		err = ErrNotFound
	)
	store.Update(r.s, focusforge.TimeLogsKey, nil, func(logs []focusforge.TimeLog) []focusforge.TimeLog {
		i := slices.IndexFunc(logs, func(tl focusforge.TimeLog) bool { return tl.ID == id })
		if i < 0 {
			return logs
		}
		next := logs[i]
		if err = e.apply(&next); err != nil {
			return logs
		}
		logs[i] = next
		out = next
		return logs
	})
	if err != nil {
		return focusforge.TimeLog{}, err
	}
	r.l.Info("edited time log", "id", id)
	return out, nil
}

func (r *Recorder) Delete(id string) error {
	found := false
	store.Update(r.s, focusforge.TimeLogsKey, nil, func(logs []focusforge.TimeLog) []focusforge.TimeLog {
		n := len(logs)
		logs = slices.DeleteFunc(logs, func(tl focusforge.TimeLog) bool { return tl.ID == id })
		found = len(logs) < n
		return logs
	})
	if !found {
		return ErrNotFound
	}
	r.l.Info("deleted time log", "id", id)
	return nil
}

func (r *Recorder) Get(id string) (focusforge.TimeLog, error) {
	for _, tl := range r.All() {
		if tl.ID == id {
			return tl, nil
		}
	}
	return focusforge.TimeLog{}, ErrNotFound
}

func (r *Recorder) All() []focusforge.TimeLog {
	return store.Load[[]focusforge.TimeLog](r.s, focusforge.TimeLogsKey, nil)
}

// ForDate returns the logs whose date is date (yyyy-mm-dd), latest start first.
func (r *Recorder) ForDate(date string) []focusforge.TimeLog {
	var out []focusforge.TimeLog
	for _, tl := range r.All() {
		if tl.Date == date {
			out = append(out, tl)
		}
	}
	slices.SortStableFunc(out, func(a, b focusforge.TimeLog) int {
		return cmp.Compare(b.StartTime, a.StartTime)
	})
	return out
}

// Totals sums log durations per type.
func Totals(logs []focusforge.TimeLog) map[focusforge.TimeLogType]time.Duration {
	out := make(map[focusforge.TimeLogType]time.Duration)
	for _, tl := range logs {
		out[tl.Type] += tl.Duration()
	}
	return out
}
