package habit

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go"
	"github.com/benjamonnguyen/focusforge-go/store"
)

var (
	ErrNotFound             = errors.New("habit not found")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// Board is the discipline board: the persisted list of habits.
type Board struct {
	s *store.Store
	l log.Logger
}

func NewBoard(s *store.Store, l log.Logger) *Board {
	return &Board{s: s, l: l}
}

func (b *Board) List() []focusforge.Habit {
	return store.Load[[]focusforge.Habit](b.s, focusforge.HabitsKey, nil)
}

func (b *Board) Get(id string) (focusforge.Habit, error) {
	for _, h := range b.List() {
		if h.ID == id {
			return h, nil
		}
	}
	return focusforge.Habit{}, ErrNotFound
}

func (b *Board) Add(name, consequence string, targetDays []int) (focusforge.Habit, error) {
	h := focusforge.Habit{
		ID:          focusforge.NewID(),
		Consequence: strings.TrimSpace(consequence),
	}
	if err := setDetails(&h, name, targetDays); err != nil {
		return focusforge.Habit{}, err
	}

	store.Update(b.s, focusforge.HabitsKey, nil, func(hs []focusforge.Habit) []focusforge.Habit {
		return append(hs, h)
	})
	b.l.Info("added habit", "id", h.ID, "name", h.Name)
	return h, nil
}

// Edit changes the descriptive fields of a habit. The streak is untouched.
func (b *Board) Edit(id, name, consequence string, targetDays []int) (focusforge.Habit, error) {
	return b.modify(id, func(h focusforge.Habit) (focusforge.Habit, error) {
		if err := setDetails(&h, name, targetDays); err != nil {
			return h, err
		}
		h.Consequence = strings.TrimSpace(consequence)
		return h, nil
	})
}

func (b *Board) Delete(id string) error {
	found := false
	store.Update(b.s, focusforge.HabitsKey, nil, func(hs []focusforge.Habit) []focusforge.Habit {
		return slices.DeleteFunc(hs, func(h focusforge.Habit) bool {
			if h.ID == id {
				found = true
				return true
			}
			return false
		})
	})
	if !found {
		return ErrNotFound
	}
	b.l.Info("deleted habit", "id", id)
	return nil
}

// Toggle marks the habit complete for today or undoes today's completion.
// It is allowed on days the habit is not due.
func (b *Board) Toggle(id string, today time.Time) (focusforge.Habit, error) {
	return b.modify(id, func(h focusforge.Habit) (focusforge.Habit, error) {
		return ToggleCompletion(h, today), nil
	})
}

// ResetStreak zeroes the streak. It refuses to act unless confirmed.
func (b *Board) ResetStreak(id string, confirmed bool) (focusforge.Habit, error) {
	if !confirmed {
		return focusforge.Habit{}, ErrConfirmationRequired
	}
	return b.modify(id, func(h focusforge.Habit) (focusforge.Habit, error) {
		return ResetStreak(h), nil
	})
}

func (b *Board) modify(id string, fn func(focusforge.Habit) (focusforge.Habit, error)) (focusforge.Habit, error) {
	var (
		out focusforge.Habit
		err = ErrNotFound
	)
	store.Update(b.s, focusforge.HabitsKey, nil, func(hs []focusforge.Habit) []focusforge.Habit {
		i := slices.IndexFunc(hs, func(h focusforge.Habit) bool { return h.ID == id })
		if i < 0 {
			return hs
		}
		next, fnErr := fn(hs[i])
		if fnErr != nil {
			err = fnErr
			return hs
		}
		hs[i] = next
		out, err = next, nil
		return hs
	})
	if err != nil {
		return focusforge.Habit{}, err
	}
	b.l.Debug("updated habit", "id", id, "streak", out.Streak)
	return out, nil
}

func setDetails(h *focusforge.Habit, name string, targetDays []int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("provide habit name")
	}
	days, err := normalizeDays(targetDays)
	if err != nil {
		return err
	}
	h.Name = name
	h.TargetDays = days
	return nil
}

func normalizeDays(days []int) ([]int, error) {
	if len(days) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %d: must be 0 (Sun) to 6 (Sat)", d)
		}
		out = append(out, d)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
