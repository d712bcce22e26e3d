package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benjamonnguyen/focusforge-go"
	"github.com/benjamonnguyen/focusforge-go/habit"
	"github.com/benjamonnguyen/focusforge-go/store"
	"github.com/benjamonnguyen/focusforge-go/timelog"
)

const usage = `usage:
  focusforge [-prod]                       open the dashboard
  focusforge habit add [-consequence TEXT] [-days 0,1,...] NAME
  focusforge habit list
  focusforge habit rm ID
  focusforge logs [-date yyyy-mm-dd]
  focusforge logs add [-type focus|break|distraction] [-date yyyy-mm-dd] -start HH:MM -end HH:MM ACTIVITY
  focusforge logs edit [-type TYPE] [-date yyyy-mm-dd] [-start HH:MM] [-end HH:MM] ID [ACTIVITY]
  focusforge logs rm ID
  focusforge settings [-work N] [-short N] [-long N] [-every N]`

const timestampLayout = "2006-01-02T15:04"

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func (a *app) runCommand(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "habit":
		return a.habitCommand(args[1:])
	case "logs":
		return a.logsCommand(args[1:])
	case "settings":
		return a.settingsCommand(args[1:])
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func (a *app) habitCommand(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("habit add", flag.ContinueOnError)
		fs.SetOutput(a.out)
		consequence := fs.String("consequence", "", "what happens if the habit is missed")
		days := fs.String("days", "", "comma-separated target weekdays, 0 (Sun) to 6 (Sat); empty means daily")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		targetDays, err := parseTargetDays(*days)
		if err != nil {
			return err
		}
		h, err := a.board.Add(strings.Join(fs.Args(), " "), *consequence, targetDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "added %s (%s)\n", h.Name, h.ID)
		return nil

	case "list":
		habits := a.board.List()
		if len(habits) == 0 {
			fmt.Fprintln(a.out, "no habits")
			return nil
		}
		today := a.now()
		for _, h := range habits {
			fmt.Fprintln(a.out, formatHabit(h, today))
		}
		return nil

	case "rm":
		if len(args) != 2 {
			return errors.New("usage: focusforge habit rm ID")
		}
		if err := a.board.Delete(args[1]); err != nil {
			return fmt.Errorf("failed to delete habit %s: %w", args[1], err)
		}
		fmt.Fprintf(a.out, "deleted %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown habit command %q\n%s", args[0], usage)
	}
}

func (a *app) logsCommand(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "add":
			return a.logsAddCommand(args[1:])
		case "edit":
			return a.logsEditCommand(args[1:])
		case "rm":
			if len(args) != 2 {
				return errors.New("usage: focusforge logs rm ID")
			}
			if err := a.recorder.Delete(args[1]); err != nil {
				return fmt.Errorf("failed to delete time log %s: %w", args[1], err)
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[1])
			return nil
		}
	}

	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(a.out)
	date := fs.String("date", focusforge.DateString(a.now()), "day to show (yyyy-mm-dd)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := time.Parse(focusforge.DateLayout, *date); err != nil {
		return fmt.Errorf("invalid date %q: %w", *date, err)
	}

	logs := a.recorder.ForDate(*date)
	if len(logs) == 0 {
		fmt.Fprintf(a.out, "no time logs for %s\n", *date)
		return nil
	}
	for _, tl := range logs {
		start := time.UnixMilli(tl.StartTime).In(a.now().Location())
		end := time.UnixMilli(tl.EndTime).In(a.now().Location())
		fmt.Fprintf(a.out, "%s-%s  %-22s %-11s %s\n", start.Format("15:04"), end.Format("15:04"), tl.Activity, tl.Type, tl.ID)
	}
	totals := timelog.Totals(logs)
	fmt.Fprintf(a.out, "total: %s focus, %s break, %s distraction\n",
		totals[focusforge.FocusLog], totals[focusforge.BreakLog], totals[focusforge.DistractionLog])
	return nil
}

func (a *app) logsAddCommand(args []string) error {
	fs := flag.NewFlagSet("logs add", flag.ContinueOnError)
	fs.SetOutput(a.out)
	typ := fs.String("type", string(focusforge.FocusLog), "focus, break or distraction")
	date := fs.String("date", focusforge.DateString(a.now()), "day of the activity (yyyy-mm-dd)")
	start := fs.String("start", "", "start time (HH:MM or yyyy-mm-ddTHH:MM)")
	end := fs.String("end", "", "end time (HH:MM or yyyy-mm-ddTHH:MM)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := a.parseEntry(strings.Join(fs.Args(), " "), *typ, *date, *start, *end)
	if err != nil {
		return err
	}
	tl, err := a.recorder.Add(e)
	if err != nil {
		return fmt.Errorf("failed to add time log: %w", err)
	}
	fmt.Fprintf(a.out, "logged %s %s (%s)\n", tl.Activity, tl.Duration(), tl.ID)
	return nil
}

func (a *app) logsEditCommand(args []string) error {
	fs := flag.NewFlagSet("logs edit", flag.ContinueOnError)
	fs.SetOutput(a.out)
	typ := fs.String("type", "", "focus, break or distraction")
	date := fs.String("date", "", "day of the activity (yyyy-mm-dd)")
	start := fs.String("start", "", "start time (HH:MM or yyyy-mm-ddTHH:MM)")
	end := fs.String("end", "", "end time (HH:MM or yyyy-mm-ddTHH:MM)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: focusforge logs edit [flags] ID [ACTIVITY]")
	}

	id := fs.Arg(0)
	cur, err := a.recorder.Get(id)
	if err != nil {
		return fmt.Errorf("failed to edit time log %s: %w", id, err)
	}
	loc := a.now().Location()
	curStart := time.UnixMilli(cur.StartTime).In(loc)
	curEnd := time.UnixMilli(cur.EndTime).In(loc)

	activity := strings.Join(fs.Args()[1:], " ")
	if activity == "" {
		activity = cur.Activity
	}
	if *typ == "" {
		*typ = string(cur.Type)
	}
	// a new -date moves the unchanged times onto that day
	layout := "15:04"
	if *date == "" {
		*date = focusforge.DateString(curStart)
		layout = timestampLayout
	}
	if *start == "" {
		*start = curStart.Format(layout)
	}
	if *end == "" {
		*end = curEnd.Format(layout)
	}

	e, err := a.parseEntry(activity, *typ, *date, *start, *end)
	if err != nil {
		return err
	}
	tl, err := a.recorder.Edit(id, e)
	if err != nil {
		return fmt.Errorf("failed to edit time log %s: %w", id, err)
	}
	fmt.Fprintf(a.out, "updated %s %s (%s)\n", tl.Activity, tl.Duration(), tl.ID)
	return nil
}

func (a *app) parseEntry(activity, typ, date, start, end string) (timelog.Entry, error) {
	t, err := focusforge.ParseTimeLogType(typ)
	if err != nil {
		return timelog.Entry{}, err
	}
	startAt, err := a.parseTimestamp(date, start)
	if err != nil {
		return timelog.Entry{}, fmt.Errorf("invalid start: %w", err)
	}
	endAt, err := a.parseTimestamp(date, end)
	if err != nil {
		return timelog.Entry{}, fmt.Errorf("invalid end: %w", err)
	}
	return timelog.Entry{Activity: activity, Type: t, Start: startAt, End: endAt}, nil
}

// parseTimestamp reads HH:MM on date, or a full yyyy-mm-ddTHH:MM, in local time.
func (a *app) parseTimestamp(date, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("time is required")
	}
	if !strings.Contains(s, "T") {
		s = date + "T" + s
	}
	return time.ParseInLocation(timestampLayout, s, a.now().Location())
}

func (a *app) settingsCommand(args []string) error {
	cur := store.Load(a.store, focusforge.PomodoroSettingsKey, a.cfg.Pomodoro)

	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.SetOutput(a.out)
	work := fs.Int("work", cur.WorkDuration, "work minutes")
	short := fs.Int("short", cur.ShortBreakDuration, "short break minutes")
	long := fs.Int("long", cur.LongBreakDuration, "long break minutes")
	every := fs.Int("every", cur.WorkPhasesBeforeLongBreak, "work phases before a long break")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NFlag() > 0 {
		cur = focusforge.PomodoroSettings{
			WorkDuration:              *work,
			ShortBreakDuration:        *short,
			LongBreakDuration:         *long,
			WorkPhasesBeforeLongBreak: *every,
		}.Normalize()
		store.Save(a.store, focusforge.PomodoroSettingsKey, cur)
	}
	fmt.Fprintf(a.out, "work %d min, short break %d min, long break %d min, long break every %d\n",
		cur.WorkDuration, cur.ShortBreakDuration, cur.LongBreakDuration, cur.WorkPhasesBeforeLongBreak)
	return nil
}

func parseTargetDays(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

func formatHabit(h focusforge.Habit, today time.Time) string {
	mark := "[ ]"
	if habit.CompletedOn(h, today) {
		mark = "[x]"
	}
	schedule := "daily"
	if len(h.TargetDays) > 0 {
		names := make([]string, 0, len(h.TargetDays))
		for _, d := range h.TargetDays {
			if d >= 0 && d < len(weekdayNames) {
				names = append(names, weekdayNames[d])
			}
		}
		schedule = strings.Join(names, ",")
	}
	line := fmt.Sprintf("%s %s  streak %d  %s  %s", mark, h.Name, h.Streak, schedule, h.ID)
	if h.Consequence != "" {
		line += "\n    if missed: " + h.Consequence
	}
	return line
}
