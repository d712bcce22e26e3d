package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go"
	"github.com/benjamonnguyen/focusforge-go/discordgo"
	"github.com/benjamonnguyen/focusforge-go/habit"
	"github.com/benjamonnguyen/focusforge-go/pomodoro"
	"github.com/benjamonnguyen/focusforge-go/sqlite"
	"github.com/benjamonnguyen/focusforge-go/store"
	"github.com/benjamonnguyen/focusforge-go/timelog"
)

type app struct {
	cfg      focusforge.Config
	store    *store.Store
	board    *habit.Board
	recorder *timelog.Recorder
	l        log.Logger
	out      io.Writer
	now      func() time.Time
}

func main() {
	isProd := flag.Bool("prod", false, "load .env instead of .env.dev")
	flag.Parse()

	cfg, err := focusforge.LoadConfig(*isProd)
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}

	interactive := flag.NArg() == 0
	l, closeLog, err := newLogger(cfg, interactive)
	if err != nil {
		log.Fatal("failed to set up logging", "err", err)
	}
	defer closeLog()
	log.SetDefault(l)

	// db
	l.Info("opening db", "path", cfg.DatabasePath)
	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed database open", "err", err)
	}
	defer db.Close() //nolint

	tx, dbGetter := txStdLib.NewTransactor(db, txStdLib.NestedTransactionsSavepoints)
	st := store.New(sqlite.NewKVRepo(dbGetter, *l), tx, *l)

	a := &app{
		cfg:      cfg,
		store:    st,
		board:    habit.NewBoard(st, *l),
		recorder: timelog.NewRecorder(st, *l),
		l:        *l,
		out:      os.Stdout,
		now:      time.Now,
	}

	if !interactive {
		if err := a.runCommand(flag.Args()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := a.runDashboard(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}

// newLogger writes to the log file while the dashboard owns the terminal,
// and to stderr otherwise.
func newLogger(cfg focusforge.Config, interactive bool) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	if !interactive {
		l := log.NewWithOptions(os.Stderr, log.Options{Level: max(level, log.WarnLevel)})
		return l, func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := log.NewWithOptions(f, log.Options{
		Level:           level,
		ReportTimestamp: true,
		ReportCaller:    true,
	})
	return l, func() { _ = f.Close() }, nil
}

type notifier interface {
	Notify(msg string) error
}

// newPhaseEndHandler records the time log and forwards the event to the
// dashboard. It never blocks: the engine may call it from inside Update.
func newPhaseEndHandler(rec *timelog.Recorder, n notifier, send func(tea.Msg), l log.Logger) func(pomodoro.PhaseEnded) {
	return func(ev pomodoro.PhaseEnded) {
		rec.Record(ev)
		invitation := timelog.BreakInvitation(ev)
		if n != nil && invitation != "" {
			go func() {
				if err := n.Notify(invitation); err != nil {
					l.Warn("failed to send break invitation", "err", err)
				}
			}()
		}
		go send(phaseEndedMsg{ev: ev, invitation: invitation})
	}
}

func (a *app) runDashboard() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	player, n, closeDiscord := a.setupDiscord()
	defer closeDiscord()

	var prog *tea.Program
	send := func(msg tea.Msg) { prog.Send(msg) }

	settings := store.Load(a.store, focusforge.PomodoroSettingsKey, a.cfg.Pomodoro)
	visibility := pomodoro.NewVisibilitySignal()
	engine := pomodoro.NewEngine(
		settings,
		newPhaseEndHandler(a.recorder, n, send, a.l),
		pomodoro.WithPlayer(player),
		pomodoro.WithVisibility(visibility),
		pomodoro.WithLogger(a.l),
	)
	defer engine.Close() //nolint

	m := newDashboardModel(engine, visibility, a.board, a.recorder, a.cfg.AmbientPath, a.l)
	prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))

	go engine.Run(ctx)
	a.l.Info("dashboard started", "settings", settings)
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// setupDiscord returns the audio player and notifier to use. Without Discord
// voice the player rings the terminal bell, and without a text channel there
// is no notifier.
func (a *app) setupDiscord() (pomodoro.Player, notifier, func()) {
	var (
		player pomodoro.Player = pomodoro.NewBellPlayer(a.out)
		n      notifier
	)
	dc := a.cfg.Discord
	if dc.Token == "" {
		return player, nil, func() {}
	}

	cl, err := discordgo.Open(dc.Token)
	if err != nil {
		a.l.Error("failed to connect to discord", "err", err)
		return player, nil, func() {}
	}
	closers := []func(){func() { _ = cl.Close() }}

	if dc.TextChannelID != "" {
		n = discordgo.NewNotifier(cl, dc.TextChannelID, a.l)
	}
	if dc.VoiceEnabled() {
		alert, err := loadOpusFile(a.cfg.AlertPath)
		if err != nil {
			a.l.Warn("failed to load alert sound", "path", a.cfg.AlertPath, "err", err)
		}
		vp, err := discordgo.NewVoicePlayer(cl, dc.GuildID, dc.VoiceChannelID, alert, a.l)
		if err != nil {
			a.l.Error("failed to start voice player", "guildID", dc.GuildID, "channelID", dc.VoiceChannelID, "err", err)
		} else {
			player = vp
			closers = append(closers, func() { _ = vp.Close() })
		}
	}

	return player, n, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func loadOpusFile(path string) ([][]byte, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint
	return discordgo.ReadOpusContainer(f)
}
