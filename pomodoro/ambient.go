package pomodoro

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Player is an audio backend. Load reads r to completion before returning.
type Player interface {
	Load(name string, r io.Reader) (Track, error)
	// Alert plays the short end-of-phase sound once.
	Alert() error
}

// Track is a loaded looping audio resource.
type Track interface {
	Play() error
	Pause()
	Rewind()
	SetMuted(bool)
	Close() error
}

// SilentPlayer keeps track bookkeeping without producing sound.
type SilentPlayer struct{}

var _ Player = SilentPlayer{}

func (SilentPlayer) Load(name string, r io.Reader) (Track, error) {
	if r == nil {
		return nil, errors.New("provide track data")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, fmt.Errorf("failed to read track: %w", err)
	}
	return silentTrack{}, nil
}

func (SilentPlayer) Alert() error { return nil }

// BellPlayer rings the terminal bell for alerts. Ambient tracks are accepted
// but not decoded.
type BellPlayer struct {
	SilentPlayer

	mu sync.Mutex
	w  io.Writer
}

var _ Player = (*BellPlayer)(nil)

func NewBellPlayer(w io.Writer) *BellPlayer {
	return &BellPlayer{w: w}
}

func (p *BellPlayer) Alert() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := io.WriteString(p.w, "\a"); err != nil {
		return fmt.Errorf("failed to ring bell: %w", err)
	}
	return nil
}

type silentTrack struct{}

func (silentTrack) Play() error   { return nil }
func (silentTrack) Pause()        {}
func (silentTrack) Rewind()       {}
func (silentTrack) SetMuted(bool) {}
func (silentTrack) Close() error  { return nil }

// ambient owns at most one Track. Callers serialize access.
type ambient struct {
	player  Player
	track   Track
	name    string
	muted   bool
	playing bool
	l       log.Logger
}

func newAmbient(player Player, l log.Logger) *ambient {
	return &ambient{player: player, l: l}
}

// acquire loads a new track and releases the previous one before adopting it.
// On failure the previous track is kept.
func (a *ambient) acquire(name string, r io.Reader) error {
	t, err := a.player.Load(name, r)
	if err != nil {
		return fmt.Errorf("failed to load ambient track %q: %w", name, err)
	}
	a.release()
	t.SetMuted(a.muted)
	a.track = t
	a.name = name
	return nil
}

func (a *ambient) release() {
	if a.track == nil {
		return
	}
	a.track.Pause()
	if err := a.track.Close(); err != nil {
		a.l.Warn("failed to release ambient track", "name", a.name, "err", err)
	}
	a.track = nil
	a.name = ""
	a.playing = false
}

func (a *ambient) play() {
	if a.track == nil || a.playing {
		return
	}
	if err := a.track.Play(); err != nil {
		a.l.Warn("failed to play ambient track", "name", a.name, "err", err)
		return
	}
	a.playing = true
}

func (a *ambient) pause() {
	if a.track == nil {
		return
	}
	a.track.Pause()
	a.playing = false
}

func (a *ambient) stop() {
	if a.track == nil {
		return
	}
	a.pause()
	a.track.Rewind()
}

func (a *ambient) toggleMute() bool {
	a.muted = !a.muted
	if a.track != nil {
		a.track.SetMuted(a.muted)
	}
	return a.muted
}

func (a *ambient) alert() {
	if err := a.player.Alert(); err != nil {
		a.l.Warn("failed to play alert", "err", err)
	}
}
