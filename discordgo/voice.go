package discordgo

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/benjamonnguyen/focusforge-go/pomodoro"
)

const (
	frameDuration = 20 * time.Millisecond
	sendTimeout   = time.Second
)

var silenceFrame = []byte{0xF8, 0xFF, 0xFE}

// VoiceConnection is the part of *discordgo.VoiceConnection the player needs.
type VoiceConnection interface {
	Speaking(bool) error
	Send(packet []byte)
	Disconnect() error
}

type dgVoiceConnection struct {
	*discordgo.VoiceConnection
}

// Send drops the packet if the connection is not accepting audio.
func (c dgVoiceConnection) Send(packet []byte) {
	select {
	case c.OpusSend <- packet:
	case <-time.After(sendTimeout):
	}
}

// VoicePlayer streams the ambient loop and the alert into one voice channel.
// A single loop emits one frame every 20ms; a pending alert takes priority
// over the ambient track, which resumes where it left off.
type VoicePlayer struct {
	conn VoiceConnection
	l    log.Logger

	mu       sync.Mutex
	alert    [][]byte
	queue    [][]byte
	current  *voiceTrack
	speaking bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ pomodoro.Player = (*VoicePlayer)(nil)

// NewVoicePlayer joins the voice channel and starts streaming.
func NewVoicePlayer(cl *discordgo.Session, gID, cID string, alert [][]byte, l log.Logger) (*VoicePlayer, error) {
	conn, err := cl.ChannelVoiceJoin(gID, cID, false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	p := newVoicePlayer(dgVoiceConnection{conn}, alert, l)
	p.wg.Go(p.run)
	return p, nil
}

func newVoicePlayer(conn VoiceConnection, alert [][]byte, l log.Logger) *VoicePlayer {
	return &VoicePlayer{
		conn:  conn,
		alert: alert,
		l:     l,
		done:  make(chan struct{}),
	}
}

func (p *VoicePlayer) Load(name string, r io.Reader) (pomodoro.Track, error) {
	if r == nil {
		return nil, errors.New("provide track data")
	}
	packets, err := ReadOpusContainer(r)
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("no opus packets in %s", name)
	}
	p.l.Debug("loaded opus track", "name", name, "packets", len(packets))
	return &voiceTrack{p: p, packets: packets}, nil
}

// Alert queues the alert sound. It does not wait for it to play.
func (p *VoicePlayer) Alert() error {
	if len(p.alert) == 0 {
		return nil
	}
	select {
	case <-p.done:
		return errors.New("voice player closed")
	default:
	}

	p.mu.Lock()
	p.queue = append(p.queue[:0], p.alert...)
	p.mu.Unlock()
	return nil
}

func (p *VoicePlayer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		if p.speaking {
			_ = p.conn.Speaking(false)
		}
		err = p.conn.Disconnect()
	})
	return err
}

func (p *VoicePlayer) run() {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.step()
		}
	}
}

// step sends at most one frame.
func (p *VoicePlayer) step() {
	frame := p.nextFrame()
	if frame == nil {
		p.setSpeaking(false)
		return
	}
	p.setSpeaking(true)
	p.conn.Send(frame)
}

func (p *VoicePlayer) nextFrame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) > 0 {
		frame := p.queue[0]
		p.queue = p.queue[1:]
		return frame
	}

	t := p.current
	if t == nil || !t.playing {
		return nil
	}
	frame := t.packets[t.pos]
	t.pos = (t.pos + 1) % len(t.packets)
	if t.muted {
		return silenceFrame
	}
	return frame
}

func (p *VoicePlayer) setSpeaking(speaking bool) {
	if p.speaking == speaking {
		return
	}
	if err := p.conn.Speaking(speaking); err != nil {
		p.l.Warn("failed to set speaking", "speaking", speaking, "err", err)
		return
	}
	p.speaking = speaking
}

// voiceTrack state is guarded by its player's mutex.
type voiceTrack struct {
	p       *VoicePlayer
	packets [][]byte
	pos     int
	playing bool
	muted   bool
	closed  bool
}

func (t *voiceTrack) Play() error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if t.closed {
		return errors.New("track closed")
	}
	if t.p.current != nil && t.p.current != t {
		t.p.current.playing = false
	}
	t.p.current = t
	t.playing = true
	return nil
}

func (t *voiceTrack) Pause() {
	t.p.mu.Lock()
	t.playing = false
	t.p.mu.Unlock()
}

func (t *voiceTrack) Rewind() {
	t.p.mu.Lock()
	t.pos = 0
	t.p.mu.Unlock()
}

func (t *voiceTrack) SetMuted(muted bool) {
	t.p.mu.Lock()
	t.muted = muted
	t.p.mu.Unlock()
}

func (t *voiceTrack) Close() error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if t.p.current == t {
		t.p.current = nil
	}
	t.playing = false
	t.closed = true
	t.packets = nil
	return nil
}
