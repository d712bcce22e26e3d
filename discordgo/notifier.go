package discordgo

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// Open creates and connects a bot session able to join voice channels.
func Open(token string) (*discordgo.Session, error) {
	cl, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	cl.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if err := cl.Open(); err != nil {
		return nil, fmt.Errorf("failed to open discord session: %w", err)
	}
	return cl, nil
}

type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts timer messages to a text channel.
type Notifier struct {
	cl        messageSender
	channelID string
	l         log.Logger
}

func NewNotifier(cl *discordgo.Session, channelID string, l log.Logger) *Notifier {
	return newNotifier(cl, channelID, l)
}

func newNotifier(cl messageSender, channelID string, l log.Logger) *Notifier {
	return &Notifier{cl: cl, channelID: channelID, l: l}
}

// Notify sends msg. Empty messages are skipped.
func (n *Notifier) Notify(msg string) error {
	if msg == "" {
		return nil
	}
	if _, err := n.cl.ChannelMessageSend(n.channelID, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	n.l.Debug("sent notification", "channelID", n.channelID)
	return nil
}
