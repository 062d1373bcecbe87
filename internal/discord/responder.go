package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/tachora/tachora/internal/chat"
)

var _ chat.Responder = (*Responder)(nil)

// messenger is the subset of *discordgo.Session used to acknowledge messages.
type messenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
}

// Responder implements chat.Responder on a Discord session.
type Responder struct {
	session messenger
}

// NewResponder wraps session, normally the *discordgo.Session shared with the Bot.
func NewResponder(session messenger) *Responder {
	return &Responder{session: session}
}

// SendMessage posts text to channelID.
func (r *Responder) SendMessage(ctx context.Context, channelID, text string) error {
	_, err := r.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

// AddReaction reacts to messageID with a unicode emoji glyph.
func (r *Responder) AddReaction(ctx context.Context, channelID, messageID, glyph string) error {
	return r.session.MessageReactionAdd(channelID, messageID, glyph, discordgo.WithContext(ctx))
}
