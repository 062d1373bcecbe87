// Package chat defines the transport-neutral message events consumed by the
// ingestion handler and the reply operations it needs from the platform.
package chat

import "context"

// Reaction glyphs.
const (
	GlyphSuccess = "✅"
	GlyphFailure = "❌"
)

// Attachment is a file carried by a message. Read downloads its full content.
type Attachment struct {
	Filename string
	Size     int
	Read     func(ctx context.Context) ([]byte, error)
}

// Event is one inbound message.
type Event struct {
	AuthorID    string
	ChannelID   string
	MessageID   string
	Content     string
	Attachments []Attachment
}

// Filenames returns the attachment filenames in message order.
func (e Event) Filenames() []string {
	names := make([]string, len(e.Attachments))
	for i, a := range e.Attachments {
		names[i] = a.Filename
	}
	return names
}

// Responder sends acknowledgments back to the platform. Both calls are best
// effort.
type Responder interface {
	SendMessage(ctx context.Context, channelID, text string) error
	AddReaction(ctx context.Context, channelID, messageID, glyph string) error
}
