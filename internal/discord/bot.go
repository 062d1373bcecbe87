// Package discord connects the ingestion handler to a Discord bot account.
package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tachora/tachora/internal/chat"
)

// DefaultMaxAttachmentBytes caps attachment downloads.
const DefaultMaxAttachmentBytes = 25 << 20

// EventHandler consumes inbound message events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev chat.Event)
}

// Options configure a Bot.
type Options struct {
	MaxAttachmentBytes int64
	HTTPClient         *http.Client
	Logger             *slog.Logger
}

// Bot owns the gateway session. Each message-create event is dispatched on
// its own goroutine by discordgo.
type Bot struct {
	session  *discordgo.Session
	handler  EventHandler
	fetcher  *attachmentFetcher
	logger   *slog.Logger
	eventCtx context.Context
}

// NewSession creates a bot session with the intents needed to read message
// content in guild channels and direct messages.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return session, nil
}

// New attaches handler to session. The handler receives every message not
// sent by the bot itself.
func New(session *discordgo.Session, handler EventHandler, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	b := &Bot{
		session:  session,
		handler:  handler,
		fetcher:  newAttachmentFetcher(opts.HTTPClient, opts.MaxAttachmentBytes),
		logger:   opts.Logger,
		eventCtx: context.Background(),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	return b
}

// Run opens the gateway connection and blocks until ctx is cancelled.
// discordgo reconnects on its own after transient disconnects.
func (b *Bot) Run(ctx context.Context) error {
	b.eventCtx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: opening session: %w", err)
	}

	<-ctx.Done()
	b.logger.Info("closing discord session")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("discord: closing session: %w", err)
	}
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		b.logger.Info("bot is online", "user", r.User.Username, "user_id", r.User.ID)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if isOwnMessage(s, m) {
		return
	}
	b.handler.HandleEvent(b.eventCtx, toEvent(m, b.fetcher))
}

func isOwnMessage(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.Author == nil {
		return true
	}
	if s == nil || s.State == nil || s.State.User == nil {
		return false
	}
	return m.Author.ID == s.State.User.ID
}

func toEvent(m *discordgo.MessageCreate, f *attachmentFetcher) chat.Event {
	ev := chat.Event{
		AuthorID:  m.Author.ID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Content:   m.Content,
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		url := a.URL
		ev.Attachments = append(ev.Attachments, chat.Attachment{
			Filename: a.Filename,
			Size:     a.Size,
			Read: func(ctx context.Context) ([]byte, error) {
				return f.fetch(ctx, url)
			},
		})
	}
	return ev
}

type attachmentFetcher struct {
	client   *http.Client
	maxBytes int64
}

func newAttachmentFetcher(client *http.Client, maxBytes int64) *attachmentFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	return &attachmentFetcher{client: client, maxBytes: maxBytes}
}

// fetch downloads the whole attachment into memory.
func (f *attachmentFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building attachment request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}
