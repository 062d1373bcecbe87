package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tachora/tachora/internal/access"
	"github.com/tachora/tachora/internal/blob"
	"github.com/tachora/tachora/internal/chat"
	"github.com/tachora/tachora/internal/command"
	"github.com/tachora/tachora/internal/note"
)

// Acknowledgment texts.
const (
	ReplyImageSaved      = "🖼️ Image saved to Blob and metadata recorded!"
	ReplyImageFailed     = "❌ Sorry, there was an error processing your image. Please try again later."
	ReplyUnexpectedError = "❌ An unexpected error occurred. Please try again later."
	ReplyTextSaved       = "📝 Text message saved to memory!"
	ReplyTextFailed      = "❌ Failed to save your message. Try again."
)

// AccessGuard decides whether a sender may use the relay.
type AccessGuard interface {
	IsAuthorized(senderID string) bool
}

// BlobSink stores attachment bytes.
type BlobSink interface {
	Put(ctx context.Context, data []byte, path string) (blob.Reference, error)
}

// NoteStore persists note metadata.
type NoteStore interface {
	CreateNote(ctx context.Context, n note.Note) (string, error)
}

// Stage names the pipeline step an event failed in.
type Stage string

const (
	StageAttachment Stage = "attachment"
	StageBlob       Stage = "blob"
	StageMetadata   Stage = "metadata"
)

// StageError records the stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// isStorageFailure reports whether err came from the blob or metadata stage.
func isStorageFailure(err error) bool {
	var se *StageError
	return errors.As(err, &se) && (se.Stage == StageBlob || se.Stage == StageMetadata)
}

// Deps are the read-only collaborators shared by all events.
type Deps struct {
	Guard     AccessGuard
	Blobs     BlobSink
	Notes     NoteStore
	Responder chat.Responder
	Builder   *note.Builder
	Logger    *slog.Logger
}

// Handler runs the ingestion pipeline for one message event at a time. It
// keeps no per-event state, so HandleEvent may be called concurrently.
type Handler struct {
	guard     AccessGuard
	blobs     BlobSink
	notes     NoteStore
	responder chat.Responder
	builder   *note.Builder
	logger    *slog.Logger
}

// NewHandler creates a Handler. A nil Builder or Logger falls back to defaults.
func NewHandler(deps Deps) *Handler {
	if deps.Builder == nil {
		deps.Builder = note.NewBuilder(nil, nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{
		guard:     deps.Guard,
		blobs:     deps.Blobs,
		notes:     deps.Notes,
		responder: deps.Responder,
		builder:   deps.Builder,
		logger:    deps.Logger,
	}
}

// HandleEvent processes ev through access check, command check,
// classification and storage, then acknowledges the sender. Failures are
// reported to the sender and logged; they never escape this call.
func (h *Handler) HandleEvent(ctx context.Context, ev chat.Event) {
	logger := h.logger.With("author_id", ev.AuthorID, "message_id", ev.MessageID)

	// Panics inside a note are handled per note. This catches the rest,
	// all of which happen before any acknowledgment is sent.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling message", "panic", r)
			h.reply(ctx, logger, ev, ReplyUnexpectedError)
			h.react(ctx, logger, ev, chat.GlyphFailure)
		}
	}()

	if !h.guard.IsAuthorized(ev.AuthorID) {
		logger.Info("refused unauthorized sender")
		h.reply(ctx, logger, ev, access.Refusal)
		return
	}

	if cmd, ok := command.Interpret(ev.Content); ok {
		logger.Debug("command", "name", cmd.Name)
		h.reply(ctx, logger, ev, cmd.Reply)
		return
	}

	intent := note.Classify(ev.Content, ev.Filenames())
	switch intent.Kind {
	case note.KindImage:
		at := h.builder.EventTime()
		for _, idx := range intent.Attachments {
			h.ingestImage(ctx, logger, ev, at, ev.Attachments[idx], intent.Caption)
		}
	case note.KindTextOnly:
		h.ingestText(ctx, logger, ev, h.builder.EventTime(), intent.Text)
	case note.KindIgnore:
		logger.Debug("ignored empty message")
	}
}

// PanicError is a panic recovered while storing a single note.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// recoverNote runs fn, turning a panic into a *PanicError so the caller
// acknowledges the note exactly once.
func recoverNote(fn func() (note.Note, error)) (n note.Note, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}

func (h *Handler) ingestImage(ctx context.Context, logger *slog.Logger, ev chat.Event, at time.Time, att chat.Attachment, caption string) {
	n, err := recoverNote(func() (note.Note, error) {
		return h.saveImage(ctx, ev.AuthorID, at, att, caption)
	})
	if err != nil {
		logger.Error("failed to save image", "filename", att.Filename, "error", err)
		if isStorageFailure(err) {
			h.reply(ctx, logger, ev, ReplyImageFailed)
		} else {
			h.reply(ctx, logger, ev, ReplyUnexpectedError)
		}
		h.react(ctx, logger, ev, chat.GlyphFailure)
		return
	}

	logger.Info("image note saved", "note_id", n.ID, "blob_path", n.BlobPath)
	h.reply(ctx, logger, ev, ReplyImageSaved)
	h.react(ctx, logger, ev, chat.GlyphSuccess)
}

// saveImage writes the blob first and the metadata second, so metadata never
// references a missing blob.
func (h *Handler) saveImage(ctx context.Context, userID string, at time.Time, att chat.Attachment, caption string) (note.Note, error) {
	stamp := h.builder.Stamp(at)
	blobPath := note.BlobPath(stamp, att.Filename)

	if att.Read == nil {
		return note.Note{}, &StageError{Stage: StageAttachment, Err: errors.New("attachment has no reader")}
	}
	data, err := att.Read(ctx)
	if err != nil {
		return note.Note{}, &StageError{Stage: StageAttachment, Err: fmt.Errorf("reading %s: %w", att.Filename, err)}
	}

	ref, err := h.blobs.Put(ctx, data, blobPath)
	if err != nil {
		return note.Note{}, &StageError{Stage: StageBlob, Err: err}
	}

	n := note.NewImageNote(stamp, userID, caption, ref.Path, ref.URL)
	if _, err := h.notes.CreateNote(ctx, n); err != nil {
		return note.Note{}, &StageError{Stage: StageMetadata, Err: err}
	}
	return n, nil
}

func (h *Handler) ingestText(ctx context.Context, logger *slog.Logger, ev chat.Event, at time.Time, text string) {
	n, err := recoverNote(func() (note.Note, error) {
		n := note.NewTextNote(h.builder.Stamp(at), ev.AuthorID, text)
		if _, err := h.notes.CreateNote(ctx, n); err != nil {
			return n, &StageError{Stage: StageMetadata, Err: err}
		}
		return n, nil
	})
	if err != nil {
		logger.Error("failed to save text message", "note_id", n.ID, "error", err)
		var pe *PanicError
		if errors.As(err, &pe) {
			h.reply(ctx, logger, ev, ReplyUnexpectedError)
		} else {
			h.reply(ctx, logger, ev, ReplyTextFailed)
		}
		h.react(ctx, logger, ev, chat.GlyphFailure)
		return
	}

	logger.Info("text note saved", "note_id", n.ID)
	h.reply(ctx, logger, ev, ReplyTextSaved)
	h.react(ctx, logger, ev, chat.GlyphSuccess)
}

// reply and react log transport failures, panics included; an
// acknowledgment never takes the event down with it.
func (h *Handler) reply(ctx context.Context, logger *slog.Logger, ev chat.Event, text string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while sending reply", "channel_id", ev.ChannelID, "panic", r)
		}
	}()
	if err := h.responder.SendMessage(ctx, ev.ChannelID, text); err != nil {
		logger.Error("failed to send reply", "channel_id", ev.ChannelID, "error", err)
	}
}

func (h *Handler) react(ctx context.Context, logger *slog.Logger, ev chat.Event, glyph string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while adding reaction", "channel_id", ev.ChannelID, "glyph", glyph, "panic", r)
		}
	}()
	if err := h.responder.AddReaction(ctx, ev.ChannelID, ev.MessageID, glyph); err != nil {
		logger.Error("failed to add reaction", "channel_id", ev.ChannelID, "glyph", glyph, "error", err)
	}
}
