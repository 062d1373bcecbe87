package note

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceTag marks blobs that arrived as chat image attachments.
const SourceTag = "discord_img"

const pathTimeLayout = "2006-01-02_15-04-05"

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// IsImageFilename reports whether filename ends with an accepted image extension.
func IsImageFilename(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Kind tags the classification of a message event.
type Kind int

const (
	KindIgnore Kind = iota
	KindImage
	KindTextOnly
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindTextOnly:
		return "text-only"
	default:
		return "ignore"
	}
}

// Intent is the classifier's decision for one event.
type Intent struct {
	Kind Kind
	// Attachments holds the indices of qualifying attachments, in message order.
	Attachments []int
	// Caption is the raw message text for image intents.
	Caption string
	// Text is the raw message text for text-only intents.
	Text string
}

// Classify decides what an event carries. Attachments are matched by filename;
// text is only considered when no attachment qualifies.
func Classify(content string, filenames []string) Intent {
	var qualifying []int
	for i, name := range filenames {
		if IsImageFilename(name) {
			qualifying = append(qualifying, i)
		}
	}
	if len(qualifying) > 0 {
		return Intent{Kind: KindImage, Attachments: qualifying, Caption: content}
	}
	if strings.TrimSpace(content) != "" {
		return Intent{Kind: KindTextOnly, Text: content}
	}
	return Intent{Kind: KindIgnore}
}

// Builder generates ids and timestamps for new notes.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// NewBuilder returns a Builder using the wall clock and random uuids.
// Nil arguments fall back to those defaults.
func NewBuilder(now func() time.Time, newID func() string) *Builder {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	return &Builder{now: now, newID: newID}
}

// EventTime reads the clock once for an event. Every note derived from the
// event shares this time.
func (b *Builder) EventTime() time.Time {
	return b.now().UTC()
}

// Stamp pairs a fresh id with the event time t.
func (b *Builder) Stamp(t time.Time) Stamp {
	return Stamp{ID: b.newID(), Time: t.UTC()}
}

// BlobPath builds {year}/{month}/{time}_{id}_{tag}{ext}. The extension keeps
// the case it had in originalFilename.
func BlobPath(s Stamp, originalFilename string) string {
	t := s.Time.UTC()
	name := fmt.Sprintf("%s_%s_%s%s", t.Format(pathTimeLayout), s.ID, SourceTag, filepath.Ext(originalFilename))
	return path.Join(t.Format("2006"), t.Format("01"), name)
}

// NewImageNote assembles an image note for a blob already stored at blobPath.
func NewImageNote(s Stamp, userID, caption, blobPath, blobURL string) Note {
	return Note{
		ID:          s.ID,
		UserID:      userID,
		Timestamp:   s.Timestamp(),
		UserCaption: caption,
		Type:        TypeImage,
		BlobURL:     blobURL,
		BlobPath:    blobPath,
		Filename:    path.Base(blobPath),
	}
}

// NewTextNote assembles a text-only note.
func NewTextNote(s Stamp, userID, text string) Note {
	return Note{
		ID:          s.ID,
		UserID:      userID,
		Timestamp:   s.Timestamp(),
		Type:        TypeTextOnly,
		TextMessage: text,
	}
}
