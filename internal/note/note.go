package note

import (
	"errors"
	"time"
)

// Type discriminates the shape of a Note.
type Type string

const (
	TypeImage    Type = "image"
	TypeTextOnly Type = "text-only"
)

// TimestampLayout is the ISO-8601 UTC layout used for Note.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Note is the persisted unit of memory. Notes are never updated after creation.
type Note struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Timestamp     string `json:"timestamp"`
	UserCaption   string `json:"user_caption"`
	AIDescription string `json:"ai_description"`
	Type          Type   `json:"type"`

	// Image notes only.
	BlobURL  string `json:"blob_url,omitempty"`
	BlobPath string `json:"blob_path,omitempty"`
	Filename string `json:"filename,omitempty"`

	// Text-only notes only.
	TextMessage string `json:"text_message,omitempty"`
}

var (
	ErrInvalidType  = errors.New("invalid note type")
	ErrMissingField = errors.New("missing required field")
	ErrMixedShape   = errors.New("note mixes image and text fields")
)

// Validate checks that exactly the fields matching Type are populated.
func (n Note) Validate() error {
	if n.ID == "" || n.UserID == "" || n.Timestamp == "" {
		return ErrMissingField
	}
	switch n.Type {
	case TypeImage:
		if n.BlobURL == "" || n.BlobPath == "" || n.Filename == "" {
			return ErrMissingField
		}
		if n.TextMessage != "" {
			return ErrMixedShape
		}
	case TypeTextOnly:
		if n.TextMessage == "" {
			return ErrMissingField
		}
		if n.BlobURL != "" || n.BlobPath != "" || n.Filename != "" {
			return ErrMixedShape
		}
	default:
		return ErrInvalidType
	}
	return nil
}

// Stamp carries the identity and time generated once per note. Every field
// derived from the event time (blob path, timestamp) reads from the same Stamp.
type Stamp struct {
	ID   string
	Time time.Time
}

// Timestamp formats the stamp time for Note.Timestamp.
func (s Stamp) Timestamp() string {
	return s.Time.UTC().Format(TimestampLayout)
}
