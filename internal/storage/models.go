package storage

import (
	"context"
	"errors"

	"github.com/tachora/tachora/internal/note"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when a note with the same id already exists.
	ErrDuplicateID = errors.New("duplicate note id")
	// ErrDuplicateBlobPath is returned when another note already references
	// the same blob.
	ErrDuplicateBlobPath = errors.New("duplicate blob path")
	// ErrUnavailable covers connectivity and backend failures.
	ErrUnavailable = errors.New("metadata store unavailable")
)

// NoteStore persists notes. Notes are create-only.
type NoteStore interface {
	CreateNote(ctx context.Context, n note.Note) (string, error)
}
