// Package blob stores raw attachment bytes under logical paths.
package blob

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyExists is returned when an object already occupies the path.
	// Sinks never overwrite.
	ErrAlreadyExists = errors.New("blob already exists")
	// ErrNotFound is returned when the backing container or directory is missing.
	ErrNotFound = errors.New("blob container not found")
	// ErrUnavailable covers transport and connectivity failures.
	ErrUnavailable = errors.New("blob store unavailable")
	// ErrInvalidPath is returned for paths that escape the store root.
	ErrInvalidPath = errors.New("invalid blob path")
)

// Reference identifies a stored object.
type Reference struct {
	Path string
	URL  string
}

// Sink writes whole objects. An object appears completely or not at all.
type Sink interface {
	Put(ctx context.Context, data []byte, path string) (Reference, error)
}
