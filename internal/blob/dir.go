package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const tempFilePrefix = "tachora-tmp-"

// DirSink stores blobs as files below a root directory. The root must exist;
// intermediate year/month directories are created on demand.
type DirSink struct {
	root    string
	baseURL string
}

// NewDirSink returns a sink rooted at root. When baseURL is empty, references
// carry file:// URLs.
func NewDirSink(root, baseURL string) *DirSink {
	return &DirSink{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Put writes data to p below the root. It fails with ErrAlreadyExists when a
// file is already there and never replaces it.
func (d *DirSink) Put(ctx context.Context, data []byte, p string) (Reference, error) {
	if err := ctx.Err(); err != nil {
		return Reference{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || path.IsAbs(clean) || strings.HasPrefix(clean, "../") {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}

	info, err := os.Stat(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Reference{}, fmt.Errorf("%w: %s", ErrNotFound, d.root)
		}
		return Reference{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return Reference{}, fmt.Errorf("%w: %s is not a directory", ErrNotFound, d.root)
	}

	target := filepath.Join(d.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Reference{}, fmt.Errorf("%w: creating directories for %s: %w", ErrUnavailable, clean, err)
	}
	if err := createFileAtomic(target, data, 0o644); err != nil {
		return Reference{}, err
	}

	return Reference{Path: clean, URL: d.url(clean, target)}, nil
}

func (d *DirSink) url(clean, target string) string {
	if d.baseURL != "" {
		return d.baseURL + "/" + clean
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// createFileAtomic writes data to a temp file next to filename and links it
// into place. Linking fails if filename exists, so readers never observe a
// partial object and existing objects are never replaced.
func createFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), tempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrUnavailable, err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: writing temp file: %w", ErrUnavailable, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: syncing temp file: %w", ErrUnavailable, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %w", ErrUnavailable, err)
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("%w: chmod temp file: %w", ErrUnavailable, err)
	}

	if err := os.Link(tmpFile.Name(), filename); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, filename)
		}
		return fmt.Errorf("%w: linking %s: %w", ErrUnavailable, filename, err)
	}
	return nil
}
