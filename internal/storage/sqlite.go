package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tachora/tachora/internal/note"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var noteColumns = []string{
	"id", "user_id", "timestamp", "user_caption", "ai_description", "type",
	"blob_url", "blob_path", "filename", "text_message",
}

// Store is a SQLite-backed note store for single-host deployments.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "tachora.db")
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	var versions []int
	if err := s.db.Select(&versions, "SELECT version FROM schema_version ORDER BY version ASC"); err != nil {
		return nil, err
	}
	return versions, nil
}

// --- Notes ---

// CreateNote inserts n. Image-only and text-only columns stay NULL on notes
// of the other shape.
func (s *Store) CreateNote(ctx context.Context, n note.Note) (string, error) {
	if err := n.Validate(); err != nil {
		return "", fmt.Errorf("note %s: %w", n.ID, err)
	}

	query, args, err := sq.Insert("notes").
		Columns(noteColumns...).
		Values(
			n.ID, n.UserID, n.Timestamp, n.UserCaption, n.AIDescription, string(n.Type),
			nullString(n.BlobURL), nullString(n.BlobPath), nullString(n.Filename), nullString(n.TextMessage),
		).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("inserting note %s: %w", n.ID, classifySQLiteError(err))
	}
	return n.ID, nil
}

type noteRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	Timestamp     string         `db:"timestamp"`
	UserCaption   string         `db:"user_caption"`
	AIDescription string         `db:"ai_description"`
	Type          string         `db:"type"`
	BlobURL       sql.NullString `db:"blob_url"`
	BlobPath      sql.NullString `db:"blob_path"`
	Filename      sql.NullString `db:"filename"`
	TextMessage   sql.NullString `db:"text_message"`
}

func (r noteRow) toNote() note.Note {
	return note.Note{
		ID:            r.ID,
		UserID:        r.UserID,
		Timestamp:     r.Timestamp,
		UserCaption:   r.UserCaption,
		AIDescription: r.AIDescription,
		Type:          note.Type(r.Type),
		BlobURL:       r.BlobURL.String,
		BlobPath:      r.BlobPath.String,
		Filename:      r.Filename.String,
		TextMessage:   r.TextMessage.String,
	}
}

// GetNote returns the note with the given id.
func (s *Store) GetNote(ctx context.Context, id string) (note.Note, error) {
	query, args, err := sq.Select(noteColumns...).From("notes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return note.Note{}, fmt.Errorf("building select: %w", err)
	}

	var row noteRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return note.Note{}, ErrNotFound
	}
	if err != nil {
		return note.Note{}, err
	}
	return row.toNote(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// classifySQLiteError maps constraint failures by the column SQLite names in
// the message, e.g. "UNIQUE constraint failed: notes.blob_path".
func classifySQLiteError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT:
			// Connections without extended result codes only report the primary code.
			msg := sqliteErr.Error()
			switch {
			case strings.Contains(msg, "notes.blob_path"):
				return fmt.Errorf("%w: %w", ErrDuplicateBlobPath, err)
			case strings.Contains(msg, "notes.id"), sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				return fmt.Errorf("%w: %w", ErrDuplicateID, err)
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
