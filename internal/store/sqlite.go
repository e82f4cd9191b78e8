package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/uni-helper/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One writer at a time; also keeps ":memory:" databases on a single
	// connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetClock overrides the store's notion of "now". Used by tests.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// IsProcessed reports whether a message ID has already been handled.
func (s *SQLiteStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM processed_emails WHERE email_id = ?", messageID)
	if err != nil {
		return false, fmt.Errorf("checking processed email %s: %w", messageID, err)
	}
	return count > 0, nil
}

// MarkProcessed records a message ID as handled. Marking the same ID twice
// is not an error.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID, subject string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_emails (email_id, subject, processed_at)
		VALUES (?, ?, ?)`,
		messageID, subject, dbTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("marking email %s processed: %w", messageID, err)
	}
	return nil
}

// GetOrCreateClass returns the class with the given name, matched
// case-insensitively, creating it when absent.
func (s *SQLiteStore) GetOrCreateClass(ctx context.Context, name string) (*model.Class, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("class name must not be empty")
	}

	var c model.Class
	err := s.db.GetContext(ctx, &c,
		"SELECT * FROM classes WHERE name = ? COLLATE NOCASE LIMIT 1", name)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up class %q: %w", name, err)
	}

	now := dbTime(s.now())
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO classes (name, created_at) VALUES (?, ?)", name, now)
	if err != nil {
		return nil, fmt.Errorf("creating class %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading class id: %w", err)
	}

	return &model.Class{ID: id, Name: name, CreatedAt: now}, nil
}

// GetClasses returns all classes ordered by name.
func (s *SQLiteStore) GetClasses(ctx context.Context) ([]model.Class, error) {
	var classes []model.Class
	if err := s.db.SelectContext(ctx, &classes, "SELECT * FROM classes ORDER BY name"); err != nil {
		return nil, fmt.Errorf("listing classes: %w", err)
	}
	return classes, nil
}

// dbTime normalises timestamps so stored values compare correctly as text.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
