package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps manifests in a single SQLite table keyed by identifier.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at path, ensures the
// data directory exists, and creates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page views read while a generation request writes; the busy
	// timeout makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS manifests (
    id TEXT PRIMARY KEY,
    template TEXT NOT NULL,
    created_at TEXT NOT NULL,
    context TEXT NOT NULL
);
`)
	return err
}

// Put inserts the manifest. A second insert for the same id fails with ErrExists.
func (s *SQLiteStore) Put(ctx context.Context, m Manifest) error {
	m = normalize(m)
	data, err := json.Marshal(m.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO manifests (id, template, created_at, context) VALUES (?, ?, ?, ?)`,
		m.ID, m.Template, m.CreatedAt.Format(time.RFC3339Nano), string(data))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrExists
		}
		return fmt.Errorf("insert manifest: %w", err)
	}
	return nil
}

// Get returns the manifest stored under id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Manifest, error) {
	var template, createdAt, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT template, created_at, context FROM manifests WHERE id = ?`, id).
		Scan(&template, &createdAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("query manifest: %w", err)
	}
	m := Manifest{ID: id, Template: template}
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Manifest{}, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &m.Context); err != nil {
		return Manifest{}, fmt.Errorf("decode context: %w", err)
	}
	return m, nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
