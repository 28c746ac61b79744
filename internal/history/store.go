// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists one row per upload conversion in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/marker-api/pkg/types"
)

const (
	// DefaultLimit is the page size for List when the caller passes 0.
	DefaultLimit = 20
	// MaxLimit caps List regardless of what the caller asks for.
	MaxLimit = 200
)

// ErrDisabled is returned by callers that hold no Store.
var ErrDisabled = errors.New("conversion history is disabled")

// Store manages the conversion history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			filename TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			backend TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT,
			pages INTEGER,
			h1_count INTEGER NOT NULL DEFAULT 0,
			h2_count INTEGER NOT NULL DEFAULT 0,
			h3_count INTEGER NOT NULL DEFAULT 0,
			processing_time_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_sha256 ON conversions(sha256)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts one conversion outcome.
func (s *Store) Record(ctx context.Context, rec types.ConversionRecord) error {
	var pages sql.NullInt64
	if rec.PagesCount != nil {
		pages = sql.NullInt64{Int64: int64(*rec.PagesCount), Valid: true}
	}
	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions
			(id, filename, sha256, backend, success, error, pages,
			 h1_count, h2_count, h3_count, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.SHA256, rec.Backend, rec.Success, errText, pages,
		rec.StructureStats.H1Count, rec.StructureStats.H2Count, rec.StructureStats.H3Count,
		rec.ProcessingTimeMS, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting conversion %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the most recent records, newest first. limit <= 0 means
// DefaultLimit; values above MaxLimit are clamped.
func (s *Store) List(ctx context.Context, limit int) ([]types.ConversionRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, sha256, backend, success, error, pages,
			h1_count, h2_count, h3_count, processing_time_ms, created_at
		FROM conversions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}
	defer rows.Close()

	var out []types.ConversionRecord
	for rows.Next() {
		var (
			rec       types.ConversionRecord
			errText   sql.NullString
			pages     sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.SHA256, &rec.Backend, &rec.Success,
			&errText, &pages, &rec.StructureStats.H1Count, &rec.StructureStats.H2Count,
			&rec.StructureStats.H3Count, &rec.ProcessingTimeMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning conversion: %w", err)
		}
		rec.Error = errText.String
		if pages.Valid {
			n := int(pages.Int64)
			rec.PagesCount = &n
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversions: %w", err)
	}
	return out, nil
}
