package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/menta2k/bbox-labeler/internal/config"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// SQLiteStorage implements LabelStorage using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStorage{db: db, path: cfg.Path}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS labels (
		image TEXT PRIMARY KEY,          -- image file name
		labels TEXT NOT NULL,            -- JSON array of wire labels
		count INTEGER NOT NULL DEFAULT 0,
		saved_at INTEGER NOT NULL        -- unix nanoseconds, UTC
	);
	CREATE INDEX IF NOT EXISTS idx_labels_saved_at ON labels(saved_at DESC);
	`)
	return err
}

// Load implements LabelStorage
func (s *SQLiteStorage) Load(ctx context.Context, image string) ([]types.Box, error) {
	if err := ValidateName(image); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT labels FROM labels WHERE image = ?`, image).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	var labels []types.Label
	if err := json.Unmarshal([]byte(data), &labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	return types.BoxesFromLabels(labels), nil
}

// Save implements LabelStorage
func (s *SQLiteStorage) Save(ctx context.Context, image string, boxes []types.Box) error {
	if err := ValidateName(image); err != nil {
		return err
	}
	rec := newRecord(image, boxes)
	data, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO labels (image, labels, count, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(image) DO UPDATE SET labels = excluded.labels, count = excluded.count, saved_at = excluded.saved_at`,
		image, string(data), len(rec.Labels), rec.SavedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save labels: %w", err)
	}
	return nil
}

// Delete implements LabelStorage
func (s *SQLiteStorage) Delete(ctx context.Context, image string) (bool, error) {
	if err := ValidateName(image); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM labels WHERE image = ?`, image)
	if err != nil {
		return false, fmt.Errorf("failed to delete labels: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete labels: %w", err)
	}
	return n > 0, nil
}

// Summaries implements LabelStorage
func (s *SQLiteStorage) Summaries(ctx context.Context) (map[string]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT image, count, saved_at FROM labels`)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	out := map[string]Summary{}
	for rows.Next() {
		var (
			image   string
			count   int
			savedAt int64
		)
		if err := rows.Scan(&image, &count, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan labels: %w", err)
		}
		out[image] = Summary{Count: count, Labeled: true, SavedAt: time.Unix(0, savedAt).UTC()}
	}
	return out, rows.Err()
}

// Health implements LabelStorage
func (s *SQLiteStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements LabelStorage
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
