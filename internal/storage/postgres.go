package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/menta2k/bbox-labeler/internal/config"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// PostgresStorage implements LabelStorage using PostgreSQL
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(cfg config.PostgresConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := &PostgresStorage{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS labels (
		image TEXT PRIMARY KEY,
		labels JSONB NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		saved_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_labels_saved_at ON labels(saved_at DESC);
	`)
	return err
}

// Load implements LabelStorage
func (s *PostgresStorage) Load(ctx context.Context, image string) ([]types.Box, error) {
	if err := ValidateName(image); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT labels FROM labels WHERE image = $1`, image).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	var labels []types.Label
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	return types.BoxesFromLabels(labels), nil
}

// Save implements LabelStorage
func (s *PostgresStorage) Save(ctx context.Context, image string, boxes []types.Box) error {
	if err := ValidateName(image); err != nil {
		return err
	}
	rec := newRecord(image, boxes)
	data, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO labels (image, labels, count, saved_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (image) DO UPDATE SET labels = EXCLUDED.labels, count = EXCLUDED.count, saved_at = EXCLUDED.saved_at`,
		image, data, len(rec.Labels), rec.SavedAt)
	if err != nil {
		return fmt.Errorf("failed to save labels: %w", err)
	}
	return nil
}

// Delete implements LabelStorage
func (s *PostgresStorage) Delete(ctx context.Context, image string) (bool, error) {
	if err := ValidateName(image); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM labels WHERE image = $1`, image)
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
func (s *PostgresStorage) Summaries(ctx context.Context) (map[string]Summary, error) {
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
			savedAt time.Time
		)
		if err := rows.Scan(&image, &count, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan labels: %w", err)
		}
		out[image] = Summary{Count: count, Labeled: true, SavedAt: savedAt.UTC()}
	}
	return out, rows.Err()
}

// Health implements LabelStorage
func (s *PostgresStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements LabelStorage
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
