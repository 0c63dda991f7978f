package storage

import (
	"fmt"

	"github.com/menta2k/bbox-labeler/internal/config"
)

// NewStorage creates a storage instance based on the provided configuration.
// labelsDir is the directory of the files backend.
func NewStorage(cfg config.StorageConfig, labelsDir string) (LabelStorage, error) {
	switch cfg.Type {
	case "", "files":
		return NewFilesStorage(labelsDir)
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		return NewSQLiteStorage(cfg.SQLite)
	case "postgres":
		return NewPostgresStorage(cfg.Postgres)
	case "redis":
		return NewRedisStorage(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
