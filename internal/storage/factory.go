package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nordlys/bugsight/internal/storage/memory"
	"github.com/nordlys/bugsight/internal/storage/sqlite"
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: "memory" or "sqlite"
	Backend string

	// SQLite-specific config; ":memory:" keeps the database in RAM.
	SQLitePath string

	// MaxRuns bounds the memory backend; oldest runs are evicted first.
	MaxRuns int
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:    "memory",
		SQLitePath: "bugsight.db",
		MaxRuns:    50,
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(cfg Config, log *logrus.Logger) (Storage, error) {
	switch cfg.Backend {
	case "memory":
		log.WithField("max_runs", cfg.MaxRuns).Info("using in-memory run storage")
		return memory.New(cfg.MaxRuns), nil

	case "sqlite":
		log.WithField("path", cfg.SQLitePath).Info("using SQLite run storage")
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite)", cfg.Backend)
	}
}
