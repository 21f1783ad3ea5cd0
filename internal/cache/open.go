package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// Config selects and sizes a cache backend
type Config struct {
	Backend  string // memory (default) or sqlite
	Path     string // SQLite file
	Capacity int    // Memory entries; 0 keeps everything
}

// Open builds the configured Store
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.Capacity), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("cache path is required for the %s backend", BackendSQLite)
		}
		return OpenSQLite(ctx, cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
