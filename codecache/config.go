package codecache

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config describes where compiled code persists between runs.
type Config struct {
	// Backend selects the store: "none", "sqlite" or "postgres". Empty
	// means none.
	Backend string `toml:"backend"`
	// Path is the database file path for the sqlite backend.
	Path string `toml:"path"`
	// DSN is the connection string for the postgres backend.
	DSN string `toml:"dsn"`
}

// LoadConfig reads a Config from a TOML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read cache config: %w", err)
	}
	return cfg, nil
}

// OpenStore opens the store the config describes. A disabled backend
// yields a nil store and no error.
func OpenStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("codecache: sqlite backend requires a path")
		}
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("codecache: postgres backend requires a dsn")
		}
		return DialPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("codecache: unknown store backend %q", cfg.Backend)
	}
}
