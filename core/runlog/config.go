package runlog

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backends accepted in Config.Backend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Config selects and tunes the run log backend.
type Config struct {
	Backend    string `json:"backend" validate:"omitempty,oneof=none memory jsonl sqlite"`
	Path       string `json:"path" validate:"required_if=Backend jsonl,required_if=Backend sqlite"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" validate:"gte=0"`
}

// DefaultPath is where the jsonl backend writes when no path is set: a
// flownet directory under the user cache directory, or the working
// directory when there is none.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "flownet-runs.jsonl"
	}
	return filepath.Join(dir, "flownet", "runs.jsonl")
}

// SetDefaults fills zero fields. The default backend is a jsonl file at
// DefaultPath so that runs survive between CLI invocations.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.Path == "" && c.Backend == BackendJSONL {
		c.Path = DefaultPath()
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Open creates the store selected by cfg.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	switch cfg.Backend {
	case BackendNone:
		return NopStore{}, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendJSONL:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown run log backend %q", cfg.Backend)
	}
}
