package testsupport

import (
	"path/filepath"
	"testing"

	"intake/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and timings short enough for unit tests.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.History.Path = filepath.Join(base, "data", "history.db")
	cfg.Hashing.Workers = 2
	cfg.Hashing.BatchSize = 4

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithWorkers overrides the hashing pool size on the test config.
func WithWorkers(n int) ConfigOption {
	return func(c *config.Config) {
		c.Hashing.Workers = n
	}
}

// WithScope overrides the dedup scope on the test config.
func WithScope(scope string) ConfigOption {
	return func(c *config.Config) {
		c.Classification.Scope = scope
	}
}
