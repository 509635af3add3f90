package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"intake/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "intake")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.History.Path != filepath.Join(wantData, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.History.Path)
	}
	if cfg.LocalTimeout() != time.Second {
		t.Fatalf("unexpected local timeout: %v", cfg.LocalTimeout())
	}
	if cfg.GlobalTimeout() != 15*time.Second {
		t.Fatalf("unexpected global timeout: %v", cfg.GlobalTimeout())
	}
	if cfg.Hashing.ChunkSizeBytes != 2<<20 {
		t.Fatalf("unexpected chunk size: %d", cfg.Hashing.ChunkSizeBytes)
	}
	if cfg.Classification.LookupChunkSize != 25 {
		t.Fatalf("unexpected lookup chunk size: %d", cfg.Classification.LookupChunkSize)
	}
	if cfg.Classification.Scope != "default" {
		t.Fatalf("unexpected scope: %q", cfg.Classification.Scope)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intake.toml")
	body := `
[traversal]
local_timeout_seconds = 2
global_timeout_seconds = 60

[hashing]
workers = 3
batch_size = 16

[classification]
scope = "team-a"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Traversal.LocalTimeoutSeconds != 2 {
		t.Fatalf("unexpected local timeout: %d", cfg.Traversal.LocalTimeoutSeconds)
	}
	if cfg.Hashing.Workers != 3 {
		t.Fatalf("unexpected workers: %d", cfg.Hashing.Workers)
	}
	if cfg.Hashing.BatchSize != 16 {
		t.Fatalf("unexpected batch size: %d", cfg.Hashing.BatchSize)
	}
	if cfg.Classification.Scope != "team-a" {
		t.Fatalf("unexpected scope: %q", cfg.Classification.Scope)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"global shorter than local", func(c *config.Config) {
			c.Traversal.LocalTimeoutSeconds = 10
			c.Traversal.GlobalTimeoutSeconds = 5
		}},
		{"tiny chunk size", func(c *config.Config) {
			c.Hashing.ChunkSizeBytes = 16
		}},
		{"bad remote scheme", func(c *config.Config) {
			c.History.RemoteURL = "ftp://history.internal"
		}},
		{"bad log format", func(c *config.Config) {
			c.Logging.Format = "xml"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := config.WriteSample(path); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error writing over existing config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("sample config is empty")
	}
}
