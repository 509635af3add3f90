package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Traversal contains deadlines for directory enumeration.
type Traversal struct {
	// LocalTimeoutSeconds bounds a single "read next batch of children"
	// call. A read that outlives it causes the directory subtree to be
	// skipped rather than stalling the scan.
	LocalTimeoutSeconds int `toml:"local_timeout_seconds"`
	// GlobalTimeoutSeconds bounds the whole traversal session. The clock
	// restarts on every successful non-empty directory read.
	GlobalTimeoutSeconds int `toml:"global_timeout_seconds"`
	// DirBatchSize is the number of children requested per directory read.
	DirBatchSize int `toml:"dir_batch_size"`
}

// Hashing contains settings for content fingerprinting.
type Hashing struct {
	ChunkSizeBytes          int64 `toml:"chunk_size_bytes"`
	Workers                 int   `toml:"workers"`
	BatchSize               int   `toml:"batch_size"`
	RoundTripTimeoutSeconds int   `toml:"round_trip_timeout_seconds"`
	ProgressIntervalSeconds int   `toml:"progress_interval_seconds"`
}

// Classification contains settings for duplicate classification.
type Classification struct {
	LookupChunkSize   int    `toml:"lookup_chunk_size"`
	LookupParallelism int    `toml:"lookup_parallelism"`
	Scope             string `toml:"scope"`
}

// History contains configuration for the upload-record store.
type History struct {
	Path                 string `toml:"path"`
	RemoteURL            string `toml:"remote_url"`
	RemoteTimeoutSeconds int    `toml:"remote_timeout_seconds"`
	RemoteRetryMax       int    `toml:"remote_retry_max"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for intake.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Traversal: per-directory and whole-session enumeration deadlines
//   - Hashing: chunk size, worker pool shape, batch round-trip ceiling
//   - Classification: historical lookup batching and dedup scope
//   - History: local store path and optional remote lookup service
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Traversal      Traversal      `toml:"traversal"`
	Hashing        Hashing        `toml:"hashing"`
	Classification Classification `toml:"classification"`
	History        History        `toml:"history"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/intake/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was actually found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("intake.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories intake needs to operate.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if dir := filepath.Dir(c.History.Path); dir != "." && dir != "" {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LocalTimeout returns the per-directory-read deadline as a duration.
func (c *Config) LocalTimeout() time.Duration {
	return time.Duration(c.Traversal.LocalTimeoutSeconds) * time.Second
}

// GlobalTimeout returns the whole-traversal deadline as a duration.
func (c *Config) GlobalTimeout() time.Duration {
	return time.Duration(c.Traversal.GlobalTimeoutSeconds) * time.Second
}

// RoundTripTimeout returns the per-batch hashing ceiling as a duration.
func (c *Config) RoundTripTimeout() time.Duration {
	return time.Duration(c.Hashing.RoundTripTimeoutSeconds) * time.Second
}

// ProgressInterval returns the minimum spacing between progress events.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Hashing.ProgressIntervalSeconds) * time.Second
}

// RemoteTimeout returns the remote lookup request deadline as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.History.RemoteTimeoutSeconds) * time.Second
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, refusing to overwrite.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
