package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTraversal()
	c.normalizeHashing()
	c.normalizeClassification()
	c.normalizeHistory()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTraversal() {
	if c.Traversal.LocalTimeoutSeconds <= 0 {
		c.Traversal.LocalTimeoutSeconds = defaultLocalTimeoutSeconds
	}
	if c.Traversal.GlobalTimeoutSeconds <= 0 {
		c.Traversal.GlobalTimeoutSeconds = defaultGlobalTimeoutSeconds
	}
	if c.Traversal.DirBatchSize <= 0 {
		c.Traversal.DirBatchSize = defaultDirBatchSize
	}
}

func (c *Config) normalizeHashing() {
	if c.Hashing.ChunkSizeBytes <= 0 {
		c.Hashing.ChunkSizeBytes = defaultChunkSizeBytes
	}
	if c.Hashing.Workers < -1 {
		c.Hashing.Workers = -1
	}
	if c.Hashing.BatchSize <= 0 {
		c.Hashing.BatchSize = defaultHashBatchSize
	}
	if c.Hashing.RoundTripTimeoutSeconds <= 0 {
		c.Hashing.RoundTripTimeoutSeconds = defaultRoundTripSeconds
	}
	if c.Hashing.ProgressIntervalSeconds <= 0 {
		c.Hashing.ProgressIntervalSeconds = defaultProgressSeconds
	}
}

func (c *Config) normalizeClassification() {
	if c.Classification.LookupChunkSize <= 0 {
		c.Classification.LookupChunkSize = defaultLookupChunkSize
	}
	if c.Classification.LookupParallelism <= 0 {
		c.Classification.LookupParallelism = defaultLookupParallelism
	}
	c.Classification.Scope = strings.TrimSpace(c.Classification.Scope)
	if c.Classification.Scope == "" {
		c.Classification.Scope = defaultScope
	}
}

func (c *Config) normalizeHistory() {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	if expanded, err := expandPath(c.History.Path); err == nil {
		c.History.Path = expanded
	}
	c.History.RemoteURL = strings.TrimSpace(c.History.RemoteURL)
	if c.History.RemoteTimeoutSeconds <= 0 {
		c.History.RemoteTimeoutSeconds = defaultRemoteTimeoutSeconds
	}
	if c.History.RemoteRetryMax < 0 {
		c.History.RemoteRetryMax = defaultRemoteRetryMax
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
