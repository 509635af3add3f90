package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTraversal(); err != nil {
		return err
	}
	if err := c.validateHashing(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTraversal() error {
	if c.Traversal.GlobalTimeoutSeconds < c.Traversal.LocalTimeoutSeconds {
		return fmt.Errorf(
			"traversal.global_timeout_seconds (%d) must not be shorter than traversal.local_timeout_seconds (%d)",
			c.Traversal.GlobalTimeoutSeconds, c.Traversal.LocalTimeoutSeconds,
		)
	}
	return nil
}

func (c *Config) validateHashing() error {
	if c.Hashing.ChunkSizeBytes < 4096 {
		return fmt.Errorf("hashing.chunk_size_bytes must be at least 4096, got %d", c.Hashing.ChunkSizeBytes)
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.RemoteURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.History.RemoteURL)
	if err != nil {
		return fmt.Errorf("history.remote_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("history.remote_url must use http or https, got %q", c.History.RemoteURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}
