package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"intake/internal/classify"
	"intake/internal/config"
	"intake/internal/history"
	"intake/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	return logger, nil
}

func (c *commandContext) openStore() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

// openLookup returns the classification lookup: the hosted record service
// when one is configured, otherwise the local store. The caller runs the
// returned closer when done.
func (c *commandContext) openLookup(logger *slog.Logger) (classify.Lookup, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	if cfg.History.RemoteURL != "" {
		remote, err := history.NewRemote(cfg.History.RemoteURL, history.RemoteOptions{
			Timeout:  cfg.RemoteTimeout(),
			RetryMax: cfg.History.RemoteRetryMax,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return remote, func() {}, nil
	}

	store, err := c.openStore()
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
