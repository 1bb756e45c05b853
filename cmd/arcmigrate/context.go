package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/workstore"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger builds the per-invocation logger. Commands that only read the store
// log to the console; long-running commands also get a JSON run log.
func (c *commandContext) logger(withRunLog bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if withRunLog {
		return logging.NewFromConfig(cfg)
	}
	return logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
}

func (c *commandContext) withStore(fn func(*config.Config, *workstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := workstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open work store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withExclusiveStore is withStore for commands that must not race a run.
func (c *commandContext) withExclusiveStore(fn func(*config.Config, *workstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock, err := workstore.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, workstore.ErrLocked) {
			return errors.New("a migration run is in progress; stop it (`arcmigrate stop`) and retry")
		}
		return err
	}
	defer lock.Release()
	return c.withStore(fn)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
