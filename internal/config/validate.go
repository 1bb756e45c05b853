package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateMigration(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.MediaRoot == "" {
		return errors.New("paths.media_root must be set")
	}
	if c.Paths.StagingDir == c.Paths.MediaRoot {
		return errors.New("paths.staging_dir must differ from paths.media_root")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.LimitFiles <= 0 {
		return errors.New("catalog.limit_files must be positive")
	}
	if c.Catalog.RequestTimeout <= 0 {
		return errors.New("catalog.request_timeout must be positive")
	}
	if c.Catalog.RetryAttempts <= 0 {
		return errors.New("catalog.retry_attempts must be positive")
	}
	if c.Catalog.SearchSettleSeconds < 0 || c.Catalog.DeleteRecheckDelay < 0 {
		return errors.New("catalog delays must not be negative")
	}
	return nil
}

func (c *Config) validateTransfer() error {
	switch c.Transfer.Mode {
	case TransferModeLocal:
	case TransferModeService:
		if c.Transfer.BaseURL == "" {
			return errors.New("transfer.base_url must be set when transfer.mode is \"service\"")
		}
	default:
		return fmt.Errorf("transfer.mode: unsupported value %q (expected local or service)", c.Transfer.Mode)
	}
	if c.Transfer.PollAttempts <= 0 {
		return errors.New("transfer.poll_attempts must be positive")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.TimeoutFactor <= 0 {
		return errors.New("encoder.timeout_factor must be positive")
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	if strings.TrimSpace(c.Encoder.Preset) == "" {
		return errors.New("encoder.preset must be set")
	}
	return nil
}

func (c *Config) validateMigration() error {
	m := c.Migration
	if m.DurationTolerance <= 0 || m.DurationTolerance >= 1 {
		return errors.New("migration.duration_tolerance must be between 0 and 1")
	}
	if m.SizeTolerance <= 0 || m.SizeTolerance >= 1 {
		return errors.New("migration.size_tolerance must be between 0 and 1")
	}
	if m.MinViableBytes < 0 || m.MatchSizeSlack < 0 {
		return errors.New("migration byte thresholds must not be negative")
	}
	if m.MaxPayloadBytes <= 0 {
		return errors.New("migration.max_payload_bytes must be positive")
	}
	if m.DrainChecks < 0 || m.DrainInterval < 0 {
		return errors.New("migration drain settings must not be negative")
	}
	if strings.TrimSpace(m.Schedule) != "" {
		if _, err := cron.ParseStandard(m.Schedule); err != nil {
			return fmt.Errorf("migration.schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}
