package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeTransfer()
	c.normalizeScan()
	c.normalizeEncoder()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.MediaRoot, err = expandPath(strings.TrimSpace(c.Paths.MediaRoot)); err != nil {
		return fmt.Errorf("paths.media_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Migration.StopFile) == "" {
		c.Migration.StopFile = defaultStopFile
	}
	if c.Migration.StopFile, err = expandPath(c.Migration.StopFile); err != nil {
		return fmt.Errorf("migration.stop_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	c.Catalog.MediaSpace = strings.TrimSpace(c.Catalog.MediaSpace)
	if c.Catalog.Username == "" {
		if value, ok := os.LookupEnv("ARCMIGRATE_CATALOG_USER"); ok {
			c.Catalog.Username = value
		}
	}
	if c.Catalog.Password == "" {
		if value, ok := os.LookupEnv("ARCMIGRATE_CATALOG_PASSWORD"); ok {
			c.Catalog.Password = value
		}
	}
}

func (c *Config) normalizeTransfer() {
	c.Transfer.Mode = strings.ToLower(strings.TrimSpace(c.Transfer.Mode))
	if c.Transfer.Mode == "" {
		c.Transfer.Mode = TransferModeLocal
	}
	c.Transfer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transfer.BaseURL), "/")
	if c.Transfer.User == "" {
		c.Transfer.User = c.Catalog.Username
	}
	if c.Transfer.Password == "" {
		c.Transfer.Password = c.Catalog.Password
	}
}

func (c *Config) normalizeScan() {
	c.Scan.BaseURL = strings.TrimRight(strings.TrimSpace(c.Scan.BaseURL), "/")
	if strings.TrimSpace(c.Scan.User) == "" {
		c.Scan.User = defaultScanUser
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	ext := strings.ToLower(strings.TrimSpace(c.Encoder.ContainerExt))
	if ext == "" {
		ext = defaultContainerExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Encoder.ContainerExt = ext
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
