package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"arcmigrate/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ARCMIGRATE_CATALOG_USER", "svc")
	t.Setenv("ARCMIGRATE_CATALOG_PASSWORD", "secret")

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

	wantStaging := filepath.Join(tempHome, ".local", "share", "arcmigrate", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.DatabasePath() != filepath.Join(tempHome, ".local", "share", "arcmigrate", "arcmigrate.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Catalog.Username != "svc" || cfg.Catalog.Password != "secret" {
		t.Fatalf("expected catalog credentials from env, got %q/%q", cfg.Catalog.Username, cfg.Catalog.Password)
	}
	if cfg.Transfer.User != "svc" {
		t.Fatalf("expected transfer user to fall back to catalog user, got %q", cfg.Transfer.User)
	}
	if cfg.Transfer.Mode != config.TransferModeLocal {
		t.Fatalf("unexpected transfer mode: %q", cfg.Transfer.Mode)
	}
	if cfg.Migration.DurationTolerance != 0.05 {
		t.Fatalf("unexpected duration tolerance: %v", cfg.Migration.DurationTolerance)
	}
	if cfg.Migration.Schedule != "0 14 * * *" {
		t.Fatalf("unexpected schedule: %q", cfg.Migration.Schedule)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
media_root = "~/media"
staging_dir = "~/stage"

[encoder]
container_ext = "MP4"

[transfer]
mode = "Service"
base_url = "http://transfer.local/"

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.MediaRoot != filepath.Join(tempHome, "media") {
		t.Fatalf("unexpected media root: %q", cfg.Paths.MediaRoot)
	}
	if cfg.Encoder.ContainerExt != ".mp4" {
		t.Fatalf("expected normalized container ext, got %q", cfg.Encoder.ContainerExt)
	}
	if !cfg.UsesTransferService() {
		t.Fatal("expected transfer service mode")
	}
	if cfg.Transfer.BaseURL != "http://transfer.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Transfer.BaseURL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"transfer mode", func(c *config.Config) { c.Transfer.Mode = "ftp" }, "transfer.mode"},
		{"service without url", func(c *config.Config) { c.Transfer.Mode = config.TransferModeService }, "transfer.base_url"},
		{"tolerance", func(c *config.Config) { c.Migration.DurationTolerance = 0 }, "duration_tolerance"},
		{"schedule", func(c *config.Config) { c.Migration.Schedule = "every day" }, "migration.schedule"},
		{"crf", func(c *config.Config) { c.Encoder.CRF = 99 }, "encoder.crf"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeTimeoutHasFloor(t *testing.T) {
	cfg := config.Default()
	if got := cfg.EncodeTimeout(5); got != 60*time.Second {
		t.Fatalf("expected floor of 60s, got %v", got)
	}
	if got := cfg.EncodeTimeout(600); got != 1200*time.Second {
		t.Fatalf("expected scaled timeout, got %v", got)
	}
}

func TestEnsureDirectoriesCreatesWritableDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.MediaRoot = filepath.Join(base, "media")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
	if _, err := os.Stat(cfg.Paths.MediaRoot); !os.IsNotExist(err) {
		t.Fatalf("media root must not be created, stat err=%v", err)
	}
}

func TestCreateSampleIsParseable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.Catalog.LimitFiles != 500 {
		t.Fatalf("unexpected limit_files in sample: %d", decoded.Catalog.LimitFiles)
	}
}
