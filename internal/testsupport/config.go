package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"arcmigrate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The media root is created; collaborator URLs are left empty.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MediaRoot = filepath.Join(base, "media")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Migration.StopFile = filepath.Join(base, "state", "soft_stop")
	cfgVal.Migration.DrainChecks = 0
	cfgVal.Catalog.SearchSettleSeconds = 0
	cfgVal.Catalog.DeleteRecheckDelay = 0
	cfgVal.Catalog.MediaSpace = "archive"

	if err := os.MkdirAll(cfgVal.Paths.MediaRoot, 0o755); err != nil {
		t.Fatalf("mkdir media root: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCatalogURL points the catalog client at url.
func WithCatalogURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.BaseURL = url
	}
}

// WithScanURL points the scan client at url.
func WithScanURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.BaseURL = url
	}
}

// WithTransferService switches placement to the transfer service at url.
func WithTransferService(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.Mode = config.TransferModeService
		b.cfg.Transfer.BaseURL = url
		b.cfg.Transfer.PollInterval = 0
	}
}

// WithStubbedEncoder points the encoder settings at stub ffmpeg and ffprobe
// scripts under the test directory. The stubs answer -version with a
// banner and succeed on any other invocation.
func WithStubbedEncoder() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		stub := func(name string) string {
			target := filepath.Join(binDir, name)
			script := "#!/bin/sh\n[ \"$1\" = \"-version\" ] && echo \"" + name + " version stub\"\nexit 0\n"
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			return target
		}
		b.cfg.Encoder.FFmpegBinary = stub("ffmpeg")
		b.cfg.Encoder.FFprobeBinary = stub("ffprobe")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
