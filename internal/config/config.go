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

// Paths contains the storage locations the migration operates on.
type Paths struct {
	MediaRoot  string `toml:"media_root"`
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Catalog contains connection and search settings for the asset catalog.
type Catalog struct {
	BaseURL             string `toml:"base_url"`
	Username            string `toml:"username"`
	Password            string `toml:"password"`
	MediaSpace          string `toml:"media_space"`
	ExcludeCodec        string `toml:"exclude_codec"`
	LimitFiles          int    `toml:"limit_files"`
	RequestTimeout      int    `toml:"request_timeout"`
	SearchTimeout       int    `toml:"search_timeout"`
	SearchSettleSeconds int    `toml:"search_settle_seconds"`
	DeleteRecheckDelay  int    `toml:"delete_recheck_delay"`
	RetryAttempts       int    `toml:"retry_attempts"`
	InsecureSkipVerify  bool   `toml:"insecure_skip_verify"`
}

// Transfer contains settings for placing transcoded files at their destination.
type Transfer struct {
	Mode           string `toml:"mode"`
	BaseURL        string `toml:"base_url"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	RequestTimeout int    `toml:"request_timeout"`
	PollInterval   int    `toml:"poll_interval"`
	PollAttempts   int    `toml:"poll_attempts"`
}

// Scan contains settings for the re-index service.
type Scan struct {
	BaseURL        string `toml:"base_url"`
	User           string `toml:"user"`
	RequestTimeout int    `toml:"request_timeout"`
	PollAttempts   int    `toml:"poll_attempts"`
}

// Encoder contains settings for the external encoder process.
type Encoder struct {
	FFmpegBinary  string  `toml:"ffmpeg_binary"`
	FFprobeBinary string  `toml:"ffprobe_binary"`
	ContainerExt  string  `toml:"container_ext"`
	TimeoutFactor float64 `toml:"timeout_factor"`
	MinTimeout    int     `toml:"min_timeout"`
	Preset        string  `toml:"preset"`
	CRF           int     `toml:"crf"`
	AudioBitrate  string  `toml:"audio_bitrate"`
}

// Migration contains tolerances and run control for the pipeline.
type Migration struct {
	DurationTolerance float64 `toml:"duration_tolerance"`
	SizeTolerance     float64 `toml:"size_tolerance"`
	MinViableBytes    int64   `toml:"min_viable_bytes"`
	MatchSizeSlack    int64   `toml:"match_size_slack"`
	MaxPayloadBytes   int     `toml:"max_payload_bytes"`
	MinPlausibleYear  int     `toml:"min_plausible_year"`
	Schedule          string  `toml:"schedule"`
	StopFile          string  `toml:"stop_file"`
	DrainChecks       int     `toml:"drain_checks"`
	DrainInterval     int     `toml:"drain_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for arcmigrate.
//
// Configuration sections by subsystem:
//   - Paths: media root, staging area, state database and logs
//   - Catalog: search, get and delete against the asset catalog
//   - Transfer: local copy or transfer-service copy of transcoded files
//   - Scan: re-index submission and status polling
//   - Encoder: ffmpeg/ffprobe binaries and encode parameters
//   - Migration: tolerances, payload limits, schedule and soft stop
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	Transfer      Transfer      `toml:"transfer"`
	Scan          Scan          `toml:"scan"`
	Encoder       Encoder       `toml:"encoder"`
	Migration     Migration     `toml:"migration"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/arcmigrate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("arcmigrate.toml")
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

// EnsureDirectories creates the directories the migration writes to. The
// media root is never created: a missing root means the storage is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file backing the work store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "arcmigrate.db")
}

// LockPath returns the lock file guarding single-producer access to the store.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "arcmigrate.lock")
}

// StopFilePath returns the soft-stop flag location.
func (c *Config) StopFilePath() string {
	return c.Migration.StopFile
}

// EncodeTimeout scales the encoder deadline with the source duration.
func (c *Config) EncodeTimeout(durationSeconds float64) time.Duration {
	timeout := time.Duration(durationSeconds * c.Encoder.TimeoutFactor * float64(time.Second))
	floor := time.Duration(c.Encoder.MinTimeout) * time.Second
	if timeout < floor {
		return floor
	}
	return timeout
}

// UsesTransferService reports whether placement goes through the transfer service.
func (c *Config) UsesTransferService() bool {
	return c.Transfer.Mode == TransferModeService
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
