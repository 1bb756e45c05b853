package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/media/ffprobe"
	"arcmigrate/internal/services"
)

// ignorableStderr is encoder noise that does not indicate a failure.
const ignorableStderr = "Application provided duration: -"

// Request describes one transcode.
type Request struct {
	Source          string
	Output          string
	Timecode        string
	CreationTime    time.Time
	CatalogDuration float64
}

// Transcoder turns a source file into a validated staged output.
type Transcoder interface {
	Transcode(ctx context.Context, req Request) error
}

// Encoder drives ffmpeg and validates its output.
type Encoder struct {
	cfg       *config.Config
	opts      Options
	tolerance float64
	prober    ffprobe.Prober
	runner    Runner
	logger    *slog.Logger
}

// Option customizes an Encoder.
type Option func(*Encoder)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(e *Encoder) { e.runner = r }
}

// WithProber replaces the media prober.
func WithProber(p ffprobe.Prober) Option {
	return func(e *Encoder) { e.prober = p }
}

// NewEncoder builds an Encoder from configuration.
func NewEncoder(cfg *config.Config, logger *slog.Logger, opts ...Option) *Encoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Encoder{
		cfg: cfg,
		opts: Options{
			Preset:       cfg.Encoder.Preset,
			CRF:          cfg.Encoder.CRF,
			AudioBitrate: cfg.Encoder.AudioBitrate,
		},
		tolerance: cfg.Migration.DurationTolerance,
		prober:    ffprobe.Command{Binary: cfg.Encoder.FFprobeBinary},
		runner:    ExecRunner{},
		logger:    logging.NewComponentLogger(logger, "encoder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transcode encodes req.Source into req.Output. An existing output whose
// duration already matches is kept. On success the output's timestamps are
// set to req.CreationTime.
func (e *Encoder) Transcode(ctx context.Context, req Request) error {
	logger := logging.WithContext(ctx, e.logger)

	if _, err := os.Stat(req.Output); err == nil {
		if e.validateDuration(ctx, req.Source, req.Output, req.CatalogDuration) == nil {
			logger.Info("staged output already valid",
				logging.String("output", req.Output),
				logging.String(logging.FieldEventType, "transcode_reused"),
			)
			return e.stamp(req)
		}
		logger.Info("re-encoding invalid staged output", logging.String("output", req.Output))
	}

	probe, err := e.prober.Probe(ctx, req.Source)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "ffprobe", "can't check audio channels", err)
	}
	audio := probe.AudioStreamCount()
	logger.Debug("audio streams detected", logging.Int("audio_streams", audio))

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "stage output", "create staging directory", err)
	}

	args := BuildArgs(e.opts, Job{
		Input:        req.Source,
		Output:       req.Output,
		Timecode:     req.Timecode,
		CreationTime: req.CreationTime.Format(MetadataTimeLayout),
		AudioStreams: audio,
	})
	timeout := e.cfg.EncodeTimeout(req.CatalogDuration)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("encoder starting",
		logging.String("input", req.Source),
		logging.String("output", req.Output),
		logging.Duration("timeout", timeout),
		logging.String(logging.FieldEventType, "transcode_start"),
	)
	stderr, runErr := e.runner.Run(runCtx, e.cfg.Encoder.FFmpegBinary, args)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transcode", "ffmpeg", fmt.Sprintf("encoder exceeded %s", timeout), runCtx.Err())
	}
	problem := relevantStderr(stderr)
	if runErr != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", "PROBLEM Transcoding: "+problem, runErr)
	}
	if problem != "" {
		logging.WarnWithContext(logger, "encoder reported problems", "transcode_stderr",
			logging.String("stderr", problem),
		)
	}

	if err := e.validateDuration(ctx, req.Source, req.Output, req.CatalogDuration); err != nil {
		return err
	}
	return e.stamp(req)
}

func (e *Encoder) stamp(req Request) error {
	if req.CreationTime.IsZero() {
		return nil
	}
	if err := os.Chtimes(req.Output, req.CreationTime, req.CreationTime); err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "stamp", "set output times", err)
	}
	return nil
}

func relevantStderr(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" || strings.Contains(stderr, ignorableStderr) {
		return ""
	}
	return stderr
}
