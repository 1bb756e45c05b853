package report

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/workstore"
)

// Subjects of the run summary.
const (
	SubjectDone    = "DONE"
	SubjectWarning = "WARNING"
)

// StopSignal exposes the soft-stop state.
type StopSignal interface {
	Requested() bool
	Stopped() <-chan struct{}
}

// Line is the first unmet stage of one incomplete item.
type Line struct {
	ItemID     int64
	SourcePath string
	Stage      workstore.Flag
}

// Report summarizes a batch after a run.
type Report struct {
	Host       string
	Batch      string
	Stats      workstore.Stats
	FreeBytes  uint64
	FreeKnown  bool
	Incomplete []Line
}

// Succeeded reports whether every item was scanned.
func (r *Report) Succeeded() bool {
	return r.Stats.Succeeded()
}

// Subject is DONE on success and WARNING otherwise.
func (r *Report) Subject() string {
	if r.Succeeded() {
		return SubjectDone
	}
	return SubjectWarning
}

// Builder assembles reports from the work store.
type Builder struct {
	root          string
	store         *workstore.Store
	stop          StopSignal
	drainChecks   int
	drainInterval time.Duration
	hostname      func() string
	logger        *slog.Logger
}

// NewBuilder returns a Builder for cfg.
func NewBuilder(cfg *config.Config, store *workstore.Store, stop StopSignal, logger *slog.Logger) *Builder {
	return &Builder{
		root:          cfg.Paths.MediaRoot,
		store:         store,
		stop:          stop,
		drainChecks:   cfg.Migration.DrainChecks,
		drainInterval: time.Duration(cfg.Migration.DrainInterval) * time.Second,
		hostname:      Hostname,
		logger:        logging.NewComponentLogger(logger, "report"),
	}
}

// Build waits for in-work items to drain, then summarizes batch.
func (b *Builder) Build(ctx context.Context, batch string) (*Report, error) {
	if err := b.drain(ctx, batch); err != nil {
		return nil, err
	}
	return b.Snapshot(ctx, batch)
}

// Snapshot summarizes batch without waiting.
func (b *Builder) Snapshot(ctx context.Context, batch string) (*Report, error) {
	stats, err := b.store.Stats(ctx, batch)
	if err != nil {
		return nil, err
	}
	rep := &Report{
		Host:  b.hostname(),
		Batch: batch,
		Stats: stats,
	}
	if usage, err := disk.UsageWithContext(ctx, b.root); err == nil {
		rep.FreeBytes = usage.Free
		rep.FreeKnown = true
	} else {
		logging.WarnWithContext(b.logger, "disk usage unavailable", "disk_usage_failed",
			logging.Error(err),
			logging.String("path", b.root),
			logging.String(logging.FieldImpact, "report omits free space"),
		)
	}
	if rep.Succeeded() {
		return rep, nil
	}

	items, err := b.store.ListIncomplete(ctx, batch)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		stage, ok := item.FirstUnmet()
		if !ok {
			continue
		}
		rep.Incomplete = append(rep.Incomplete, Line{ItemID: item.ID, SourcePath: item.SourcePath, Stage: stage})
	}
	return rep, nil
}

func (b *Builder) drain(ctx context.Context, batch string) error {
	for check := 0; check < b.drainChecks; check++ {
		if b.stop != nil && b.stop.Requested() {
			return nil
		}
		stats, err := b.store.Stats(ctx, batch)
		if err != nil {
			return err
		}
		if stats.InWork == 0 {
			return nil
		}
		b.logger.Info("waiting for in-work items",
			logging.Int("in_work", stats.InWork),
			logging.Int("check", check+1),
			logging.Duration("interval", b.drainInterval),
		)
		var stopped <-chan struct{}
		if b.stop != nil {
			stopped = b.stop.Stopped()
		}
		timer := time.NewTimer(b.drainInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stopped:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
	return nil
}

// Message renders the human-readable summary.
func (r *Report) Message() string {
	s := r.Stats
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", r.Host)
	fmt.Fprintf(&sb, "For Creation Date Less then %s:\n", r.Batch)
	fmt.Fprintf(&sb, "Total %d files\n", s.Total)
	fmt.Fprintf(&sb, "In work %d\n", s.InWork)
	fmt.Fprintf(&sb, "Not Transcoded %d files\n", s.NotDone(workstore.FlagTranscoded))
	fmt.Fprintf(&sb, "Not Deleted %d clips\n", s.NotDone(workstore.FlagCatalogEntryDeleted))
	fmt.Fprintf(&sb, "Not Copied %d files\n", s.NotDone(workstore.FlagFileCopied))
	fmt.Fprintf(&sb, "Not Moved %d files\n", s.NotDone(workstore.FlagFileRemoved))
	fmt.Fprintf(&sb, "Not Scanned %d\n", s.NotDone(workstore.FlagScanned))
	fmt.Fprintf(&sb, "Saved space %s\n", formatBytes(s.SavedBytes()))
	fmt.Fprintf(&sb, "Original size %s\n", formatBytes(s.OrigBytes))
	fmt.Fprintf(&sb, "Transcoded size %s", formatBytes(s.DstBytes))
	if r.FreeKnown {
		fmt.Fprintf(&sb, "\nFree space %s", humanize.IBytes(r.FreeBytes))
	}
	if len(r.Incomplete) > 0 {
		sb.WriteString("\n")
		for _, line := range r.Incomplete {
			fmt.Fprintf(&sb, "\n%s FOR %s", StageLabel(line.Stage), line.SourcePath)
		}
	}
	return sb.String()
}

// StageLabel names an unmet stage in the itemized list.
func StageLabel(flag workstore.Flag) string {
	switch flag {
	case workstore.FlagTranscoded:
		return "NOT TRANSCODED"
	case workstore.FlagCatalogEntryDeleted:
		return "NOT DELETED CLIP"
	case workstore.FlagFileCopied:
		return "NOT COPIED FILE"
	case workstore.FlagFileRemoved:
		return "NOT MOVED FILE"
	case workstore.FlagScanned:
		return "NOT SCANNED"
	default:
		return "NOT " + strings.ToUpper(string(flag))
	}
}

func formatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// Hostname returns "name(ip)" for the local host, or "Undetected".
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "Undetected"
	}
	addrs, err := net.LookupHost(name)
	if err != nil || len(addrs) == 0 {
		return name
	}
	return fmt.Sprintf("%s(%s)", name, addrs[0])
}
