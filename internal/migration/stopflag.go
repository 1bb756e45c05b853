package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"arcmigrate/internal/logging"
)

// stopFile is the persisted soft-stop request.
type stopFile struct {
	StopService int `json:"stop_service"`
}

// StopFlag is the cooperative soft-stop switch. The producer checks it once
// per item boundary; an item already in flight is never interrupted.
type StopFlag struct {
	path    string
	logger  *slog.Logger
	watched atomic.Bool
	set     atomic.Bool
	once    sync.Once
	stopped chan struct{}
}

// NewStopFlag returns a flag backed by the file at path.
func NewStopFlag(path string, logger *slog.Logger) *StopFlag {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StopFlag{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "stopflag"),
		stopped: make(chan struct{}),
	}
}

// Path returns the flag file location.
func (f *StopFlag) Path() string {
	return f.path
}

// Requested reports whether a soft stop has been requested.
func (f *StopFlag) Requested() bool {
	if f == nil {
		return false
	}
	if f.set.Load() {
		return true
	}
	if f.watched.Load() {
		return false
	}
	if ReadStopFile(f.path) {
		f.trip()
		return true
	}
	return false
}

// Stopped is closed once a soft stop has been observed.
func (f *StopFlag) Stopped() <-chan struct{} {
	return f.stopped
}

// Watch follows the flag file until ctx is done, so Requested no longer
// has to read it. It returns once the watcher is installed.
func (f *StopFlag) Watch(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stop flag directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if ReadStopFile(f.path) {
		f.trip()
	}
	f.watched.Store(true)

	go func() {
		defer watcher.Close()
		defer f.watched.Store(false)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(f.path) {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					if ReadStopFile(f.path) {
						f.trip()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("stop flag watcher error",
					logging.Error(err),
					logging.String(logging.FieldEventType, "stop_flag_watch_error"),
					logging.String(logging.FieldErrorHint, "the flag is re-read at the next run"),
					logging.String(logging.FieldImpact, "soft stop may not be noticed during this run"),
				)
			}
		}
	}()
	return nil
}

func (f *StopFlag) trip() {
	if f.set.CompareAndSwap(false, true) {
		f.logger.Info("soft stop requested",
			logging.String("path", f.path),
			logging.String(logging.FieldEventType, "soft_stop"),
		)
	}
	f.once.Do(func() { close(f.stopped) })
}

// ReadStopFile reports whether the file at path requests a stop. A missing
// or malformed file means no stop.
func ReadStopFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var content stopFile
	if err := json.Unmarshal(data, &content); err != nil {
		return false
	}
	return content.StopService == 1
}

// RequestStop writes the soft-stop file.
func RequestStop(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(stopFile{StopService: 1})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ClearStop removes the soft-stop file.
func ClearStop(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
