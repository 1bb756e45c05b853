package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"arcmigrate/internal/logging"
)

// CleanResult contains the outcome of a staging cleanup.
type CleanResult struct {
	Removed []string
	Freed   int64
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// FileInfo describes one staged file.
type FileInfo struct {
	Path    string
	Rel     string
	ModTime time.Time
	Size    int64
}

// ListFiles returns every regular file under stagingDir, sorted by path.
// A missing staging directory yields no files.
func ListFiles(stagingDir string) ([]FileInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	var files []FileInfo
	err := filepath.WalkDir(stagingDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == stagingDir {
				return filepath.SkipDir
			}
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(stagingDir, path)
		files = append(files, FileInfo{Path: path, Rel: rel, ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// CleanOrphaned removes staged files whose path is not in keep, then prunes
// directories left empty. Files in keep are transcoded outputs still waiting
// to be copied and must survive.
func CleanOrphaned(ctx context.Context, stagingDir string, keep map[string]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	files, err := ListFiles(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		if _, active := keep[file.Path]; active {
			continue
		}
		if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: file.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove orphaned staged file", "staging_cleanup_failed",
				logging.String("path", file.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, file.Path)
		result.Freed += file.Size
		logger.Debug("removed orphaned staged file",
			logging.String("path", file.Path),
			logging.Int64("size_bytes", file.Size),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}

	pruneEmptyDirs(strings.TrimSpace(stagingDir))
	return result
}

// pruneEmptyDirs removes empty directories below root, deepest first. The
// root itself is kept.
func pruneEmptyDirs(root string) {
	if root == "" {
		return
	}
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err == nil && entry.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		_ = os.Remove(dir) // fails on non-empty directories
	}
}
