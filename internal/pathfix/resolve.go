package pathfix

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services"
	"arcmigrate/internal/workstore"
)

// Recovery strategies reported in a Resolution.
const (
	StrategyPrune = "prune"
	StrategyAlias = "alias"
)

// ReasonNoSource is the quarantine reason for an unrecoverable item.
const ReasonNoSource = "no source file for all locations"

// AliasStore persists recovered directory aliases.
type AliasStore interface {
	LookupAlias(ctx context.Context, originalDir string) (*workstore.PathAlias, error)
	SaveAlias(ctx context.Context, alias workstore.PathAlias) (*workstore.PathAlias, error)
}

// Resolver repairs the mapping between catalog locations and files under the
// media root.
type Resolver struct {
	root          string
	stagingDir    string
	containerExt  string
	minViable     int64
	sizeTolerance float64
	matchSlack    int64
	aliases       AliasStore
	logger        *slog.Logger
}

// NewResolver builds a Resolver from configuration.
func NewResolver(cfg *config.Config, aliases AliasStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		root:          cfg.Paths.MediaRoot,
		stagingDir:    cfg.Paths.StagingDir,
		containerExt:  cfg.Encoder.ContainerExt,
		minViable:     cfg.Migration.MinViableBytes,
		sizeTolerance: cfg.Migration.SizeTolerance,
		matchSlack:    cfg.Migration.MatchSizeSlack,
		aliases:       aliases,
		logger:        logging.NewComponentLogger(logger, "pathfix"),
	}
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Location   payload.Location
	SourcePath string
	Alias      *workstore.PathAlias
	Strategy   string
}

// Resolve finds the on-disk source for env, pruning stale locations first and
// falling back to a subtree search. On success env's locations are rewritten
// to the surviving ones. The returned error wraps services.ErrUnrecoverablePath
// when neither strategy finds the file.
func (r *Resolver) Resolve(ctx context.Context, env *payload.Envelope) (*Resolution, error) {
	locations := env.Locations()
	if len(locations) == 0 {
		return nil, services.Wrap(services.ErrUnrecoverablePath, "resolve", "", ReasonNoSource+": catalog lists no locations", nil)
	}

	if res, ok := r.Prune(env); ok {
		return res, nil
	}

	var details []string
	for _, loc := range locations {
		res, detail, err := r.search(ctx, env, loc)
		if err != nil {
			return nil, err
		}
		if res != nil {
			env.SetLocations([]payload.Location{loc})
			return res, nil
		}
		if detail != "" {
			details = append(details, detail)
		}
	}
	message := ReasonNoSource
	if len(details) > 0 {
		message += ": " + strings.Join(details, "; ")
	}
	return nil, services.Wrap(services.ErrUnrecoverablePath, "resolve", "", message, nil)
}

// Prune drops locations whose file is missing or below the viable size and
// returns the first survivor. A size that differs from the catalog by more
// than the tolerance is logged but kept.
func (r *Resolver) Prune(env *payload.Envelope) (*Resolution, bool) {
	catalogSize := env.FileSize()
	var kept []payload.Location
	for _, loc := range env.Locations() {
		abs := r.abs(loc.UserPath)
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			r.logger.Warn("location missing on disk",
				logging.String("path", abs),
				logging.String(logging.FieldEventType, "location_missing"),
			)
			continue
		}
		if info.Size() < r.minViable {
			logging.ErrorWithContext(r.logger, "location below viable size", "location_not_viable",
				logging.String("path", abs),
				logging.Int64("size_bytes", info.Size()),
				logging.String(logging.FieldErrorHint, "file is truncated; check the storage copy"),
			)
			continue
		}
		if SizeMismatch(catalogSize, info.Size(), r.sizeTolerance) {
			logging.WarnWithContext(r.logger, "location size differs from catalog", "location_size_mismatch",
				logging.String("path", abs),
				logging.Int64("catalog_bytes", catalogSize),
				logging.Int64("disk_bytes", info.Size()),
			)
		}
		kept = append(kept, loc)
	}
	if len(kept) == 0 {
		return nil, false
	}
	env.SetLocations(kept)
	return &Resolution{
		Location:   kept[0],
		SourcePath: r.abs(kept[0].UserPath),
		Strategy:   StrategyPrune,
	}, true
}

// SizeMismatch reports whether actual differs from expected by more than
// tolerance as a fraction of expected. Exactly at the tolerance is no mismatch.
func SizeMismatch(expected, actual int64, tolerance float64) bool {
	diff := expected - actual
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) > float64(expected)*tolerance
}

// search looks for loc's file name below the nearest existing ancestor of its
// directory. A nil Resolution with a detail string means this location failed.
func (r *Resolver) search(ctx context.Context, env *payload.Envelope, loc payload.Location) (*Resolution, string, error) {
	userPath := cleanUserPath(loc.UserPath)
	dir := filepath.Dir(userPath)
	name := filepath.Base(userPath)
	if dir == "." || dir == "" {
		return nil, fmt.Sprintf("%s: parent is the storage root", userPath), nil
	}

	alias, err := r.aliases.LookupAlias(ctx, dir)
	if err != nil {
		return nil, "", err
	}
	if alias != nil {
		candidate := filepath.Join(r.root, alias.PhysicalDirectory, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Size() >= r.minViable {
			return &Resolution{Location: loc, SourcePath: candidate, Alias: alias, Strategy: StrategyAlias}, "", nil
		}
	}

	base, ok := r.existingAncestor(dir)
	if !ok {
		return nil, fmt.Sprintf("%s: no existing ancestor below the storage root", userPath), nil
	}

	matches, err := findByName(ctx, filepath.Join(r.root, base), name)
	if err != nil {
		return nil, "", err
	}
	match, detail := r.pickMatch(matches, env.FileSize())
	if match == "" {
		return nil, fmt.Sprintf("%s: %s", userPath, detail), nil
	}

	physical, err := filepath.Rel(r.root, filepath.Dir(match))
	if err != nil {
		return nil, "", fmt.Errorf("relative alias path: %w", err)
	}
	saved, err := r.aliases.SaveAlias(ctx, workstore.PathAlias{
		OriginalDirectory:  dir,
		PhysicalDirectory:  physical,
		SanitizedDirectory: SanitizePath(dir),
	})
	if err != nil {
		return nil, "", err
	}
	r.logger.Info("recovered source location",
		logging.String("original_directory", dir),
		logging.String("physical_directory", saved.PhysicalDirectory),
		logging.String("sanitized_directory", saved.SanitizedDirectory),
		logging.String(logging.FieldEventType, "alias_created"),
	)
	return &Resolution{Location: loc, SourcePath: match, Alias: saved, Strategy: StrategyAlias}, "", nil
}

// existingAncestor walks up from dir to the first directory present under the
// root. Reaching the root itself is a failure. Names ending in a dot are
// treated as missing since some storage gateways cannot address them.
func (r *Resolver) existingAncestor(dir string) (string, bool) {
	current := dir
	for current != "." && current != "" && current != string(filepath.Separator) {
		if !strings.HasSuffix(current, ".") {
			if info, err := os.Stat(filepath.Join(r.root, current)); err == nil && info.IsDir() {
				return current, true
			}
		}
		current = filepath.Dir(current)
	}
	return "", false
}

type match struct {
	path string
	size int64
}

func (r *Resolver) pickMatch(matches []match, catalogSize int64) (string, string) {
	switch len(matches) {
	case 0:
		return "", "file not found in subtree"
	case 1:
		if matches[0].size < r.minViable {
			return "", fmt.Sprintf("file size < %d bytes", r.minViable)
		}
		return matches[0].path, ""
	}
	for _, m := range matches {
		diff := m.size - catalogSize
		if diff < 0 {
			diff = -diff
		}
		if diff < r.matchSlack && m.size >= r.minViable {
			return m.path, ""
		}
	}
	return "", fmt.Sprintf("%d candidates, none matching catalog size", len(matches))
}

func findByName(ctx context.Context, base, name string) ([]match, error) {
	var matches []match
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != base {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, match{path: path, size: info.Size()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return matches, nil
}

func (r *Resolver) abs(userPath string) string {
	return filepath.Join(r.root, cleanUserPath(userPath))
}

func cleanUserPath(userPath string) string {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimSpace(userPath)))
	return strings.TrimLeft(cleaned, string(filepath.Separator))
}
