package pathfix

import (
	"context"
	"path/filepath"
	"strings"

	"arcmigrate/internal/payload"
	"arcmigrate/internal/workstore"
)

// Placement locates every file an item touches after resolution.
type Placement struct {
	// Input is the source file the encoder reads and the file removed once
	// the transcoded copy is in place.
	Input string
	// RelPath is the transcoded file's path relative to the media root.
	RelPath string
	// Staging is where the encoder writes before the copy.
	Staging string
	// Destination is the transcoded file's final location.
	Destination string
	Alias       *workstore.PathAlias
}

// ScanFile is the media-root relative path submitted for re-indexing.
func (p Placement) ScanFile() string {
	return filepath.ToSlash(p.RelPath)
}

// InputHasContainerExt reports whether the source already carries ext.
func (p Placement) InputHasContainerExt(ext string) bool {
	return strings.EqualFold(filepath.Ext(p.Input), ext)
}

// Place computes the placement for the envelope's first location, applying
// any alias recorded for its directory.
func (r *Resolver) Place(ctx context.Context, env *payload.Envelope) (Placement, error) {
	paths := env.CandidatePaths()
	if len(paths) == 0 {
		return Placement{}, nil
	}
	userPath := cleanUserPath(paths[0])
	dir := filepath.Dir(userPath)
	alias, err := r.aliases.LookupAlias(ctx, dir)
	if err != nil {
		return Placement{}, err
	}
	return r.PlaceWith(userPath, alias), nil
}

// PlaceWith computes the placement for userPath with an optional alias.
func (r *Resolver) PlaceWith(userPath string, alias *workstore.PathAlias) Placement {
	userPath = cleanUserPath(userPath)
	name := filepath.Base(userPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	input := filepath.Join(r.root, userPath)
	outDir := filepath.Dir(userPath)
	if alias != nil {
		input = filepath.Join(r.root, alias.PhysicalDirectory, name)
		outDir = alias.SanitizedDirectory
	}
	rel := filepath.Join(outDir, stem+r.containerExt)
	return Placement{
		Input:       input,
		RelPath:     rel,
		Staging:     filepath.Join(r.stagingDir, rel),
		Destination: filepath.Join(r.root, rel),
		Alias:       alias,
	}
}
