package pathfix_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcmigrate/internal/config"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services"
	"arcmigrate/internal/testsupport"
	"arcmigrate/internal/workstore"
)

func newResolver(t *testing.T) (*pathfix.Resolver, *config.Config, *workstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return pathfix.NewResolver(cfg, store, logging.NewNop()), cfg, store
}

func envelope(t *testing.T, size int64, paths ...string) *payload.Envelope {
	t.Helper()
	locations := ""
	for i, p := range paths {
		if i > 0 {
			locations += ","
		}
		locations += fmt.Sprintf(`{"userpath": %q}`, p)
	}
	record := fmt.Sprintf(`{"clip_id": 9, "data": {"video": [{"file": {"file": {"filesize": %d}, "locations": [%s]}}]}}`, size, locations)
	env, err := payload.Parse([]byte(record))
	require.NoError(t, err)
	return env
}

func TestResolvePrunesMissingLocation(t *testing.T) {
	resolver, cfg, _ := newResolver(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.MediaRoot, "2021/April/news.mxf"), 1000)

	env := envelope(t, 1000, "2021/Gone/news.mxf", "2021/April/news.mxf")
	res, err := resolver.Resolve(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, pathfix.StrategyPrune, res.Strategy)
	assert.Equal(t, filepath.Join(cfg.Paths.MediaRoot, "2021/April/news.mxf"), res.SourcePath)
	assert.Equal(t, []string{"2021/April/news.mxf"}, env.CandidatePaths())
	assert.Nil(t, res.Alias)
}

func TestPruneDropsTruncatedFile(t *testing.T) {
	resolver, cfg, _ := newResolver(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.MediaRoot, "a/tiny.mxf"), 5)

	_, ok := resolver.Prune(envelope(t, 5, "a/tiny.mxf"))
	assert.False(t, ok)
}

func TestPruneKeepsSizeAtToleranceBoundary(t *testing.T) {
	resolver, cfg, _ := newResolver(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.MediaRoot, "a/clip.mxf"), 950)

	res, ok := resolver.Prune(envelope(t, 1000, "a/clip.mxf"))
	require.True(t, ok)
	assert.Equal(t, "a/clip.mxf", res.Location.UserPath)

	assert.False(t, pathfix.SizeMismatch(1000, 950, 0.05))
	assert.False(t, pathfix.SizeMismatch(1000, 1050, 0.05))
	assert.True(t, pathfix.SizeMismatch(1000, 949, 0.05))
}

func TestResolveUnrecoverable(t *testing.T) {
	resolver, cfg, _ := newResolver(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.MediaRoot, "2021/other.mxf"), 100)

	_, err := resolver.Resolve(context.Background(), envelope(t, 100, "2021/April/news.mxf", "root.mxf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrUnrecoverablePath))
	assert.Contains(t, err.Error(), pathfix.ReasonNoSource)
}

func TestResolveSearchCreatesAlias(t *testing.T) {
	resolver, cfg, store := newResolver(t)
	ctx := context.Background()
	moved := filepath.Join(cfg.Paths.MediaRoot, "2021/Исходник/Итоги выпуск/clip.mxf")
	testsupport.WriteFile(t, moved, 2048)

	env := envelope(t, 2048, "2021/Исходник/«Итоги» выпуск/clip.mxf")
	res, err := resolver.Resolve(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, pathfix.StrategyAlias, res.Strategy)
	assert.Equal(t, moved, res.SourcePath)
	require.NotNil(t, res.Alias)
	assert.Equal(t, "2021/Исходник/Итоги выпуск", res.Alias.PhysicalDirectory)
	assert.Equal(t, "2021/Исходник/Итоги выпуск", res.Alias.SanitizedDirectory)

	stored, err := store.LookupAlias(ctx, "2021/Исходник/«Итоги» выпуск")
	require.NoError(t, err)
	require.NotNil(t, stored)

	// A second item from the same directory reuses the alias.
	again, err := resolver.Resolve(ctx, envelope(t, 2048, "2021/Исходник/«Итоги» выпуск/clip.mxf"))
	require.NoError(t, err)
	assert.Equal(t, moved, again.SourcePath)
}

func TestResolveSearchPicksSizeMatch(t *testing.T) {
	resolver, cfg, _ := newResolver(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.MediaRoot, "2021/a/clip.mxf"), 500)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.MediaRoot, "2021/b/clip.mxf"), 4000)

	res, err := resolver.Resolve(context.Background(), envelope(t, 4005, "2021/missing/clip.mxf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.MediaRoot, "2021/b/clip.mxf"), res.SourcePath)

	_, err = resolver.Resolve(context.Background(), envelope(t, 9999, "2021/gone/clip.mxf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none matching catalog size")
}

func TestPlaceWithAlias(t *testing.T) {
	resolver, cfg, _ := newResolver(t)
	alias := &workstore.PathAlias{
		OriginalDirectory:  "2021/«X»",
		PhysicalDirectory:  "2021/X moved",
		SanitizedDirectory: "2021/X",
	}
	placement := resolver.PlaceWith("2021/«X»/clip.mxf", alias)

	assert.Equal(t, filepath.Join(cfg.Paths.MediaRoot, "2021/X moved/clip.mxf"), placement.Input)
	assert.Equal(t, filepath.Join("2021", "X", "clip.mov"), placement.RelPath)
	assert.Equal(t, filepath.Join(cfg.Paths.StagingDir, "2021/X/clip.mov"), placement.Staging)
	assert.Equal(t, filepath.Join(cfg.Paths.MediaRoot, "2021/X/clip.mov"), placement.Destination)
	assert.Equal(t, "2021/X/clip.mov", placement.ScanFile())
	assert.False(t, placement.InputHasContainerExt(cfg.Encoder.ContainerExt))

	plain := resolver.PlaceWith("2021/April/clip.MOV", nil)
	assert.Equal(t, filepath.Join(cfg.Paths.MediaRoot, "2021/April/clip.MOV"), plain.Input)
	assert.True(t, plain.InputHasContainerExt(".mov"))
}
