package supervisor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcmigrate/internal/config"
	"arcmigrate/internal/encoding"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/preflight"
	"arcmigrate/internal/services"
	"arcmigrate/internal/services/catalog"
	"arcmigrate/internal/services/scan"
	"arcmigrate/internal/supervisor"
	"arcmigrate/internal/testsupport"
	"arcmigrate/internal/workstore"
)

const batch = "2024-03-01"

type fakeCatalog struct {
	records   []string
	searchErr error
	searches  int
	deleted   []int64
}

func (f *fakeCatalog) Search(_ context.Context, before string) (catalog.SearchResult, error) {
	f.searches++
	if f.searchErr != nil {
		return catalog.SearchResult{}, f.searchErr
	}
	return catalog.SearchResult{CacheID: "cache-" + before, Results: len(f.records)}, nil
}

func (f *fakeCatalog) Results(context.Context, string, int) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, json.RawMessage(r))
	}
	return out, nil
}

func (f *fakeCatalog) DeleteClip(_ context.Context, clipID int64) error {
	f.deleted = append(f.deleted, clipID)
	return nil
}

type fakeEncoder struct {
	mu  sync.Mutex
	err error
}

func (f *fakeEncoder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEncoder) Transcode(_ context.Context, req encoding.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return err
	}
	return os.WriteFile(req.Output, []byte("encoded"), 0o644)
}

type fakeScan struct{}

func (fakeScan) Submit(context.Context, scan.Request) (string, error) { return "scan-1", nil }

func (fakeScan) Wait(context.Context, string, time.Duration) error { return nil }

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) record(event string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) NotifyRunStarted(_ context.Context, _ string, mode string, _ int) error {
	return f.record("started:" + mode)
}

func (f *fakeNotifier) NotifyRunCompleted(_ context.Context, subject, _, _ string) error {
	return f.record("completed:" + subject)
}

func (f *fakeNotifier) NotifyError(context.Context, error, string) error {
	return f.record("error")
}

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

type harness struct {
	cfg      *config.Config
	store    *workstore.Store
	catalog  *fakeCatalog
	encoder  *fakeEncoder
	notifier *fakeNotifier
	sup      *supervisor.Supervisor
}

func newHarness(t *testing.T, records ...string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:      cfg,
		store:    store,
		catalog:  &fakeCatalog{records: records},
		encoder:  &fakeEncoder{},
		notifier: &fakeNotifier{},
	}
	deps := supervisor.Dependencies{
		Store:    store,
		Catalog:  h.catalog,
		Encoder:  h.encoder,
		Scan:     fakeScan{},
		Notifier: h.notifier,
	}
	clock := func() time.Time { return time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC) }
	h.sup = supervisor.New(cfg, deps, logging.NewNop(), supervisor.WithClock(clock))
	return h
}

func (h *harness) source(t *testing.T, rel string, size int64) {
	t.Helper()
	testsupport.WriteFile(t, filepath.Join(h.cfg.Paths.MediaRoot, rel), size)
}

func record(clipID int64, userPath, status string, size int64) string {
	return fmt.Sprintf(`{
  "clip_id": %d,
  "data": {
    "video": [{
      "timecode_start": "10:00:00:00:25",
      "timecode_duration": "00:01:00:00:25",
      "file": {
        "status_text": %q,
        "file": {"filesize": %d},
        "locations": [{"userpath": %q}]
      }
    }],
    "metadata": {"captured": "2019-05-04T10:11:12Z", "clip_name": "Clip %d"},
    "asset": {"custom": {}}
  }
}`, clipID, status, size, userPath, clipID)
}

func bigRecord(clipID int64) string {
	raw := record(clipID, "2021/big.avi", "Online", 10)
	return strings.Replace(raw, `"custom": {}`, `"custom": {"field_9": "`+strings.Repeat("x", 70000)+`"}`, 1)
}

func TestMainRunPopulatesAndMigrates(t *testing.T) {
	h := newHarness(t,
		record(1, "2021/a.avi", "Online", 1000),
		record(2, "2021/missing.avi", "Online", 1000),
		record(3, "2021/offline.avi", "Offline", 1000),
		bigRecord(4),
	)
	h.source(t, "2021/a.avi", 1000)

	outcome, err := h.sup.Run(context.Background(), supervisor.RunOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, outcome.RunID)
	assert.Equal(t, batch, outcome.Batch)
	assert.Equal(t, workstore.ModeMain, outcome.Mode)
	assert.Equal(t, supervisor.PopulateSummary{Found: 4, Added: 1, Quarantined: 2, Skipped: 1}, outcome.Populated)
	require.NotNil(t, outcome.Report)
	assert.True(t, outcome.Report.Succeeded())
	assert.Len(t, outcome.Passes, 1)
	assert.Equal(t, []int64{1}, h.catalog.deleted)

	ctx := context.Background()
	big, err := h.store.GetQuarantine(ctx, 4)
	require.NoError(t, err)
	require.NotNil(t, big)
	assert.Equal(t, supervisor.ReasonBigData, big.Reason)

	missing, err := h.store.GetQuarantine(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, missing)
	assert.Contains(t, missing.Reason, "no source file for all locations")

	offline, err := h.store.IsQuarantined(ctx, 3)
	require.NoError(t, err)
	assert.False(t, offline)

	assert.Equal(t, []string{"started:main", "completed:DONE"}, h.notifier.events)
}

func TestQuarantineClearedWhenItemLaterSucceeds(t *testing.T) {
	h := newHarness(t, record(1, "2021/a.avi", "Online", 1000))
	h.source(t, "2021/a.avi", 1000)
	h.encoder.setErr(services.Wrap(services.ErrExternalTool, "encode", "", "PROBLEM Transcoding", nil))
	ctx := context.Background()

	first, err := h.sup.Run(ctx, supervisor.RunOptions{})
	require.NoError(t, err)
	assert.False(t, first.Report.Succeeded())
	assert.Len(t, first.Passes, 2, "an incomplete main run gets one helper pass")
	quarantined, err := h.store.IsQuarantined(ctx, 1)
	require.NoError(t, err)
	require.True(t, quarantined)

	h.encoder.setErr(nil)
	second, err := h.sup.Run(ctx, supervisor.RunOptions{Helper: true})
	require.NoError(t, err)
	assert.Equal(t, workstore.ModeHelper, second.Mode)
	assert.True(t, second.Report.Succeeded())

	quarantined, err = h.store.IsQuarantined(ctx, 1)
	require.NoError(t, err)
	assert.False(t, quarantined)
	assert.Equal(t, []string{
		"started:main", "completed:WARNING", "completed:WARNING",
		"started:helper", "completed:DONE",
	}, h.notifier.events)
}

func TestRerunOnSameDateResumesIdleBatch(t *testing.T) {
	h := newHarness(t, record(1, "2021/a.avi", "Online", 1000))
	h.source(t, "2021/a.avi", 1000)
	ctx := context.Background()

	_, err := h.sup.Run(ctx, supervisor.RunOptions{})
	require.NoError(t, err)

	again, err := h.sup.Run(ctx, supervisor.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, workstore.ModeHelper, again.Mode)
	assert.True(t, again.Idle)
	assert.Nil(t, again.Report)
}

func TestHelperWithoutBatchIsFatal(t *testing.T) {
	h := newHarness(t)
	_, err := h.sup.Run(context.Background(), supervisor.RunOptions{Helper: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, supervisor.ErrFatal))
}

func TestSearchFailureIsFatalAndNotified(t *testing.T) {
	h := newHarness(t)
	h.catalog.searchErr = services.Wrap(services.ErrTransient, "catalog", "search", "connection refused", nil)

	_, err := h.sup.Run(context.Background(), supervisor.RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, supervisor.ErrFatal))
	assert.True(t, errors.Is(err, services.ErrTransient))
	assert.Equal(t, []string{"error"}, h.notifier.events)
}

func TestRunRefusesWhenLocked(t *testing.T) {
	h := newHarness(t)
	lock, err := workstore.AcquireLock(h.cfg.LockPath())
	require.NoError(t, err)
	defer lock.Release()

	_, err = h.sup.Run(context.Background(), supervisor.RunOptions{})
	assert.ErrorIs(t, err, workstore.ErrLocked)
}

func TestInvalidDateRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.sup.Run(context.Background(), supervisor.RunOptions{Date: "01.03.2024"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid batch date")
}

func TestFailedPreflightAbortsBeforePopulate(t *testing.T) {
	h := newHarness(t, record(1, "/a/clip.mxf", "online", 4))
	deps := supervisor.Dependencies{
		Store:    h.store,
		Catalog:  h.catalog,
		Encoder:  h.encoder,
		Scan:     fakeScan{},
		Notifier: h.notifier,
		Preflight: func(context.Context, *config.Config) []preflight.Result {
			return []preflight.Result{
				{Name: "Media root", Detail: "/mnt/media (error: does not exist)"},
				{Name: "Staging free space", Optional: true, Detail: "low"},
			}
		},
	}
	sup := supervisor.New(h.cfg, deps, logging.NewNop())

	_, err := sup.Run(context.Background(), supervisor.RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, supervisor.ErrFatal)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.Contains(t, err.Error(), "Media root")
	assert.Zero(t, h.catalog.searches)
	assert.Equal(t, []string{"error"}, h.notifier.events)
}

func TestRunCleansOrphanedStaging(t *testing.T) {
	h := newHarness(t, record(1, "2021/a.avi", "Online", 1000))
	h.source(t, "2021/a.avi", 1000)
	orphan := filepath.Join(h.cfg.Paths.StagingDir, "2019", "crashed.mov")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphan), 0o755))
	require.NoError(t, os.WriteFile(orphan, []byte("partial"), 0o644))

	_, err := h.sup.Run(context.Background(), supervisor.RunOptions{})
	require.NoError(t, err)

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "orphaned staged file should be removed")
	_, err = os.Stat(h.cfg.Paths.StagingDir)
	assert.NoError(t, err, "staging root is kept")
}
