package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arcmigrate/internal/migration"
	"arcmigrate/internal/testsupport"
	"arcmigrate/internal/workstore"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Catalog.Password = "hunter2"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked: %s", out)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, "media_root")

	out, _, err = runCLI(t, []string{"config", "show", "--reveal"}, env.configPath)
	if err != nil {
		t.Fatalf("config show --reveal: %v", err)
	}
	requireContains(t, out, "hunter2")
}

func TestSanitizeCommand(t *testing.T) {
	out, _, err := runCLI(t, []string{"sanitize", "a/???/b", ".hidden"}, "")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if out != "a/b\nhidden\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStopAndResume(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Soft stop requested")
	if !migration.ReadStopFile(env.cfg.StopFilePath()) {
		t.Fatal("expected stop flag to be set")
	}

	out, _, err = runCLI(t, []string{"resume"}, env.configPath)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "Soft stop cleared")
	if migration.ReadStopFile(env.cfg.StopFilePath()) {
		t.Fatal("expected stop flag to be cleared")
	}

	out, _, err = runCLI(t, []string{"resume"}, env.configPath)
	if err != nil {
		t.Fatalf("resume twice: %v", err)
	}
	requireContains(t, out, "No soft stop was requested")
}

func TestStatusWithoutBatches(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No batches recorded yet")

	if _, _, err := runCLI(t, []string{"status", "--batch", "2020-01-01"}, env.configPath); err == nil {
		t.Fatal("expected unknown batch to fail")
	}
}

func TestStatusReportsBatchProgress(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	first := testsupport.NewItem(t, env.store, "2024-03-01", 11, `{"id":11}`)
	testsupport.NewItem(t, env.store, "2024-03-01", 12, `{"id":12}`)
	if err := env.store.MarkTranscoded(ctx, "2024-03-01", first.ID); err != nil {
		t.Fatalf("MarkTranscoded: %v", err)
	}

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if view.Batch != "2024-03-01" || view.Stats.Total != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Stats.Stages[string(workstore.FlagTranscoded)] != 1 {
		t.Fatalf("expected one transcoded item, got %+v", view.Stats.Stages)
	}
	if len(view.Incomplete) != 2 {
		t.Fatalf("expected two incomplete lines, got %+v", view.Incomplete)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Batch 2024-03-01")
	requireContains(t, out, "NOT TRANSCODED")
	requireContains(t, out, "NOT DELETED CLIP")
}

func TestQuarantineListAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	for _, id := range []int64{7, 8} {
		if _, err := env.store.AddQuarantine(ctx, workstore.QuarantineItem{
			ClipID:     id,
			SourcePath: "/mnt/media/clip.mxf",
			Reason:     "NO SOURCE",
		}); err != nil {
			t.Fatalf("AddQuarantine: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"quarantine", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("quarantine list: %v", err)
	}
	requireContains(t, out, "NO SOURCE")
	requireContains(t, out, "/mnt/media/clip.mxf")

	if _, _, err := runCLI(t, []string{"quarantine", "clear"}, env.configPath); err == nil {
		t.Fatal("expected clear without ids or --all to fail")
	}

	out, _, err = runCLI(t, []string{"quarantine", "clear", "7", "99"}, env.configPath)
	if err != nil {
		t.Fatalf("quarantine clear: %v", err)
	}
	requireContains(t, out, "Clip 7 removed from quarantine")
	requireContains(t, out, "Clip 99 was not quarantined")

	out, _, err = runCLI(t, []string{"quarantine", "clear", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("quarantine clear --all: %v", err)
	}
	requireContains(t, out, "Cleared 1 quarantine entries")
}

func TestItemsReleaseClearsClaims(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, env.store, "2024-03-01", 11, `{"id":11}`)
	if claimed, err := env.store.Claim(ctx, "2024-03-01", item.ID); err != nil || !claimed {
		t.Fatalf("Claim: %v %v", claimed, err)
	}

	out, _, err := runCLI(t, []string{"items", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("items list: %v", err)
	}
	requireContains(t, out, "yes")

	out, _, err = runCLI(t, []string{"items", "release"}, env.configPath)
	if err != nil {
		t.Fatalf("items release: %v", err)
	}
	requireContains(t, out, "Released 1 claimed items in batch 2024-03-01")

	got, err := env.store.Get(ctx, "2024-03-01", item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.InWork {
		t.Fatal("expected claim to be released")
	}
}

func TestItemsReleaseRefusedWhileRunInProgress(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewItem(t, env.store, "2024-03-01", 11, `{"id":11}`)
	lock, err := workstore.AcquireLock(env.cfg.LockPath())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, []string{"items", "release"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "in progress") {
		t.Fatalf("expected in-progress error, got %v", err)
	}
}

func TestAliasesList(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"aliases", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("aliases list: %v", err)
	}
	requireContains(t, out, "No path aliases recorded")

	if _, err := env.store.SaveAlias(context.Background(), workstore.PathAlias{
		OriginalDirectory:  "2021/Old",
		PhysicalDirectory:  "2021/Old ",
		SanitizedDirectory: "2021/Old",
	}); err != nil {
		t.Fatalf("SaveAlias: %v", err)
	}
	out, _, err = runCLI(t, []string{"aliases", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("aliases list: %v", err)
	}
	requireContains(t, out, "2021/Old")
}

func TestPreflightReportsMissingMediaRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.RemoveAll(env.cfg.Paths.MediaRoot); err != nil {
		t.Fatalf("remove media root: %v", err)
	}

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight to fail without a media root")
	}
	requireContains(t, out, "Media root:")
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "FFmpeg:")
	requireContains(t, out, "ffmpeg version stub")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestStagingCleanKeepsNothingWithoutPendingItems(t *testing.T) {
	env := setupCLITestEnv(t)
	orphan := filepath.Join(env.cfg.Paths.StagingDir, "2020", "orphan.mov")
	if err := os.MkdirAll(filepath.Dir(orphan), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(orphan, []byte("orphan"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, _, err := runCLI(t, []string{"staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "orphan.mov")

	out, _, err = runCLI(t, []string{"staging", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 staged files")
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("orphan should be removed")
	}
}

func TestLogsShowsNewestRunLog(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No run logs yet")

	records := `{"ts":"2024-03-01T14:00:00Z","level":"info","msg":"item placed","item_id":1}
{"ts":"2024-03-01T14:00:01Z","level":"warn","msg":"item quarantined","item_id":2}
`
	path := filepath.Join(env.cfg.Paths.LogDir, "arcmigrate-20240301T140000Z.jsonl")
	if err := os.WriteFile(path, []byte(records), 0o644); err != nil {
		t.Fatalf("write run log: %v", err)
	}

	out, _, err = runCLI(t, []string{"logs", "--item", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --item: %v", err)
	}
	requireContains(t, out, "item quarantined")
	if strings.Contains(out, "item placed") {
		t.Fatalf("item filter ignored: %s", out)
	}
}
