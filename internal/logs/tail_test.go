package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arcmigrate/internal/logs"
)

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcmigrate.jsonl")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "nope"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %#v", result)
	}
}

func TestTailFromOffsetLeavesPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcmigrate.jsonl")
	if err := os.WriteFile(path, []byte("one\ntwo\npart"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 4})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "two" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 8 {
		t.Fatalf("expected offset 8, got %d", result.Offset)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcmigrate.jsonl")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Errorf("unexpected follow lines: %#v", res.Lines)
		}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if got, err := logs.Latest(dir); err != nil || got != "" {
		t.Fatalf("expected no log, got %q %v", got, err)
	}
	for _, name := range []string{"arcmigrate-20240301T140000Z.jsonl", "arcmigrate-20240302T140000Z.jsonl", "other.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got, err := logs.Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if filepath.Base(got) != "arcmigrate-20240302T140000Z.jsonl" {
		t.Fatalf("unexpected latest log %q", got)
	}
}

func TestFormat(t *testing.T) {
	line := `{"ts":"2024-03-01T14:00:00Z","level":"warn","msg":"item quarantined","item_id":7,"reason":"NO SOURCE","batch":"2024-03-01"}`
	got := logs.Format(line)
	if !strings.Contains(got, "WARN  item quarantined") {
		t.Fatalf("missing level and message: %q", got)
	}
	if !strings.HasSuffix(got, `batch=2024-03-01 item_id=7 reason="NO SOURCE"`) {
		t.Fatalf("unexpected attributes: %q", got)
	}
	if logs.Format("plain text") != "plain text" {
		t.Fatal("non-JSON lines must pass through")
	}
}

func TestMatchesItem(t *testing.T) {
	if !logs.MatchesItem(`{"msg":"x","item_id":7}`, 7) {
		t.Fatal("expected match")
	}
	if logs.MatchesItem(`{"msg":"x","item_id":8}`, 7) || logs.MatchesItem(`{"msg":"x"}`, 7) || logs.MatchesItem("junk", 7) {
		t.Fatal("unexpected match")
	}
}
