package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"arcmigrate/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", ""); result.Passed {
		t.Fatal("expected failure for unconfigured path")
	}
}

func TestCheckFreeSpaceIsOptional(t *testing.T) {
	result := CheckFreeSpace(context.Background(), "space", t.TempDir(), 1)
	if !result.Optional {
		t.Fatal("free space check should be optional")
	}
	if !result.Passed {
		t.Fatalf("expected at least one free byte, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "Catalog", srv.URL, false)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "Catalog", srv.URL, false)
	if result.Passed {
		t.Fatal("expected failure for 500")
	}
}

func TestCheckEndpoint_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := CheckEndpoint(context.Background(), "Scan", url, false)
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestRunAll(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.MediaRoot = filepath.Join(root, "media")
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Migration.StopFile = filepath.Join(root, "state", "soft_stop")
	cfg.Encoder.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Encoder.FFprobeBinary = "clearly-not-present-ffprobe"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}

	if byName["Media root"].Passed {
		t.Fatal("missing media root must fail")
	}
	if !byName["Staging directory"].Passed || !byName["State directory"].Passed {
		t.Fatalf("expected staging and state to pass: %#v", results)
	}
	if byName["FFmpeg"].Passed || byName["FFprobe"].Passed {
		t.Fatal("expected missing binaries to fail")
	}
	if _, ok := byName["Catalog"]; ok {
		t.Fatal("catalog check should be skipped without a base url")
	}

	failed := Failed(results)
	if len(failed) != 3 {
		t.Fatalf("expected 3 required failures, got %d: %#v", len(failed), failed)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %#v", results)
	}
}
