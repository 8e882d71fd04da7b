package service

import (
	"path/filepath"
	"testing"

	"github.com/audiolibrelab/memocapture/internal/config"
	"github.com/audiolibrelab/memocapture/internal/library"
)

func testService(t *testing.T, dbPath string) *MemoCaptureService {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	cfg.Output.ExportDirectory = t.TempDir()
	cfg.Store.Path = dbPath

	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to wire service: %v", err)
	}
	return svc
}

func TestDarkModePersistsAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "settings.sqlite")

	svc := testService(t, dbPath)
	if svc.DarkMode() {
		t.Error("dark mode must default to off")
	}
	svc.SetDarkMode(true)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Close flushes the staged preference; a fresh instance sees it.
	svc = testService(t, dbPath)
	defer svc.Close()
	if !svc.DarkMode() {
		t.Error("dark mode must survive a restart")
	}
}

func TestPlayUnknownRecordingSetsLastError(t *testing.T) {
	svc := testService(t, filepath.Join(t.TempDir(), "settings.sqlite"))
	defer svc.Close()

	if err := svc.Play(library.KindRaw, "no-such-id"); err == nil {
		t.Fatal("expected an error for an unknown recording")
	}
	if svc.GetLastError() == "" {
		t.Error("expected the last error to be recorded")
	}
}

func TestRenameUnknownRecordingIsRejected(t *testing.T) {
	svc := testService(t, filepath.Join(t.TempDir(), "settings.sqlite"))
	defer svc.Close()

	if svc.Rename(library.KindRaw, "no-such-id", "New Name") {
		t.Error("renaming an unknown recording must report no change")
	}
	if got := len(svc.Recordings(library.KindRaw)); got != 0 {
		t.Errorf("expected an empty library, got %d recordings", got)
	}
}
