// ABOUTME: Tests for the settings store
// ABOUTME: Covers round trips, missing files, corrupt databases and play counts
package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sidecar-eq/sidecar-go/pkg/eq"
)

func TestLookupMissingTrack(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, ok := s.Lookup("/music/unknown.flac"); ok {
		t.Error("unexpected record for unknown track")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	settings := eq.DefaultSettings()
	settings.Gains = [eq.NumBands]float64{3, -2, 0, 6, 0, -4, 1}
	settings.Volume = 0.85

	if err := s.Save("/music/track.flac", settings); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Fresh handle over the same file.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, ok := s2.Lookup("/music/track.flac")
	if !ok {
		t.Fatal("record missing after reload")
	}
	if rec.Settings != settings {
		t.Errorf("reloaded settings = %+v, want %+v", rec.Settings, settings)
	}
}

func TestCorruptDatabaseStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte("{{{ not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open should tolerate corrupt db: %v", err)
	}
	if _, ok := s.Lookup("/anything"); ok {
		t.Error("corrupt db produced records")
	}
}

func TestRecordPlayPreservesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	settings := eq.DefaultSettings()
	settings.Gains[0] = 5
	if err := s.Save("/music/a.mp3", settings); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.RecordPlay("/music/a.mp3"); err != nil {
		t.Fatalf("RecordPlay: %v", err)
	}
	if err := s.RecordPlay("/music/a.mp3"); err != nil {
		t.Fatalf("RecordPlay: %v", err)
	}

	rec, ok := s.Lookup("/music/a.mp3")
	if !ok {
		t.Fatal("record missing")
	}
	if rec.PlayCount != 2 {
		t.Errorf("play count = %d, want 2", rec.PlayCount)
	}
	if rec.Settings.Gains[0] != 5 {
		t.Errorf("play count update lost settings: %+v", rec.Settings)
	}
	if rec.LastPlayed.IsZero() {
		t.Error("last played not recorded")
	}
}
