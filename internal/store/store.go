// ABOUTME: Per-track settings persistence
// ABOUTME: JSON-file store mapping track paths to saved EQ and volume
// Package store persists per-track audio settings between sessions.
//
// The store is a single JSON file mapping absolute track paths to their
// saved equalizer gains, volume and play history. Only the controller
// talks to it; the playback engine never sees persistence.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sidecar-eq/sidecar-go/pkg/eq"
)

// Record is everything remembered about one track.
type Record struct {
	Settings   eq.Settings `json:"settings"`
	PlayCount  int         `json:"play_count,omitempty"`
	LastPlayed time.Time   `json:"last_played,omitempty"`
}

// Store is a JSON-file-backed settings database. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
}

// DefaultPath returns the per-user database location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no config dir: %w", err)
	}
	return filepath.Join(dir, "sidecar", "db.json"), nil
}

// Open loads the database at path, starting empty when the file does not
// exist. A corrupt database is treated as empty rather than fatal; losing
// saved sliders beats refusing to start.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings db: %w", err)
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		s.records = make(map[string]Record)
	}
	return s, nil
}

func key(trackPath string) string {
	abs, err := filepath.Abs(trackPath)
	if err != nil {
		return trackPath
	}
	return abs
}

// Lookup returns the saved record for a track, if any.
func (s *Store) Lookup(trackPath string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(trackPath)]
	return rec, ok
}

// Save writes a track's settings, preserving its play history.
func (s *Store) Save(trackPath string, settings eq.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(trackPath)
	rec := s.records[k]
	rec.Settings = settings
	s.records[k] = rec
	return s.flushLocked()
}

// RecordPlay bumps the play count and timestamp for a track.
func (s *Store) RecordPlay(trackPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(trackPath)
	rec := s.records[k]
	rec.PlayCount++
	rec.LastPlayed = time.Now().UTC()
	s.records[k] = rec
	return s.flushLocked()
}

// flushLocked writes the database atomically via rename.
func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings db: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings db: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing settings db: %w", err)
	}
	return nil
}
