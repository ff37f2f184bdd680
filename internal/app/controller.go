// ABOUTME: Playback controller facade
// ABOUTME: Bridges the engine to the settings store and the UI layer
// Package app wires the playback engine to persistence and the UI.
//
// The Controller is the only component that talks to both the engine and
// the settings store: opening a track loads it into the engine and then
// applies whatever settings were saved for it; saving reads the engine's
// live snapshot back into the store. The UI calls the Controller and
// never touches the engine directly.
package app

import (
	"fmt"
	"log"
	"sync"

	"github.com/sidecar-eq/sidecar-go/internal/store"
	"github.com/sidecar-eq/sidecar-go/pkg/audio/output"
	"github.com/sidecar-eq/sidecar-go/pkg/engine"
	"github.com/sidecar-eq/sidecar-go/pkg/eq"
)

// Config holds controller configuration.
type Config struct {
	// StorePath overrides the settings database location. Empty means
	// the per-user default.
	StorePath string

	// BlockFrames and SampleRate pass through to the engine; zero means
	// engine defaults.
	BlockFrames int
	SampleRate  int

	// Output overrides the audio backend; nil means the engine default.
	Output output.Output

	// OnFinished fires when a track plays to its end.
	OnFinished func()

	// OnError receives asynchronous playback errors.
	OnError func(error)
}

// Controller owns the engine and the settings store.
type Controller struct {
	engine *engine.Engine
	store  *store.Store

	mu        sync.Mutex
	trackPath string
}

// New creates a controller, opening the settings store and starting the
// engine.
func New(cfg Config) (*Controller, error) {
	storePath := cfg.StorePath
	if storePath == "" {
		var err error
		storePath, err = store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving store path: %w", err)
		}
	}

	st, err := store.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("opening settings store: %w", err)
	}

	c := &Controller{store: st}
	c.engine = engine.New(engine.Config{
		BlockFrames: cfg.BlockFrames,
		SampleRate:  cfg.SampleRate,
		Output:      cfg.Output,
		OnFinished:  cfg.OnFinished,
		OnError:     cfg.OnError,
	})
	return c, nil
}

// OpenTrack loads a track and applies its saved settings, falling back to
// flat EQ at unity volume for unknown tracks.
func (c *Controller) OpenTrack(path string) error {
	if _, err := c.engine.Load(path); err != nil {
		return err
	}

	settings := eq.DefaultSettings()
	if rec, ok := c.store.Lookup(path); ok {
		settings = rec.Settings
		log.Printf("Applying saved settings for %s", path)
	}
	c.applySettings(settings)

	c.mu.Lock()
	c.trackPath = path
	c.mu.Unlock()
	return nil
}

func (c *Controller) applySettings(settings eq.Settings) {
	for band, gain := range settings.Gains {
		if err := c.engine.SetBandGain(band, gain); err != nil {
			log.Printf("Skipping saved gain for band %d: %v", band, err)
		}
	}
	if err := c.engine.SetVolume(settings.Volume); err != nil {
		log.Printf("Skipping saved volume: %v", err)
	}
}

// SaveSettings persists the live EQ and volume for the current track.
func (c *Controller) SaveSettings() error {
	c.mu.Lock()
	path := c.trackPath
	c.mu.Unlock()
	if path == "" {
		return engine.ErrNoTrack
	}
	return c.store.Save(path, c.engine.Status().Settings())
}

// Play starts or resumes playback and bumps the track's play count.
func (c *Controller) Play() error {
	if err := c.engine.Play(); err != nil {
		return err
	}

	c.mu.Lock()
	path := c.trackPath
	c.mu.Unlock()
	if path != "" {
		if err := c.store.RecordPlay(path); err != nil {
			log.Printf("Recording play failed: %v", err)
		}
	}
	return nil
}

// TogglePlay pauses when playing, plays otherwise.
func (c *Controller) TogglePlay() error {
	if c.engine.State() == engine.Playing {
		return c.engine.Pause()
	}
	return c.Play()
}

// Pause suspends playback.
func (c *Controller) Pause() error { return c.engine.Pause() }

// Stop halts playback and rewinds.
func (c *Controller) Stop() error { return c.engine.Stop() }

// Seek repositions playback.
func (c *Controller) Seek(frame int64) error { return c.engine.Seek(frame) }

// SetBandGain adjusts one EQ band.
func (c *Controller) SetBandGain(band int, gainDB float64) error {
	return c.engine.SetBandGain(band, gainDB)
}

// SetVolume adjusts playback volume.
func (c *Controller) SetVolume(level float64) error {
	return c.engine.SetVolume(level)
}

// Status returns the engine's observable state.
func (c *Controller) Status() engine.Snapshot { return c.engine.Status() }

// Close shuts down the engine.
func (c *Controller) Close() error { return c.engine.Close() }
