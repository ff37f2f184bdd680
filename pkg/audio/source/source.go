// ABOUTME: Source abstraction for decoded track audio
// ABOUTME: Defines the Source interface, error taxonomy and format dispatch
// Package source turns track files into sequences of canonical PCM blocks.
//
// A Source produces interleaved float64 frames in [-1, +1] at its native
// sample rate and channel count, and supports frame-accurate seeking.
// Supported containers: WAV, FLAC, MP3. Sources whose native rate differs
// from the engine's target rate are wrapped with Resampled before the EQ
// chain ever sees their frames.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Error taxonomy for opening and reading sources. Callers distinguish the
// three open failures so the UI can say "missing" vs "not audio" vs
// "damaged"; ErrEndOfStream is a signal, not a failure.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecode            = errors.New("decode failed")
	ErrEndOfStream       = errors.New("end of stream")
)

// Source provides decoded PCM audio from one track.
//
// ReadBlock fills dst (interleaved, len must be a multiple of Channels)
// and returns the number of whole frames written. Past the final frame it
// returns 0, ErrEndOfStream. Corrupt data surfaces as an error wrapping
// ErrDecode.
//
// Sources are not safe for concurrent use; the playback engine is the
// single reader.
type Source interface {
	ReadBlock(dst []float64) (frames int, err error)

	// Seek repositions to an absolute frame. Seeking past the end clamps
	// to the final frame.
	Seek(frame int64) error

	// Position returns the next frame ReadBlock will produce.
	Position() int64

	// Duration returns the total length in frames, 0 when unknown.
	Duration() int64

	SampleRate() int
	Channels() int
	Close() error
}

// Open creates a Source for the given file path, dispatching on the file
// extension. Missing or unreadable files map to ErrSourceUnavailable,
// unknown extensions to ErrUnsupportedFormat and malformed content to
// ErrDecode.
func Open(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return openWAV(path)
	case ".flac":
		return openFLAC(path)
	case ".mp3":
		return openMP3(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
