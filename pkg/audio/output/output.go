// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends plus a capture backend
// Package output provides audio playback backends.
//
// Two device backends are available: oto (blocking pipe writes, the
// default) and malgo (miniaudio callback pull with a ring buffer). Null
// captures samples for tests and benchmarks.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(audio.Format{SampleRate: 44100, Channels: 2})
//	err = out.Write(samples)
package output

import (
	"sync"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
)

// Output represents an audio output device. Write blocks until the device
// has accepted the block, which is what paces the playback loop.
type Output interface {
	// Open initializes the device for the given format.
	Open(format audio.Format) error

	// Write queues interleaved canonical samples for playback.
	Write(samples []float64) error

	// Close releases device resources.
	Close() error
}

// Null is an Output that records everything written to it. Tests drive
// the playback engine against it to observe the processed stream.
type Null struct {
	mu      sync.Mutex
	format  audio.Format
	samples []float64
	open    bool
}

// NewNull creates a capturing output.
func NewNull() *Null {
	return &Null{}
}

// Open initializes the capture buffer.
func (n *Null) Open(format audio.Format) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.format = format
	n.open = true
	return nil
}

// Write appends samples to the capture buffer.
func (n *Null) Write(samples []float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.samples = append(n.samples, samples...)
	return nil
}

// Close marks the output closed; captured samples stay readable.
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
	return nil
}

// Samples returns a copy of everything written so far.
func (n *Null) Samples() []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]float64, len(n.samples))
	copy(out, n.samples)
	return out
}

// Format returns the format the output was opened with.
func (n *Null) Format() audio.Format {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.format
}
