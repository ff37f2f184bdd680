// ABOUTME: In-memory PCM source
// ABOUTME: Seekable buffer source plus a sine tone generator for tests
package source

import (
	"fmt"
	"math"
)

// Buffer is a Source backed by an in-memory sample slice. It backs the
// engine tests and is handy for feeding synthesized audio through the
// full pipeline.
type Buffer struct {
	samples    []float64 // interleaved
	sampleRate int
	channels   int
	pos        int64 // frames
}

// NewBuffer creates a source over interleaved samples.
func NewBuffer(samples []float64, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %dHz %dch", ErrUnsupportedFormat, sampleRate, channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: samples not frame aligned", ErrDecode)
	}
	return &Buffer{
		samples:    samples,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// NewTone synthesizes a sine at the given frequency and amplitude,
// duplicated across channels.
func NewTone(freq, amplitude float64, sampleRate, channels, frames int) *Buffer {
	samples := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	b, _ := NewBuffer(samples, sampleRate, channels)
	return b
}

func (b *Buffer) ReadBlock(dst []float64) (int, error) {
	if len(dst)%b.channels != 0 {
		return 0, fmt.Errorf("%w: block not frame aligned", ErrDecode)
	}

	start := b.pos * int64(b.channels)
	if start >= int64(len(b.samples)) {
		return 0, ErrEndOfStream
	}

	n := copy(dst, b.samples[start:])
	n -= n % b.channels
	frames := n / b.channels
	b.pos += int64(frames)
	return frames, nil
}

func (b *Buffer) Seek(frame int64) error {
	total := b.Duration()
	if frame < 0 {
		frame = 0
	}
	if frame > total {
		frame = total
	}
	b.pos = frame
	return nil
}

func (b *Buffer) Position() int64 { return b.pos }

func (b *Buffer) Duration() int64 {
	return int64(len(b.samples) / b.channels)
}

func (b *Buffer) SampleRate() int { return b.sampleRate }
func (b *Buffer) Channels() int   { return b.channels }
func (b *Buffer) Close() error    { return nil }
