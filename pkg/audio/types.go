// ABOUTME: Canonical PCM type definitions
// ABOUTME: Defines Format and sample/frame conversion helpers
package audio

import "time"

// Format describes a PCM stream as the engine sees it.
type Format struct {
	SampleRate int
	Channels   int
}

// BlockBytes returns the byte length of a block of frames once converted
// to signed 16-bit output samples.
func (f Format) BlockBytes(frames int) int {
	return frames * f.Channels * 2
}

// FramesToDuration converts a frame count at this format's sample rate.
func (f Format) FramesToDuration(frames int64) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// DurationToFrames converts a duration to a frame count at this format's rate.
func (f Format) DurationToFrames(d time.Duration) int64 {
	return int64(d) * int64(f.SampleRate) / int64(time.Second)
}

// Clamp limits a sample to the representable [-1, +1] range.
func Clamp(x float64) float64 {
	if x > 1.0 {
		return 1.0
	}
	if x < -1.0 {
		return -1.0
	}
	return x
}

// SampleToInt16 converts a canonical sample to a signed 16-bit device sample.
// Out-of-range input is clamped rather than wrapped.
func SampleToInt16(x float64) int16 {
	x = Clamp(x)
	if x >= 0 {
		return int16(x * 32767.0)
	}
	return int16(x * 32768.0)
}

// SampleFromInt16 converts a signed 16-bit sample to canonical form.
func SampleFromInt16(v int16) float64 {
	return float64(v) / 32768.0
}

// SampleFromInt converts an integer PCM sample of the given bit depth
// (16, 24 or 32) to canonical form. Unknown depths fall back to 16-bit
// scaling; sources validate depth before decoding.
func SampleFromInt(v int, bitDepth int) float64 {
	switch bitDepth {
	case 24:
		return float64(v) / 8388608.0
	case 32:
		return float64(v) / 2147483648.0
	default:
		return float64(v) / 32768.0
	}
}
