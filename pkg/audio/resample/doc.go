// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts canonical float64 audio between sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling. Higher-order interpolation
// was considered and rejected: sources are music files, the engine rate
// usually matches the source rate, and linear error is well below the
// 16-bit output floor for typical ratios.
//
// Example:
//
//	r := resample.New(48000, 44100, 2)
//	written := r.Resample(input, output)
package resample
