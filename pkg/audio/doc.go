// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format plus float64 sample and frame/time conversions
// Package audio provides fundamental audio types and utilities for the player.
//
// The canonical in-engine representation is interleaved float64 samples in
// [-1.0, +1.0]. Sources normalize their native bit depths into this form and
// output backends convert back to device formats at the boundary.
//
// Example:
//
//	format := audio.Format{
//	    SampleRate: 44100,
//	    Channels:   2,
//	}
//
//	// Convert a decoded 24-bit integer sample to canonical form
//	sample := audio.SampleFromInt(raw, 24)
package audio
