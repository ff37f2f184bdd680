// ABOUTME: Seven-band parametric equalizer definitions
// ABOUTME: Declares the fixed band layout, gain limits and settings value type
// Package eq implements the player's 7-band peaking equalizer.
//
// The band layout is fixed: seven peaking filters at 60, 150, 400, 1000,
// 2400, 6000 and 15000 Hz, all with Q = 1.0. Only the per-band gain is
// adjustable at runtime, within ±12 dB.
package eq

import "errors"

// NumBands is the number of equalizer bands. Always 7.
const NumBands = 7

// BandFrequencies lists the fixed center frequency of each band in Hz,
// ascending. Cascade order follows this ordering.
var BandFrequencies = [NumBands]float64{60, 150, 400, 1000, 2400, 6000, 15000}

// BandQ is the bandwidth factor shared by all bands.
const BandQ = 1.0

// Gain limits in dB for a single band.
const (
	GainMinDB = -12.0
	GainMaxDB = 12.0
)

// ErrChannelMismatch indicates a block whose layout does not match the
// channel count the chain was built for.
var ErrChannelMismatch = errors.New("block channel count does not match chain")

// Settings is the persisted audio shape for one track: the seven band
// gains in dB plus linear volume. The zero value of Gains is flat.
type Settings struct {
	Gains  [NumBands]float64 `json:"eq"`
	Volume float64           `json:"volume"`
}

// DefaultSettings returns flat gains at unity volume.
func DefaultSettings() Settings {
	return Settings{Volume: 1.0}
}

// ValidBand reports whether the band index addresses one of the seven bands.
func ValidBand(band int) bool {
	return band >= 0 && band < NumBands
}

// ValidGain reports whether a gain value is inside the allowed range.
func ValidGain(gainDB float64) bool {
	return gainDB >= GainMinDB && gainDB <= GainMaxDB
}
