// ABOUTME: Second-order IIR filter building block
// ABOUTME: Provides peaking-EQ coefficient design and Direct Form I processing
// Package dsp provides the biquad filter primitives behind the equalizer.
//
// Coefficient design follows the Audio EQ Cookbook peaking-filter formulas
// and is computed in float64 throughout, independent of the sample
// representation upstream.
package dsp

import (
	"errors"
	"math"
)

// ErrInvalidFilterParameter indicates a filter design request outside the
// stable region (non-positive Q, or a center frequency at or beyond Nyquist).
var ErrInvalidFilterParameter = errors.New("invalid filter parameter")

// Coefficients holds one a0-normalized biquad coefficient set.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity returns coefficients that pass samples through unchanged.
func Identity() Coefficients {
	return Coefficients{B0: 1.0}
}

// DesignPeakingEQ computes peaking-EQ biquad coefficients for the given
// center frequency, Q, sample rate and gain in dB. The result is normalized
// so a0 = 1. A gain of 0 dB yields the identity filter.
func DesignPeakingEQ(centerHz, q float64, sampleRateHz int, gainDB float64) (Coefficients, error) {
	nyquist := float64(sampleRateHz) / 2.0
	if centerHz <= 0 || centerHz >= nyquist {
		return Coefficients{}, ErrInvalidFilterParameter
	}
	if q <= 0 {
		return Coefficients{}, ErrInvalidFilterParameter
	}

	w0 := 2.0 * math.Pi * centerHz / float64(sampleRateHz)
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)
	a := math.Pow(10.0, gainDB/40.0)

	b0 := 1.0 + alpha*a
	b1 := -2.0 * cosw0
	b2 := 1.0 - alpha*a
	a0 := 1.0 + alpha/a
	a1 := -2.0 * cosw0
	a2 := 1.0 - alpha/a

	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}, nil
}

// Biquad is a single second-order filter stage with Direct Form I state.
// Each audio channel needs its own Biquad; coefficients may be shared by
// value but delay registers must not be.
type Biquad struct {
	coef Coefficients

	x1, x2 float64
	y1, y2 float64
}

// NewBiquad creates a filter stage with the given coefficients and
// zeroed delay registers.
func NewBiquad(coef Coefficients) *Biquad {
	return &Biquad{coef: coef}
}

// ProcessSample filters one sample and shifts the delay registers.
func (f *Biquad) ProcessSample(x float64) float64 {
	y := f.coef.B0*x + f.coef.B1*f.x1 + f.coef.B2*f.x2 -
		f.coef.A1*f.y1 - f.coef.A2*f.y2

	f.x2 = f.x1
	f.x1 = x
	f.y2 = f.y1
	f.y1 = y

	return y
}

// SetCoefficients replaces the coefficient set without touching delay state.
// Preserving state across a gain change is what keeps the transition
// click-free; Reset is only for discontinuities like seek or stop.
func (f *Biquad) SetCoefficients(coef Coefficients) {
	f.coef = coef
}

// Coefficients returns the active coefficient set.
func (f *Biquad) Coefficients() Coefficients {
	return f.coef
}

// Reset zeroes the delay registers.
func (f *Biquad) Reset() {
	f.x1, f.x2 = 0, 0
	f.y1, f.y2 = 0, 0
}

// Quiescent reports whether all delay registers are zero.
func (f *Biquad) Quiescent() bool {
	return f.x1 == 0 && f.x2 == 0 && f.y1 == 0 && f.y2 == 0
}
