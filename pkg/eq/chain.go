// ABOUTME: Cascaded biquad chain for the 7-band equalizer
// ABOUTME: Handles per-block processing, gain swaps and headroom compensation
package eq

import (
	"fmt"
	"math"

	"github.com/sidecar-eq/sidecar-go/pkg/dsp"
)

// Chain is the ordered cascade of seven peaking filters, one biquad per
// band per channel. It is built for a single (sample rate, channel count)
// pair; a different source format needs a new chain.
//
// Chain is not safe for concurrent use. The playback engine owns it and
// touches it only from the playback goroutine; gain changes arrive there
// through the engine's command queue and are applied between blocks.
type Chain struct {
	sampleRate int
	channels   int

	// filters[band][channel]; coefficients are shared per band by value,
	// delay state is per channel.
	filters [NumBands][]*dsp.Biquad
	gains   [NumBands]float64

	// headroom is the linear attenuation compensating the largest boosted
	// band. A gain change moves headroomTarget; ProcessBlock ramps the
	// applied value across one block so the level step itself cannot click.
	headroom       float64
	headroomTarget float64
}

// NewChain builds a flat chain for the given format.
func NewChain(sampleRate, channels int) (*Chain, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid chain format: %dHz %dch", sampleRate, channels)
	}

	c := &Chain{
		sampleRate:     sampleRate,
		channels:       channels,
		headroom:       1.0,
		headroomTarget: 1.0,
	}

	for band := 0; band < NumBands; band++ {
		coef, err := dsp.DesignPeakingEQ(BandFrequencies[band], BandQ, sampleRate, 0)
		if err != nil {
			return nil, fmt.Errorf("band %d (%.0f Hz) design failed: %w", band, BandFrequencies[band], err)
		}
		c.filters[band] = make([]*dsp.Biquad, channels)
		for ch := 0; ch < channels; ch++ {
			c.filters[band][ch] = dsp.NewBiquad(coef)
		}
	}

	return c, nil
}

// SampleRate returns the rate the chain was designed for.
func (c *Chain) SampleRate() int { return c.sampleRate }

// Channels returns the channel count the chain was built for.
func (c *Chain) Channels() int { return c.channels }

// Gains returns the currently applied band gains in dB.
func (c *Chain) Gains() [NumBands]float64 { return c.gains }

// SetGains applies a new set of band gains. Only bands whose gain actually
// changed get their coefficients redesigned, and delay state is preserved
// so the transition does not click. Called at most once per block.
func (c *Chain) SetGains(gains [NumBands]float64) error {
	for band := 0; band < NumBands; band++ {
		if gains[band] == c.gains[band] {
			continue
		}
		coef, err := dsp.DesignPeakingEQ(BandFrequencies[band], BandQ, c.sampleRate, gains[band])
		if err != nil {
			return fmt.Errorf("band %d redesign failed: %w", band, err)
		}
		for ch := 0; ch < c.channels; ch++ {
			c.filters[band][ch].SetCoefficients(coef)
		}
		c.gains[band] = gains[band]
	}

	c.headroomTarget = headroomFor(c.gains)
	return nil
}

// headroomFor returns the linear attenuation reserved against the largest
// boosted band. Peaking bells at distinct center frequencies do not sum
// fully, so compensating the single largest boost keeps the composite
// response at or under unity in practice; the hard clamp in ProcessBlock
// guards the residual overlap between neighboring bands.
func headroomFor(gains [NumBands]float64) float64 {
	var maxBoost float64
	for _, g := range gains {
		if g > maxBoost {
			maxBoost = g
		}
	}
	if maxBoost == 0 {
		return 1.0
	}
	return math.Pow(10.0, -maxBoost/20.0)
}

// Headroom returns the post-cascade attenuation factor the chain is
// ramping toward.
func (c *Chain) Headroom() float64 { return c.headroomTarget }

// ProcessBlock runs an interleaved block through the cascade in place.
// Band 0 feeds band 1 and so on through band 6, then headroom attenuation
// and a final clamp keep every sample inside [-1, +1].
func (c *Chain) ProcessBlock(block []float64) error {
	if len(block)%c.channels != 0 {
		return ErrChannelMismatch
	}

	frames := len(block) / c.channels
	if frames == 0 {
		return nil
	}

	// Ramp the applied headroom to its target across this block.
	step := (c.headroomTarget - c.headroom) / float64(frames)

	gain := c.headroom
	for i := 0; i < frames; i++ {
		gain += step
		for ch := 0; ch < c.channels; ch++ {
			s := block[i*c.channels+ch]
			for band := 0; band < NumBands; band++ {
				s = c.filters[band][ch].ProcessSample(s)
			}
			s *= gain
			if s > 1.0 {
				s = 1.0
			} else if s < -1.0 {
				s = -1.0
			}
			block[i*c.channels+ch] = s
		}
	}
	c.headroom = c.headroomTarget

	return nil
}

// Reset zeroes every filter's delay registers. Used on seek, stop and
// track change so filter tails never bleed across a discontinuity.
func (c *Chain) Reset() {
	for band := 0; band < NumBands; band++ {
		for ch := 0; ch < c.channels; ch++ {
			c.filters[band][ch].Reset()
		}
	}
	// The output is discontinuous anyway, so snap the headroom ramp.
	c.headroom = c.headroomTarget
}

// Quiescent reports whether every delay register in the cascade is zero.
func (c *Chain) Quiescent() bool {
	for band := 0; band < NumBands; band++ {
		for ch := 0; ch < c.channels; ch++ {
			if !c.filters[band][ch].Quiescent() {
				return false
			}
		}
	}
	return true
}
