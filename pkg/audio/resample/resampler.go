// ABOUTME: Linear-interpolation resampler for canonical float64 audio
// ABOUTME: Converts interleaved frames between input and output sample rates
package resample

// Resampler performs linear interpolation to convert between sample rates.
// Input arrives in arbitrary chunks; frames the interpolator cannot finish
// with (it needs each frame's right-hand neighbor) carry over internally,
// so consecutive calls behave exactly like one call over the concatenated
// input.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64 // input frames consumed per output frame
	position   float64 // fractional read position into buf, in frames

	// buf holds input not yet fully consumed: the carried tail of the
	// previous chunk plus the current chunk.
	buf []float64
}

// New creates a resampler converting inputRate to outputRate.
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts interleaved input samples to the output rate, writing
// into output. Both slices are interleaved at the resampler's channel
// count. Returns the number of output samples written, which may be less
// than len(output) when input runs short.
func (r *Resampler) Resample(input, output []float64) int {
	r.buf = append(r.buf, input...)

	inputFrames := len(r.buf) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputIdx := int(r.position)

		// Need inputIdx+1 for interpolation; out of input, stop.
		if inputIdx >= inputFrames-1 {
			break
		}

		frac := r.position - float64(inputIdx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := r.buf[inputIdx*r.channels+ch]
			s2 := r.buf[(inputIdx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = s1*(1.0-frac) + s2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Drop fully consumed frames and keep the tail for the next chunk.
	consumed := int(r.position)
	if consumed > inputFrames {
		consumed = inputFrames
	}
	if consumed > 0 {
		kept := copy(r.buf, r.buf[consumed*r.channels:])
		r.buf = r.buf[:kept]
		r.position -= float64(consumed)
	}

	return outIdx * r.channels
}

// Reset clears the fractional read position and the carried input tail,
// for use after a seek.
func (r *Resampler) Reset() {
	r.position = 0.0
	r.buf = r.buf[:0]
}

// InputFramesNeeded returns how many fresh input frames should be supplied
// to produce outputFrames frames, accounting for carried-over input and
// the extra frame the interpolator reads ahead.
func (r *Resampler) InputFramesNeeded(outputFrames int) int {
	buffered := len(r.buf) / r.channels
	need := int(float64(outputFrames)*r.ratio+r.position) + 1 - buffered
	if need < 0 {
		need = 0
	}
	return need
}

// OutputFramesFor returns roughly how many output frames a given number
// of input frames will yield.
func (r *Resampler) OutputFramesFor(inputFrames int) int {
	return int(float64(inputFrames) / r.ratio)
}
