// ABOUTME: Tests for the linear resampler
// ABOUTME: Covers ratio math, interpolation accuracy and chunk continuity
package resample

import (
	"math"
	"testing"
)

func TestUnityRatioPassesThrough(t *testing.T) {
	r := New(44100, 44100, 1)

	input := []float64{0.0, 0.5, 1.0, 0.5, 0.0, -0.5, -1.0, -0.5}
	output := make([]float64, len(input))

	n := r.Resample(input, output)
	// The interpolator reads one frame ahead, so the final frame waits
	// for the next chunk.
	if n != len(input)-1 {
		t.Fatalf("wrote %d samples, want %d", n, len(input)-1)
	}
	for i := 0; i < n; i++ {
		if output[i] != input[i] {
			t.Errorf("sample %d: got %v want %v", i, output[i], input[i])
		}
	}
}

func TestDownsampleHalvesFrameCount(t *testing.T) {
	r := New(48000, 24000, 1)

	input := make([]float64, 480)
	output := make([]float64, 480)

	n := r.Resample(input, output)
	want := r.OutputFramesFor(480)
	if diff := n - want; diff < -1 || diff > 1 {
		t.Errorf("wrote %d frames, want about %d", n, want)
	}
}

func TestInterpolationOfRamp(t *testing.T) {
	// A linear ramp is reproduced exactly by linear interpolation at any
	// ratio, making error measurable without tolerance gymnastics.
	r := New(44100, 48000, 1)

	input := make([]float64, 441)
	for i := range input {
		input[i] = float64(i) / float64(len(input))
	}
	output := make([]float64, 1024)

	n := r.Resample(input, output)
	if n == 0 {
		t.Fatal("no output produced")
	}

	ratio := 44100.0 / 48000.0
	for i := 0; i < n; i++ {
		want := float64(i) * ratio / float64(len(input))
		if math.Abs(output[i]-want) > 1e-9 {
			t.Fatalf("sample %d: got %v want %v", i, output[i], want)
		}
	}
}

func TestInputFramesNeeded(t *testing.T) {
	r := New(48000, 44100, 2)

	in := r.InputFramesNeeded(2048)
	// 2048 output frames at 48000/44100 need ~2229 input frames plus the
	// lookahead frame.
	if in < 2229 || in > 2231 {
		t.Errorf("InputFramesNeeded(2048) = %d", in)
	}
}

func TestChunkSeamContinuity(t *testing.T) {
	// A linear ramp is reproduced exactly by linear interpolation, so any
	// frame skipped at a chunk boundary shows up as a kink in the output.
	r := New(48000, 44100, 1)

	ramp := func(i int) float64 { return float64(i) / 1000.0 }

	chunk1 := make([]float64, 100)
	chunk2 := make([]float64, 100)
	for i := range chunk1 {
		chunk1[i] = ramp(i)
		chunk2[i] = ramp(len(chunk1) + i)
	}

	output := make([]float64, 400)
	n1 := r.Resample(chunk1, output)
	n2 := r.Resample(chunk2, output[n1:])

	ratio := 48000.0 / 44100.0
	for i := 0; i < n1+n2; i++ {
		want := float64(i) * ratio / 1000.0
		if math.Abs(output[i]-want) > 1e-9 {
			t.Fatalf("sample %d (seam at %d): got %v want %v", i, n1, output[i], want)
		}
	}

	// Two 100-frame chunks must yield what one 200-frame chunk would.
	rw := New(48000, 44100, 1)
	whole := make([]float64, 200)
	for i := range whole {
		whole[i] = ramp(i)
	}
	if nw := rw.Resample(whole, make([]float64, 400)); nw != n1+n2 {
		t.Errorf("chunked output %d frames, whole-input output %d", n1+n2, nw)
	}
}

func TestResetClearsPosition(t *testing.T) {
	r := New(44100, 48000, 1)

	input := make([]float64, 100)
	output := make([]float64, 64)
	r.Resample(input, output)

	r.Reset()
	if r.position != 0 {
		t.Errorf("position = %v after Reset", r.position)
	}
	if len(r.buf) != 0 {
		t.Errorf("carried input not cleared by Reset: %d samples", len(r.buf))
	}
}
