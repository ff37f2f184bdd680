// ABOUTME: Tests for canonical PCM types
// ABOUTME: Covers sample conversion and frame/time arithmetic
package audio

import (
	"testing"
	"time"
)

func TestSampleToInt16Range(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int16
	}{
		{"silence", 0.0, 0},
		{"full scale positive", 1.0, 32767},
		{"full scale negative", -1.0, -32768},
		{"over range clamps", 1.5, 32767},
		{"under range clamps", -1.5, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleToInt16(tt.in); got != tt.want {
				t.Errorf("SampleToInt16(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSampleRoundTrip(t *testing.T) {
	for _, v := range []float64{0.0, 0.25, -0.25, 0.9, -0.9} {
		back := SampleFromInt16(SampleToInt16(v))
		if diff := back - v; diff > 0.001 || diff < -0.001 {
			t.Errorf("round trip of %v produced %v", v, back)
		}
	}
}

func TestSampleFromIntDepths(t *testing.T) {
	if got := SampleFromInt(8388607, 24); got < 0.999 || got > 1.0 {
		t.Errorf("24-bit full scale = %v", got)
	}
	if got := SampleFromInt(-32768, 16); got != -1.0 {
		t.Errorf("16-bit min = %v, want -1.0", got)
	}
}

func TestFrameDurationConversion(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2}

	if d := f.FramesToDuration(44100); d != time.Second {
		t.Errorf("44100 frames = %v, want 1s", d)
	}
	if n := f.DurationToFrames(time.Second); n != 44100 {
		t.Errorf("1s = %d frames, want 44100", n)
	}
	if n := f.DurationToFrames(f.FramesToDuration(12345)); n != 12345 {
		t.Errorf("round trip = %d frames, want 12345", n)
	}
}

func TestBlockBytes(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2}
	if got := f.BlockBytes(2048); got != 2048*2*2 {
		t.Errorf("BlockBytes = %d", got)
	}
}
