// ABOUTME: Resampling wrapper normalizing a source to the engine rate
// ABOUTME: Converts frames, duration and seek positions between rates
package source

import (
	"github.com/sidecar-eq/sidecar-go/pkg/audio/resample"
)

// Resampled wraps src so it appears to run at targetRate. When the native
// rate already matches, src is returned unchanged. Positions, durations
// and seeks on the wrapper are all expressed in target-rate frames.
func Resampled(src Source, targetRate int) Source {
	if src.SampleRate() == targetRate {
		return src
	}
	return &resampledSource{
		src:        src,
		rs:         resample.New(src.SampleRate(), targetRate, src.Channels()),
		targetRate: targetRate,
	}
}

type resampledSource struct {
	src        Source
	rs         *resample.Resampler
	targetRate int
	pos        int64 // target-rate frames
	inBuf      []float64
}

func (s *resampledSource) ReadBlock(dst []float64) (int, error) {
	channels := s.src.Channels()
	outFrames := len(dst) / channels
	if outFrames == 0 {
		return 0, nil
	}

	// The resampler carries unconsumed input internally, so it may need
	// no fresh frames at all for a small output request.
	var got int
	if inFrames := s.rs.InputFramesNeeded(outFrames); inFrames > 0 {
		need := inFrames * channels
		if cap(s.inBuf) < need {
			s.inBuf = make([]float64, need)
		}

		var err error
		got, err = s.src.ReadBlock(s.inBuf[:need])
		if err != nil {
			return 0, err
		}
	}

	n := s.rs.Resample(s.inBuf[:got*channels], dst)
	frames := n / channels
	if frames == 0 {
		return 0, ErrEndOfStream
	}
	s.pos += int64(frames)
	return frames, nil
}

func (s *resampledSource) Seek(frame int64) error {
	srcFrame := frame * int64(s.src.SampleRate()) / int64(s.targetRate)
	if err := s.src.Seek(srcFrame); err != nil {
		return err
	}
	s.rs.Reset()
	s.pos = frame
	return nil
}

func (s *resampledSource) Position() int64 { return s.pos }

func (s *resampledSource) Duration() int64 {
	return s.src.Duration() * int64(s.targetRate) / int64(s.src.SampleRate())
}

func (s *resampledSource) SampleRate() int { return s.targetRate }
func (s *resampledSource) Channels() int   { return s.src.Channels() }

func (s *resampledSource) Close() error {
	return s.src.Close()
}
