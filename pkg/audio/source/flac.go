// ABOUTME: FLAC file source adapter
// ABOUTME: Decodes with mewkiz/flac, buffering partial frames between blocks
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
)

// flacSource decodes FLAC frame by frame. A decoded frame rarely lines up
// with the requested block size, so leftover samples carry over in pending.
type flacSource struct {
	file     *os.File
	stream   *flac.Stream
	format   audio.Format
	bitDepth int
	total    int64 // frames
	pos      int64 // frames

	pending []float64 // interleaved, not yet consumed
}

func openFLAC(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	if channels != 1 && channels != 2 {
		f.Close()
		return nil, fmt.Errorf("%w: %d-channel FLAC", ErrUnsupportedFormat, channels)
	}

	return &flacSource{
		file:     f,
		stream:   stream,
		format:   audio.Format{SampleRate: int(info.SampleRate), Channels: channels},
		bitDepth: int(info.BitsPerSample),
		total:    int64(info.NSamples),
	}, nil
}

// decodeNext parses one FLAC frame into pending.
func (s *flacSource) decodeNext() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return ErrEndOfStream
		}
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	blockSize := int(frame.BlockSize)
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < s.format.Channels; ch++ {
			v := frame.Subframes[ch].Samples[i]
			s.pending = append(s.pending, audio.SampleFromInt(int(v), s.bitDepth))
		}
	}
	return nil
}

func (s *flacSource) ReadBlock(dst []float64) (int, error) {
	if len(dst)%s.format.Channels != 0 {
		return 0, fmt.Errorf("%w: block not frame aligned", ErrDecode)
	}

	for len(s.pending) < len(dst) {
		if err := s.decodeNext(); err != nil {
			if err == ErrEndOfStream {
				break
			}
			return 0, err
		}
	}

	n := copy(dst, s.pending)
	n -= n % s.format.Channels
	s.pending = s.pending[n:]

	frames := n / s.format.Channels
	if frames == 0 {
		return 0, ErrEndOfStream
	}
	s.pos += int64(frames)
	return frames, nil
}

func (s *flacSource) Seek(frame int64) error {
	if frame < 0 {
		frame = 0
	}
	if frame > s.total {
		frame = s.total
	}

	// stream.Seek lands on the containing frame boundary; decode and drop
	// up to the exact sample.
	actual, err := s.stream.Seek(uint64(frame))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	s.pending = s.pending[:0]
	s.pos = int64(actual)

	for s.pos < frame {
		if err := s.decodeNext(); err != nil {
			if err == ErrEndOfStream {
				break
			}
			return err
		}
		skip := frame - s.pos
		avail := int64(len(s.pending) / s.format.Channels)
		if skip > avail {
			skip = avail
		}
		s.pending = s.pending[skip*int64(s.format.Channels):]
		s.pos += skip
	}
	return nil
}

func (s *flacSource) Position() int64 { return s.pos }
func (s *flacSource) Duration() int64 { return s.total }
func (s *flacSource) SampleRate() int { return s.format.SampleRate }
func (s *flacSource) Channels() int   { return s.format.Channels }

func (s *flacSource) Close() error {
	return s.file.Close()
}
