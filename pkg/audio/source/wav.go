// ABOUTME: WAV file source adapter
// ABOUTME: Validates headers with go-audio/wav and reads PCM frames directly
package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
)

// wavSource reads PCM frames straight out of the data chunk. The header
// is parsed and validated with go-audio/wav; frame reads bypass the
// decoder so Seek is a single file seek instead of a re-parse.
type wavSource struct {
	file      *os.File
	format    audio.Format
	bitDepth  int
	dataStart int64
	total     int64 // frames
	pos       int64 // frames
	scratch   []byte
}

func openWAV(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFormat)
	}

	var fm *gaudio.Format
	fm = d.Format()
	if fm == nil || fm.SampleRate <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: WAV header carries no format", ErrDecode)
	}

	bitDepth := int(d.BitDepth)
	channels := fm.NumChannels
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		f.Close()
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, bitDepth)
	}
	if channels != 1 && channels != 2 {
		f.Close()
		return nil, fmt.Errorf("%w: %d-channel WAV", ErrUnsupportedFormat, channels)
	}

	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// The decoder reads unbuffered, so the file offset now sits at the
	// first PCM byte.
	dataStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	frameBytes := channels * bitDepth / 8
	return &wavSource{
		file:      f,
		format:    audio.Format{SampleRate: fm.SampleRate, Channels: channels},
		bitDepth:  bitDepth,
		dataStart: dataStart,
		total:     int64(d.PCMSize) / int64(frameBytes),
	}, nil
}

func (s *wavSource) frameBytes() int {
	return s.format.Channels * s.bitDepth / 8
}

func (s *wavSource) ReadBlock(dst []float64) (int, error) {
	if len(dst)%s.format.Channels != 0 {
		return 0, fmt.Errorf("%w: block not frame aligned", ErrDecode)
	}
	if s.pos >= s.total {
		return 0, ErrEndOfStream
	}

	frames := len(dst) / s.format.Channels
	if remaining := s.total - s.pos; int64(frames) > remaining {
		frames = int(remaining)
	}

	need := frames * s.frameBytes()
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	buf := s.scratch[:need]

	if _, err := io.ReadFull(s.file, buf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bytesPer := s.bitDepth / 8
	n := frames * s.format.Channels
	for i := 0; i < n; i++ {
		off := i * bytesPer
		var v int
		switch s.bitDepth {
		case 16:
			v = int(int16(binary.LittleEndian.Uint16(buf[off:])))
		case 24:
			u := int32(buf[off]) | int32(buf[off+1])<<8 | int32(buf[off+2])<<16
			if u&0x800000 != 0 {
				u |= ^int32(0xFFFFFF)
			}
			v = int(u)
		case 32:
			v = int(int32(binary.LittleEndian.Uint32(buf[off:])))
		}
		dst[i] = audio.SampleFromInt(v, s.bitDepth)
	}

	s.pos += int64(frames)
	return frames, nil
}

func (s *wavSource) Seek(frame int64) error {
	if frame < 0 {
		frame = 0
	}
	if frame > s.total {
		frame = s.total
	}
	if _, err := s.file.Seek(s.dataStart+frame*int64(s.frameBytes()), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	s.pos = frame
	return nil
}

func (s *wavSource) Position() int64 { return s.pos }
func (s *wavSource) Duration() int64 { return s.total }
func (s *wavSource) SampleRate() int { return s.format.SampleRate }
func (s *wavSource) Channels() int   { return s.format.Channels }

func (s *wavSource) Close() error {
	return s.file.Close()
}
