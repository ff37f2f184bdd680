// ABOUTME: MP3 file source adapter
// ABOUTME: Decodes with hajimehoshi/go-mp3, which outputs 16-bit stereo
package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
)

// go-mp3 always produces interleaved 16-bit stereo.
const mp3FrameBytes = 4

// mp3Source adapts go-mp3's byte-stream reader. The decoder addresses
// decoded output in bytes, so frame seeks translate to byte offsets.
type mp3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
	total   int64 // frames, 0 when length unknown
	pos     int64 // frames
	scratch []byte
}

func openMP3(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var total int64
	if n := dec.Length(); n > 0 {
		total = n / mp3FrameBytes
	}

	return &mp3Source{
		file:    f,
		decoder: dec,
		format:  audio.Format{SampleRate: dec.SampleRate(), Channels: 2},
		total:   total,
	}, nil
}

func (s *mp3Source) ReadBlock(dst []float64) (int, error) {
	if len(dst)%2 != 0 {
		return 0, fmt.Errorf("%w: block not frame aligned", ErrDecode)
	}

	frames := len(dst) / 2
	need := frames * mp3FrameBytes
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	buf := s.scratch[:need]

	read := 0
	for read < need {
		n, err := s.decoder.Read(buf[read:])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}

	read -= read % mp3FrameBytes
	if read == 0 {
		return 0, ErrEndOfStream
	}

	for i := 0; i < read/2; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		dst[i] = audio.SampleFromInt16(v)
	}

	got := read / mp3FrameBytes
	s.pos += int64(got)
	return got, nil
}

func (s *mp3Source) Seek(frame int64) error {
	if frame < 0 {
		frame = 0
	}
	if s.total > 0 && frame > s.total {
		frame = s.total
	}
	if _, err := s.decoder.Seek(frame*mp3FrameBytes, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	s.pos = frame
	return nil
}

func (s *mp3Source) Position() int64 { return s.pos }
func (s *mp3Source) Duration() int64 { return s.total }
func (s *mp3Source) SampleRate() int { return s.format.SampleRate }
func (s *mp3Source) Channels() int   { return s.format.Channels }

func (s *mp3Source) Close() error {
	return s.file.Close()
}
