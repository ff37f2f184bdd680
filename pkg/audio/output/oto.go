// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams 16-bit PCM through a persistent pipe-fed oto player
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
)

// oto allows one context per process and cannot change channel counts
// after creation. The device is therefore always opened stereo; mono
// sources are duplicated across both channels at the write boundary.
const otoChannels = 2

// Oto output implementation using the oto library. A pipe feeds one
// persistent player, so Write blocks with the device's own back-pressure
// and the playback loop needs no timer of its own.
type Oto struct {
	otoCtx      *oto.Context
	player      *oto.Player
	pipeReader  *io.PipeReader
	pipeWriter  *io.PipeWriter
	sampleRate  int
	srcChannels int
	ready       bool
}

// NewOto creates an oto-backed output.
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the output device. The engine resamples sources to one
// target rate, so reopening only ever changes the source channel count;
// a sample-rate change is a caller bug worth surfacing.
func (o *Oto) Open(format audio.Format) error {
	if format.Channels < 1 || format.Channels > otoChannels {
		return fmt.Errorf("oto output supports 1 or 2 channels, got %d", format.Channels)
	}

	if o.otoCtx != nil {
		if o.sampleRate != format.SampleRate {
			return fmt.Errorf("oto cannot change sample rate: %dHz already open, %dHz requested",
				o.sampleRate, format.SampleRate)
		}
		o.srcChannels = format.Channels
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: otoChannels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = format.SampleRate
	o.srcChannels = format.Channels

	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channel device",
		format.SampleRate, otoChannels)

	return nil
}

// Write converts canonical samples to device bytes and feeds the pipe,
// blocking until the device side consumes them.
func (o *Oto) Write(samples []float64) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	buf := stereoInt16LE(samples, o.srcChannels)
	if _, err := o.pipeWriter.Write(buf); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// stereoInt16LE converts canonical interleaved samples to stereo 16-bit
// little-endian bytes, duplicating each mono frame across both device
// channels.
func stereoInt16LE(samples []float64, channels int) []byte {
	if channels == otoChannels {
		buf := make([]byte, len(samples)*2)
		for i, s := range samples {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(audio.SampleToInt16(s)))
		}
		return buf
	}

	buf := make([]byte, len(samples)*otoChannels*2)
	for i, s := range samples {
		v := uint16(audio.SampleToInt16(s))
		binary.LittleEndian.PutUint16(buf[i*4:], v)
		binary.LittleEndian.PutUint16(buf[i*4+2:], v)
	}
	return buf
}

// Close releases output resources.
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	return nil
}
