// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Callback-pull playback through miniaudio with a ring buffer
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
)

// Malgo output implementation using the miniaudio library. The device
// callback pulls from a ring buffer; Write blocks while the ring is full.
// Callback starvation is counted as an underrun, not an error.
type Malgo struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	ready    bool

	ring      *ringBuffer
	underruns atomic.Int64
}

// NewMalgo creates a miniaudio-backed output.
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open initializes the output device.
func (m *Malgo) Open(format audio.Format) error {
	if m.ready {
		if m.format == format {
			return nil
		}
		m.Close()
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Printf("malgo: %s", message)
	})
	if err != nil {
		return fmt.Errorf("failed to init malgo context: %w", err)
	}

	// Half a second of audio keeps the callback fed across scheduling
	// hiccups without adding perceptible control latency.
	m.ring = newRingBuffer(format.SampleRate * format.Channels / 2)
	m.format = format

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			m.fillCallback(outputSamples, int(frameCount))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to init malgo device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	m.malgoCtx = ctx
	m.device = device
	m.ready = true

	log.Printf("Audio output initialized (malgo): %dHz, %d channels",
		format.SampleRate, format.Channels)

	return nil
}

// fillCallback runs on the device thread. It must not block or allocate;
// a starved ring yields silence and bumps the underrun counter.
func (m *Malgo) fillCallback(out []byte, frameCount int) {
	want := frameCount * m.format.Channels
	got := m.ring.read(out, want)
	if got < want {
		m.underruns.Add(1)
		for i := got * 2; i < len(out); i++ {
			out[i] = 0
		}
	}
}

// Write queues samples, blocking while the ring buffer is full.
func (m *Malgo) Write(samples []float64) error {
	if !m.ready {
		return fmt.Errorf("output not initialized")
	}

	written := 0
	for written < len(samples) {
		n := m.ring.write(samples[written:])
		written += n
		if written < len(samples) {
			time.Sleep(5 * time.Millisecond)
		}
	}
	return nil
}

// Underruns returns how many times the device callback ran dry.
func (m *Malgo) Underruns() int64 {
	return m.underruns.Load()
}

// Close releases output resources.
func (m *Malgo) Close() error {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		_ = m.malgoCtx.Uninit()
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.ready = false
	return nil
}

// ringBuffer is a mutex-guarded circular buffer holding 16-bit samples
// ready for the device callback. The critical sections are memory copies
// only, far below the callback's deadline.
type ringBuffer struct {
	mu      sync.Mutex
	buf     []int16
	readAt  int
	writeAt int
	count   int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]int16, capacity)}
}

// write converts and stores as many samples as fit, returning the count.
func (rb *ringBuffer) write(samples []float64) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(samples) && rb.count < len(rb.buf) {
		rb.buf[rb.writeAt] = audio.SampleToInt16(samples[written])
		rb.writeAt = (rb.writeAt + 1) % len(rb.buf)
		rb.count++
		written++
	}
	return written
}

// read copies up to want samples into out as 16-bit LE bytes, returning
// how many samples were available.
func (rb *ringBuffer) read(out []byte, want int) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < want && rb.count > 0 {
		binary.LittleEndian.PutUint16(out[read*2:], uint16(rb.buf[rb.readAt]))
		rb.readAt = (rb.readAt + 1) % len(rb.buf)
		rb.count--
		read++
	}
	return read
}
