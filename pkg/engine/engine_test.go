// ABOUTME: Tests for the playback engine
// ABOUTME: Scripted end-to-end runs against an in-memory source and capture output
package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sidecar-eq/sidecar-go/pkg/audio/output"
	"github.com/sidecar-eq/sidecar-go/pkg/audio/source"
	"github.com/sidecar-eq/sidecar-go/pkg/eq"
)

const testTimeout = 10 * time.Second

// newTestEngine builds an engine over a capture output with a finished
// notification channel.
func newTestEngine(t *testing.T, sampleRate int) (*Engine, *output.Null, chan struct{}) {
	t.Helper()

	out := output.NewNull()
	finished := make(chan struct{}, 4)
	e := New(Config{
		SampleRate: sampleRate,
		Output:     out,
		OnFinished: func() { finished <- struct{}{} },
	})
	t.Cleanup(func() { e.Close() })
	return e, out, finished
}

func waitFinished(t *testing.T, finished chan struct{}) {
	t.Helper()
	select {
	case <-finished:
	case <-time.After(testTimeout):
		t.Fatal("track did not finish in time")
	}
}

// writeWAV builds a minimal 16-bit PCM RIFF file.
func writeWAV(t *testing.T, path string, sampleRate, channels int, frames []int16) {
	t.Helper()

	var data bytes.Buffer
	for _, s := range frames {
		binary.Write(&data, binary.LittleEndian, s)
	}

	blockAlign := channels * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing test WAV: %v", err)
	}
}

func TestPlayWAVToCompletion(t *testing.T) {
	const (
		sampleRate = 44100
		seconds    = 10
	)

	frames := make([]int16, sampleRate*seconds)
	for i := range frames {
		frames[i] = int16(16000 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, sampleRate, 1, frames)

	e, _, finished := newTestEngine(t, sampleRate)

	if _, err := e.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.State() != Stopped {
		t.Fatalf("state after load = %v", e.State())
	}
	if e.Duration() != int64(len(frames)) {
		t.Fatalf("duration = %d, want %d", e.Duration(), len(frames))
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFinished(t, finished)

	if e.State() != Stopped {
		t.Errorf("state after finish = %v, want Stopped", e.State())
	}
	if pos, dur := e.Position(), e.Duration(); pos != dur {
		t.Errorf("position %d != duration %d at end", pos, dur)
	}
}

func TestFlatEQPreservesRMS(t *testing.T) {
	e, out, finished := newTestEngine(t, 44100)

	src := source.NewTone(1000, 0.5, 44100, 1, 44100)
	if _, err := e.LoadSource(src, "tone"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFinished(t, finished)

	got := out.Samples()
	if len(got) != 44100 {
		t.Fatalf("captured %d samples, want 44100", len(got))
	}

	var inSum, outSum float64
	for i, s := range got {
		in := 0.5 * math.Sin(2*math.Pi*1000*float64(i)/44100.0)
		inSum += in * in
		outSum += s * s
	}
	ratioDB := 10 * math.Log10(outSum/inSum)
	if math.Abs(ratioDB) > 0.1 {
		t.Errorf("flat chain altered level by %.3f dB", ratioDB)
	}
}

// slowNull throttles writes so transport commands reliably land while a
// short test track is still mid-flight.
type slowNull struct {
	*output.Null
	delay time.Duration
}

func (s *slowNull) Write(samples []float64) error {
	time.Sleep(s.delay)
	return s.Null.Write(samples)
}

func TestPauseResumeProducesIdenticalOutput(t *testing.T) {
	mkTone := func() source.Source {
		return source.NewTone(440, 0.6, 44100, 2, 44100/2)
	}

	run := func(pause bool) []float64 {
		out := &slowNull{Null: output.NewNull(), delay: 2 * time.Millisecond}
		finished := make(chan struct{}, 4)
		e := New(Config{
			SampleRate: 44100,
			Output:     out,
			OnFinished: func() { finished <- struct{}{} },
		})
		if _, err := e.LoadSource(mkTone(), "tone"); err != nil {
			t.Fatalf("LoadSource: %v", err)
		}
		if err := e.Play(); err != nil {
			t.Fatalf("Play: %v", err)
		}
		if pause {
			if err := e.Pause(); err != nil {
				t.Fatalf("Pause: %v", err)
			}
			if e.State() != Paused {
				t.Fatalf("state = %v, want Paused", e.State())
			}
			posAtPause := e.Position()
			if err := e.Play(); err != nil {
				t.Fatalf("resume: %v", err)
			}
			if got := e.Position(); got < posAtPause {
				t.Fatalf("position moved backwards across pause: %d -> %d", posAtPause, got)
			}
		}
		waitFinished(t, finished)
		e.Close()
		return out.Samples()
	}

	plain := run(false)
	paused := run(true)

	if len(plain) != len(paused) {
		t.Fatalf("lengths differ: %d vs %d", len(plain), len(paused))
	}
	for i := range plain {
		if plain[i] != paused[i] {
			t.Fatalf("outputs diverge at sample %d", i)
		}
	}
}

func TestSetBandGainOutOfRange(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100)

	if _, err := e.LoadSource(source.NewTone(440, 0.5, 44100, 1, 4096), "tone"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if err := e.SetBandGain(0, 5); err != nil {
		t.Fatalf("valid SetBandGain: %v", err)
	}

	// Let the gain land so the rejected call below has a settled value
	// to not disturb.
	deadline := time.Now().Add(testTimeout)
	for e.Status().Gains[0] != 5 {
		if time.Now().After(deadline) {
			t.Fatal("gain change never applied")
		}
		time.Sleep(time.Millisecond)
	}

	tests := []struct {
		name string
		band int
		gain float64
	}{
		{"gain too high", 0, 15.0},
		{"gain too low", 0, -15.0},
		{"band negative", -1, 0},
		{"band too large", eq.NumBands, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.SetBandGain(tt.band, tt.gain); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
		})
	}

	if got := e.Status().Gains[0]; got != 5 {
		t.Errorf("band 0 gain = %v after rejected calls, want 5", got)
	}
}

func TestSetVolumeValidation(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100)

	if err := e.SetVolume(2.5); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("over-range volume: got %v", err)
	}
	if err := e.SetVolume(-0.1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("negative volume: got %v", err)
	}
	if err := e.SetVolume(1.5); err != nil {
		t.Errorf("valid volume rejected: %v", err)
	}
}

func TestSeekResetsFilterState(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100)

	if _, err := e.LoadSource(source.NewTone(60, 0.9, 44100, 1, 44100*4), "tone"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if err := e.SetBandGain(0, 10); err != nil {
		t.Fatalf("SetBandGain: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// Make sure some audio flowed, then park the loop.
	deadline := time.Now().Add(testTimeout)
	for e.Position() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no audio produced")
		}
		time.Sleep(time.Millisecond)
	}
	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if e.chain.Quiescent() {
		t.Fatal("chain should carry state mid-track")
	}

	if err := e.Seek(1000); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !e.chain.Quiescent() {
		t.Error("seek must clear filter delay registers")
	}
	if e.Position() != 1000 {
		t.Errorf("position = %d after seek, want 1000", e.Position())
	}
	if e.State() != Paused {
		t.Errorf("seek changed transport state to %v", e.State())
	}
}

func TestStopRewindsAndClearsState(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100)

	if _, err := e.LoadSource(source.NewTone(440, 0.5, 44100, 1, 44100*4), "tone"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	deadline := time.Now().Add(testTimeout)
	for e.Position() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no audio produced")
		}
		time.Sleep(time.Millisecond)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.State() != Stopped {
		t.Errorf("state = %v, want Stopped", e.State())
	}
	if e.Position() != 0 {
		t.Errorf("position = %d after stop, want 0", e.Position())
	}
	if !e.chain.Quiescent() {
		t.Error("stop must clear filter delay registers")
	}
}

func TestPlayWithoutTrack(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100)

	if err := e.Play(); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Play with no track: got %v, want ErrNoTrack", err)
	}
}

func TestLoadFailureKeepsParameters(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100)

	if _, err := e.LoadSource(source.NewTone(440, 0.5, 44100, 1, 4096), "tone"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if err := e.SetBandGain(2, -7); err != nil {
		t.Fatalf("SetBandGain: %v", err)
	}
	if err := e.SetVolume(0.8); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}

	deadline := time.Now().Add(testTimeout)
	for {
		snap := e.Status()
		if snap.Gains[2] == -7 && snap.Volume == 0.8 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("parameter changes never applied")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := e.Load(filepath.Join(t.TempDir(), "does-not-exist.wav"))
	if !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("Load missing file: got %v, want ErrSourceUnavailable", err)
	}

	snap := e.Status()
	if snap.Gains[2] != -7 {
		t.Errorf("failed load lost band gain: %v", snap.Gains[2])
	}
	if snap.Volume != 0.8 {
		t.Errorf("failed load lost volume: %v", snap.Volume)
	}
	if e.State() != Stopped {
		t.Errorf("state after failed load = %v, want Stopped", e.State())
	}
}

func TestFailedLoadStopsPlayback(t *testing.T) {
	out := &slowNull{Null: output.NewNull(), delay: 2 * time.Millisecond}
	e := New(Config{SampleRate: 44100, Output: out})
	t.Cleanup(func() { e.Close() })

	if _, err := e.LoadSource(source.NewTone(440, 0.5, 44100, 1, 44100*30), "tone"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	deadline := time.Now().Add(testTimeout)
	for e.Position() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no audio produced")
		}
		time.Sleep(time.Millisecond)
	}

	// A load that fails to open must not leave the old track running.
	_, err := e.Load(filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("Load missing file: got %v, want ErrSourceUnavailable", err)
	}
	if e.State() != Stopped {
		t.Errorf("state after failed load = %v, want Stopped", e.State())
	}
	if e.Position() != 0 {
		t.Errorf("position = %d after failed load, want 0", e.Position())
	}
}

// corruptSource reads cleanly for a few blocks, then fails the way a
// decoder does on a damaged file.
type corruptSource struct {
	source.Source
	failAfter int
	reads     int
}

func (c *corruptSource) ReadBlock(dst []float64) (int, error) {
	c.reads++
	if c.reads > c.failAfter {
		return 0, fmt.Errorf("%w: truncated frame", source.ErrDecode)
	}
	return c.Source.ReadBlock(dst)
}

func TestMidStreamDecodeErrorStops(t *testing.T) {
	errs := make(chan error, 4)
	e := New(Config{
		SampleRate: 44100,
		Output:     output.NewNull(),
		OnError:    func(err error) { errs <- err },
	})
	t.Cleanup(func() { e.Close() })

	src := &corruptSource{
		Source:    source.NewTone(440, 0.5, 44100, 1, 44100*10),
		failAfter: 3,
	}
	if _, err := e.LoadSource(src, "damaged"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	var err error
	select {
	case err = <-errs:
	case <-time.After(testTimeout):
		t.Fatal("decode failure never reported")
	}
	if !errors.Is(err, ErrPlayback) {
		t.Errorf("reported error = %v, want ErrPlayback", err)
	}
	if e.State() != Stopped {
		t.Errorf("state after decode failure = %v, want Stopped", e.State())
	}
	if e.Position() != 0 {
		t.Errorf("position = %d after decode failure, want 0", e.Position())
	}
}

func TestCloseReleasesPlaybackGoroutine(t *testing.T) {
	before := runtime.NumGoroutine()

	for i := 0; i < 8; i++ {
		e := New(Config{SampleRate: 44100, Output: output.NewNull()})
		if _, err := e.LoadSource(source.NewTone(440, 0.5, 44100, 1, 4096), "tone"); err != nil {
			t.Fatalf("LoadSource: %v", err)
		}
		if err := e.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := e.Play(); !errors.Is(err, ErrClosed) {
			t.Errorf("Play after close: got %v, want ErrClosed", err)
		}
		if err := e.Close(); err != nil {
			t.Errorf("second Close: %v", err)
		}
	}

	// Every loop goroutine must have exited; allow a little scheduler
	// slack before declaring a leak.
	deadline := time.Now().Add(testTimeout)
	for runtime.NumGoroutine() > before+1 {
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines alive after closing engines, started with %d",
				runtime.NumGoroutine(), before)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestResampledTrackDuration(t *testing.T) {
	// 48k source into a 44.1k engine: duration reported in engine frames.
	e, _, finished := newTestEngine(t, 44100)

	src := source.NewTone(440, 0.5, 48000, 1, 48000)
	if _, err := e.LoadSource(src, "tone48k"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	want := int64(48000) * 44100 / 48000
	if got := e.Duration(); got != want {
		t.Fatalf("duration = %d, want %d", got, want)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFinished(t, finished)
}

func TestSessionChangesPerLoad(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100)

	s1, err := e.LoadSource(source.NewTone(440, 0.5, 44100, 1, 4096), "a")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	s2, err := e.LoadSource(source.NewTone(440, 0.5, 44100, 1, 4096), "b")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if s1 == s2 {
		t.Error("sessions should differ per load")
	}
	if got := e.Status().Session; got != s2 {
		t.Errorf("snapshot session = %v, want %v", got, s2)
	}
}
