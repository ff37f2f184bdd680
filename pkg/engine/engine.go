// ABOUTME: Playback engine owning the audio goroutine and transport state
// ABOUTME: Routes source blocks through the EQ chain and volume to the output
// Package engine implements the real-time playback pipeline.
//
// One goroutine owns the source, the EQ chain and the output device. Every
// control call is validated synchronously on the caller, then handed to
// that goroutine as a typed command; commands are drained at block
// boundaries, so a parameter change is audible by the start of the next
// block and never tears a block in half. Position and transport state are
// published through atomics and safe to read from any goroutine.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
	"github.com/sidecar-eq/sidecar-go/pkg/audio/output"
	"github.com/sidecar-eq/sidecar-go/pkg/audio/source"
	"github.com/sidecar-eq/sidecar-go/pkg/eq"
)

// Control-surface errors. Mid-stream failures are reported through
// Config.OnError wrapping ErrPlayback instead of being raised across the
// goroutine boundary.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNoTrack          = errors.New("no track loaded")
	ErrClosed           = errors.New("engine closed")
	ErrPlayback         = errors.New("playback failed")
)

// TransportState is the engine's playback state.
type TransportState int32

const (
	Stopped TransportState = iota
	Playing
	Paused
)

func (s TransportState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// DefaultBlockFrames is the per-block frame count; at 44.1kHz one block
// is ~46ms, which is also the worst-case latency for a parameter change.
const DefaultBlockFrames = 2048

// DefaultSampleRate is the canonical engine rate. Sources at other rates
// are resampled before the EQ chain.
const DefaultSampleRate = 44100

// Config holds engine configuration. Callbacks run on the playback
// goroutine and must return quickly; hand heavy work to a channel.
type Config struct {
	BlockFrames int
	SampleRate  int
	Output      output.Output

	// OnTransport fires on every transport state change.
	OnTransport func(TransportState)

	// OnPosition fires once per processed block with position and
	// duration in frames.
	OnPosition func(position, duration int64)

	// OnFinished fires when a track plays to its natural end.
	OnFinished func()

	// OnError fires when playback aborts mid-stream; the error wraps
	// ErrPlayback.
	OnError func(error)
}

// Snapshot is a consistent copy of the engine's observable state.
type Snapshot struct {
	Session    uuid.UUID
	Track      string
	State      TransportState
	Position   int64
	Duration   int64
	SampleRate int
	Channels   int
	Volume     float64
	Gains      [eq.NumBands]float64
	Underruns  int64
}

// Settings extracts the persistable audio shape from a snapshot.
func (s Snapshot) Settings() eq.Settings {
	return eq.Settings{Gains: s.Gains, Volume: s.Volume}
}

type opKind int

const (
	opLoad opKind = iota
	opPlay
	opPause
	opStop
	opSeek
	opSetGain
	opSetVolume
	opClose
)

// command is the value type carried from control callers to the playback
// goroutine. Ordering is the channel's FIFO ordering.
type command struct {
	kind    opKind
	src     source.Source
	chain   *eq.Chain
	track   string
	session uuid.UUID
	frame   int64
	band    int
	gainDB  float64
	volume  float64
	done    chan error
}

type underrunCounter interface {
	Underruns() int64
}

// Engine is the playback engine. Construct with New, release with Close.
type Engine struct {
	cfg      Config
	out      output.Output
	commands chan command
	closed   atomic.Bool

	// sendMu pairs every send with the closed check: Close flips closed
	// under the write lock, so once it proceeds no sender can slip a
	// command in and the channel is safe to close.
	sendMu sync.RWMutex

	// preempt is set by transport commands that obsolete the block being
	// produced. The loop polls it before the blocking output write, so a
	// Stop or Load is not delayed by device back-pressure.
	preempt atomic.Bool

	state    atomic.Int32
	position atomic.Int64
	duration atomic.Int64

	// Everything below is owned by the playback goroutine; snapMu guards
	// the mirror fields read by Status. Critical sections only copy
	// values, never compute or block.
	src     source.Source
	chain   *eq.Chain
	block   []float64
	playing bool // loop-local transport, mirrored into state

	snapMu  sync.Mutex
	track   string
	session uuid.UUID
	gains   [eq.NumBands]float64
	volume  float64
	format  audio.Format
}

// New creates an engine and starts its playback goroutine. The output
// device is opened lazily on the first Load.
func New(cfg Config) *Engine {
	if cfg.BlockFrames <= 0 {
		cfg.BlockFrames = DefaultBlockFrames
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Output == nil {
		cfg.Output = output.NewOto()
	}

	e := &Engine{
		cfg:      cfg,
		out:      cfg.Output,
		commands: make(chan command, 64),
		volume:   1.0,
	}
	go e.loop()
	return e
}

// send enqueues a command unless the engine is closed.
func (e *Engine) send(cmd command) error {
	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	if e.closed.Load() {
		return ErrClosed
	}
	e.commands <- cmd
	return nil
}

// do submits a command and waits for the playback goroutine to apply it.
// The wait is bounded by one block period.
func (e *Engine) do(cmd command) error {
	cmd.done = make(chan error, 1)
	if err := e.send(cmd); err != nil {
		return err
	}
	return <-cmd.done
}

// submit enqueues a command without waiting; used for the parameter path.
func (e *Engine) submit(cmd command) error {
	return e.send(cmd)
}

// Load opens the track, builds a fresh EQ chain for it and installs both.
// Loading implicitly stops current playback first, so a failed load still
// leaves the engine Stopped; parameters survive either way. The engine
// stays Stopped until Play.
func (e *Engine) Load(path string) (uuid.UUID, error) {
	if e.closed.Load() {
		return uuid.Nil, ErrClosed
	}

	e.preempt.Store(true)
	if err := e.do(command{kind: opStop}); err != nil {
		return uuid.Nil, err
	}

	src, err := source.Open(path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load %s: %w", path, err)
	}
	src = source.Resampled(src, e.cfg.SampleRate)

	chain, err := eq.NewChain(src.SampleRate(), src.Channels())
	if err != nil {
		src.Close()
		return uuid.Nil, fmt.Errorf("load %s: %w", path, err)
	}

	session := uuid.New()
	e.preempt.Store(true)
	if err := e.do(command{kind: opLoad, src: src, chain: chain, track: path, session: session}); err != nil {
		src.Close()
		return uuid.Nil, fmt.Errorf("load %s: %w", path, err)
	}
	return session, nil
}

// LoadSource installs a caller-provided source, for synthesized audio or
// custom decoders. Behaves exactly like Load otherwise.
func (e *Engine) LoadSource(src source.Source, name string) (uuid.UUID, error) {
	if e.closed.Load() {
		return uuid.Nil, ErrClosed
	}

	e.preempt.Store(true)
	if err := e.do(command{kind: opStop}); err != nil {
		return uuid.Nil, err
	}

	src = source.Resampled(src, e.cfg.SampleRate)
	chain, err := eq.NewChain(src.SampleRate(), src.Channels())
	if err != nil {
		return uuid.Nil, fmt.Errorf("load %s: %w", name, err)
	}

	session := uuid.New()
	e.preempt.Store(true)
	if err := e.do(command{kind: opLoad, src: src, chain: chain, track: name, session: session}); err != nil {
		return uuid.Nil, fmt.Errorf("load %s: %w", name, err)
	}
	return session, nil
}

// Play starts playback from the beginning when Stopped, or resumes when
// Paused. No-op while Playing.
func (e *Engine) Play() error {
	return e.do(command{kind: opPlay})
}

// Pause suspends playback, retaining position and filter state.
func (e *Engine) Pause() error {
	return e.do(command{kind: opPause})
}

// Stop halts playback, rewinds to the start and clears filter state.
func (e *Engine) Stop() error {
	e.preempt.Store(true)
	return e.do(command{kind: opStop})
}

// Seek repositions playback. Valid whenever a track is loaded; filter
// delay state is cleared so no pre-seek tail bleeds across the jump.
func (e *Engine) Seek(frame int64) error {
	if frame < 0 {
		return ErrInvalidParameter
	}
	e.preempt.Store(true)
	return e.do(command{kind: opSeek, frame: frame})
}

// SetBandGain requests a gain change for one EQ band. The change is
// applied at the next block boundary.
func (e *Engine) SetBandGain(band int, gainDB float64) error {
	if !eq.ValidBand(band) || !eq.ValidGain(gainDB) {
		return ErrInvalidParameter
	}
	return e.submit(command{kind: opSetGain, band: band, gainDB: gainDB})
}

// SetVolume requests a linear volume change in [0, 2]; 1.0 is unity.
func (e *Engine) SetVolume(level float64) error {
	if level < 0 || level > 2.0 {
		return ErrInvalidParameter
	}
	return e.submit(command{kind: opSetVolume, volume: level})
}

// State returns the current transport state.
func (e *Engine) State() TransportState {
	return TransportState(e.state.Load())
}

// Position returns the playback position in frames.
func (e *Engine) Position() int64 {
	return e.position.Load()
}

// Duration returns the loaded track's length in frames.
func (e *Engine) Duration() int64 {
	return e.duration.Load()
}

// Status returns a consistent snapshot of observable engine state.
func (e *Engine) Status() Snapshot {
	e.snapMu.Lock()
	snap := Snapshot{
		Session:    e.session,
		Track:      e.track,
		Volume:     e.volume,
		Gains:      e.gains,
		SampleRate: e.format.SampleRate,
		Channels:   e.format.Channels,
	}
	e.snapMu.Unlock()

	snap.State = e.State()
	snap.Position = e.position.Load()
	snap.Duration = e.duration.Load()
	if uc, ok := e.out.(underrunCounter); ok {
		snap.Underruns = uc.Underruns()
	}
	return snap
}

// Close stops playback, releases the source and output device, and shuts
// down the playback goroutine. The engine cannot be reused afterwards.
func (e *Engine) Close() error {
	e.sendMu.Lock()
	if e.closed.Swap(true) {
		e.sendMu.Unlock()
		return nil
	}
	e.preempt.Store(true)
	cmd := command{kind: opClose, done: make(chan error, 1)}
	e.commands <- cmd
	e.sendMu.Unlock()

	err := <-cmd.done
	// closed was set under the write lock, so no send can race this.
	close(e.commands)
	return err
}
