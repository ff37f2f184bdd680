// ABOUTME: Playback goroutine: block production, command application
// ABOUTME: Implements the transport state machine transitions
package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/sidecar-eq/sidecar-go/pkg/audio"
	"github.com/sidecar-eq/sidecar-go/pkg/audio/source"
)

// loop is the playback goroutine. It alternates between producing blocks
// while Playing and parking on the command channel otherwise. Commands
// are only ever applied between blocks, which is what keeps a block's
// filter coefficients mutually consistent.
func (e *Engine) loop() {
	for {
		if e.playing && e.src != nil {
			if e.drainCommands() {
				break
			}
			// A drained command may have paused or stopped us.
			if !e.playing {
				continue
			}
			e.produceBlock()
		} else {
			cmd := <-e.commands
			if e.apply(cmd) {
				break
			}
		}
	}

	// Answer commands that were already queued when Close won the race.
	// Close closes the channel once the shutdown is acknowledged, so this
	// drain terminates and the goroutine exits.
	for cmd := range e.commands {
		if cmd.done != nil {
			cmd.done <- ErrClosed
		}
	}
}

// drainCommands applies every queued command without blocking. Returns
// true when the engine is closing.
func (e *Engine) drainCommands() bool {
	for {
		select {
		case cmd := <-e.commands:
			if e.apply(cmd) {
				return true
			}
		default:
			return false
		}
	}
}

// produceBlock pulls one block from the source, runs it through the EQ
// chain and volume, and hands it to the output device.
func (e *Engine) produceBlock() {
	n, err := e.src.ReadBlock(e.block)
	if err != nil {
		if errors.Is(err, source.ErrEndOfStream) {
			e.finish()
			return
		}
		e.fail(err)
		return
	}

	samples := e.block[:n*e.chain.Channels()]
	if err := e.chain.ProcessBlock(samples); err != nil {
		e.fail(err)
		return
	}

	vol := e.currentVolume()
	if vol != 1.0 {
		for i, s := range samples {
			samples[i] = audio.Clamp(s * vol)
		}
	}

	// A preempting transport command is queued; this block is already
	// obsolete, so drop it instead of blocking on the device.
	if e.preempt.Load() {
		return
	}

	if err := e.out.Write(samples); err != nil {
		e.fail(err)
		return
	}

	pos := e.position.Add(int64(n))
	if e.cfg.OnPosition != nil {
		e.cfg.OnPosition(pos, e.duration.Load())
	}
}

// finish handles natural end of stream: position stays at the track end,
// filter tails are cleared, and the next Play starts fresh.
func (e *Engine) finish() {
	e.position.Store(e.duration.Load())
	e.chain.Reset()
	e.setTransport(Stopped)
	if e.cfg.OnFinished != nil {
		e.cfg.OnFinished()
	}
}

// fail converts a mid-stream error into a stop with an error report.
// Errors never cross the goroutine boundary as anything but a callback.
func (e *Engine) fail(err error) {
	log.Printf("Playback error: %v", err)
	e.position.Store(0)
	if e.chain != nil {
		e.chain.Reset()
	}
	e.setTransport(Stopped)
	if e.cfg.OnError != nil {
		e.cfg.OnError(fmt.Errorf("%w: %v", ErrPlayback, err))
	}
}

// setTransport updates the published state and notifies.
func (e *Engine) setTransport(s TransportState) {
	e.playing = s == Playing
	prev := TransportState(e.state.Swap(int32(s)))
	if prev != s && e.cfg.OnTransport != nil {
		e.cfg.OnTransport(s)
	}
}

func (e *Engine) currentVolume() float64 {
	e.snapMu.Lock()
	v := e.volume
	e.snapMu.Unlock()
	return v
}

// apply executes one command on the playback goroutine. Returns true
// when the engine should shut down.
func (e *Engine) apply(cmd command) bool {
	var err error

	switch cmd.kind {
	case opLoad:
		e.preempt.Store(false)
		err = e.applyLoad(cmd)

	case opPlay:
		err = e.applyPlay()

	case opPause:
		if e.State() == Playing {
			e.setTransport(Paused)
		}

	case opStop:
		e.preempt.Store(false)
		err = e.applyStop()

	case opSeek:
		e.preempt.Store(false)
		err = e.applySeek(cmd.frame)

	case opSetGain:
		err = e.applyGain(cmd.band, cmd.gainDB)

	case opSetVolume:
		e.snapMu.Lock()
		e.volume = cmd.volume
		e.snapMu.Unlock()

	case opClose:
		if e.src != nil {
			e.src.Close()
			e.src = nil
		}
		e.out.Close()
		e.setTransport(Stopped)
		if cmd.done != nil {
			cmd.done <- nil
		}
		return true
	}

	if cmd.done != nil {
		cmd.done <- err
	}
	return false
}

func (e *Engine) applyLoad(cmd command) error {
	format := audio.Format{SampleRate: cmd.src.SampleRate(), Channels: cmd.src.Channels()}
	if err := e.out.Open(format); err != nil {
		cmd.src.Close()
		return err
	}

	if e.src != nil {
		e.src.Close()
	}
	e.src = cmd.src
	e.chain = cmd.chain
	e.block = make([]float64, e.cfg.BlockFrames*format.Channels)

	// Band gains persist across tracks until the controller overwrites
	// them with the new track's saved settings.
	e.snapMu.Lock()
	gains := e.gains
	e.track = cmd.track
	e.session = cmd.session
	e.format = format
	e.snapMu.Unlock()
	if err := e.chain.SetGains(gains); err != nil {
		return err
	}

	e.position.Store(0)
	e.duration.Store(e.src.Duration())
	e.setTransport(Stopped)

	log.Printf("Loaded track: %s (%dHz, %d channels, %d frames)",
		cmd.track, format.SampleRate, format.Channels, e.src.Duration())
	return nil
}

func (e *Engine) applyPlay() error {
	if e.src == nil {
		return ErrNoTrack
	}

	switch e.State() {
	case Playing:
		return nil
	case Paused:
		e.setTransport(Playing)
		return nil
	default:
		// Fresh start from the beginning.
		if err := e.src.Seek(0); err != nil {
			return err
		}
		e.position.Store(0)
		e.setTransport(Playing)
		return nil
	}
}

func (e *Engine) applyStop() error {
	if e.src == nil {
		return nil
	}
	if err := e.src.Seek(0); err != nil {
		log.Printf("Rewind on stop failed: %v", err)
	}
	e.chain.Reset()
	e.position.Store(0)
	e.setTransport(Stopped)
	return nil
}

func (e *Engine) applySeek(frame int64) error {
	if e.src == nil {
		return ErrNoTrack
	}
	if dur := e.duration.Load(); dur > 0 && frame > dur {
		frame = dur
	}
	if err := e.src.Seek(frame); err != nil {
		return err
	}
	// The jump is discontinuous; without a reset the filter tail from the
	// pre-seek signal smears audibly into the first post-seek block.
	e.chain.Reset()
	e.position.Store(frame)
	return nil
}

func (e *Engine) applyGain(band int, gainDB float64) error {
	e.snapMu.Lock()
	gains := e.gains
	gains[band] = gainDB
	e.gains = gains
	e.snapMu.Unlock()

	if e.chain == nil {
		return nil
	}
	return e.chain.SetGains(gains)
}
