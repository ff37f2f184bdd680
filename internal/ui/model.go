// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Defines application state, key handling and update logic
package ui

import (
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sidecar-eq/sidecar-go/pkg/engine"
	"github.com/sidecar-eq/sidecar-go/pkg/eq"
)

// Player is the control surface the TUI drives. *app.Controller satisfies
// it; tests substitute a fake.
type Player interface {
	TogglePlay() error
	Stop() error
	Seek(frame int64) error
	SetBandGain(band int, gainDB float64) error
	SetVolume(level float64) error
	SaveSettings() error
	Status() engine.Snapshot
}

const (
	statusInterval = 100 * time.Millisecond
	seekStep       = 5 * time.Second
	gainStep       = 1.0
	volumeStep     = 5
)

// Model represents the TUI state
type Model struct {
	player Player

	// Playback, refreshed from the engine on every tick
	status engine.Snapshot

	// Locally tracked control values so repeated keypresses step from
	// the value just requested, not the engine's last-published mirror
	gains  [eq.NumBands]float64
	volume int // percent, 0-100

	// UI
	selected int // selected EQ band
	savedAt  time.Time
	quitting bool

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// StatusMsg refreshes the playback display from an engine snapshot.
type StatusMsg engine.Snapshot

// NewModel creates a new TUI model
func NewModel(player Player) Model {
	m := Model{
		player: player,
		volume: 100,
	}
	if player != nil {
		m.applyStatus(StatusMsg(player.Status()))
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.player != nil {
			m.applyStatus(StatusMsg(m.player.Status()))
		}
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case " ":
		m.control(m.player.TogglePlay)
	case "s":
		m.control(m.player.Stop)

	case "left":
		m.seekBy(-seekStep)
	case "right":
		m.seekBy(seekStep)

	case "tab", "down":
		m.selected = (m.selected + 1) % eq.NumBands
	case "shift+tab", "up":
		m.selected = (m.selected + eq.NumBands - 1) % eq.NumBands
	case "1", "2", "3", "4", "5", "6", "7":
		m.selected = int(msg.String()[0] - '1')

	case "+", "=":
		m = m.setGain(m.gains[m.selected] + gainStep)
	case "-":
		m = m.setGain(m.gains[m.selected] - gainStep)
	case "0":
		m = m.setGain(0)

	case "[":
		m = m.adjustVolume(-volumeStep)
	case "]":
		m = m.adjustVolume(volumeStep)

	case "w":
		if err := m.player.SaveSettings(); err != nil {
			log.Printf("Save settings failed: %v", err)
		} else {
			m.savedAt = time.Now()
		}
	}

	return m, nil
}

func (m Model) control(op func() error) {
	if err := op(); err != nil {
		log.Printf("Transport command failed: %v", err)
	}
}

func (m Model) seekBy(delta time.Duration) {
	rate := m.status.SampleRate
	if rate <= 0 {
		return
	}
	frame := m.status.Position + int64(delta.Seconds()*float64(rate))
	if frame < 0 {
		frame = 0
	}
	if err := m.player.Seek(frame); err != nil {
		log.Printf("Seek failed: %v", err)
	}
}

func (m Model) setGain(gainDB float64) Model {
	if gainDB < eq.GainMinDB {
		gainDB = eq.GainMinDB
	}
	if gainDB > eq.GainMaxDB {
		gainDB = eq.GainMaxDB
	}
	if err := m.player.SetBandGain(m.selected, gainDB); err != nil {
		log.Printf("Set gain failed: %v", err)
		return m
	}
	m.gains[m.selected] = gainDB
	return m
}

func (m Model) adjustVolume(delta int) Model {
	v := m.volume + delta
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	if err := m.player.SetVolume(float64(v) / 100.0); err != nil {
		log.Printf("Set volume failed: %v", err)
		return m
	}
	m.volume = v
	return m
}

// applyStatus updates model from an engine snapshot
func (m *Model) applyStatus(msg StatusMsg) {
	m.status = engine.Snapshot(msg)
	m.gains = m.status.Gains
	m.volume = int(m.status.Volume*100 + 0.5)
}
