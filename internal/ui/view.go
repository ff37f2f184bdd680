// ABOUTME: View rendering for the player TUI
// ABOUTME: Draws transport, position, EQ bands and volume with lipgloss
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sidecar-eq/sidecar-go/pkg/eq"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	faintStyle = lipgloss.NewStyle().Faint(true)
)

var bandLabels = [eq.NumBands]string{"60", "150", "400", "1k", "2.4k", "6k", "15k"}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Closing player...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Sidecar EQ"))
	b.WriteString("\n\n")

	b.WriteString(m.renderTransport())
	b.WriteString(m.renderPosition())
	b.WriteString("\n")
	b.WriteString(m.renderBands())
	b.WriteString("\n")
	b.WriteString(m.renderVolume())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

// renderTransport renders the track name and playback state
func (m Model) renderTransport() string {
	track := m.status.Track
	if track == "" {
		track = "(no track)"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Track: "))
	b.WriteString(valueStyle.Render(truncate(track, 60)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("State: "))
	b.WriteString(valueStyle.Render(m.status.State.String()))
	if m.status.Underruns > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("  (%d underruns)", m.status.Underruns)))
	}
	b.WriteString("\n")
	return b.String()
}

// renderPosition renders the progress bar and timestamps
func (m Model) renderPosition() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Pos:   "))
	b.WriteString(fmt.Sprintf("[%s] %s / %s\n",
		renderBar(m.status.Position, m.status.Duration, 30),
		formatTime(m.status.Position, m.status.SampleRate),
		formatTime(m.status.Duration, m.status.SampleRate)))
	return b.String()
}

// renderBands renders one line per EQ band with the selection marker
func (m Model) renderBands() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Equalizer"))
	b.WriteString("\n")

	for band := 0; band < eq.NumBands; band++ {
		line := fmt.Sprintf("  %-5s %s %+5.1f dB",
			bandLabels[band]+"Hz",
			renderGainBar(m.gains[band], 21),
			m.gains[band])
		if band == m.selected {
			b.WriteString(selectedStyle.Render("> " + line[2:]))
		} else {
			b.WriteString(valueStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderVolume renders the volume bar
func (m Model) renderVolume() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Vol:   "))
	b.WriteString(fmt.Sprintf("[%s] %d%%", renderBar(int64(m.volume), 100, 10), m.volume))
	if !m.savedAt.IsZero() && time.Since(m.savedAt) < 2*time.Second {
		b.WriteString(selectedStyle.Render("  settings saved"))
	}
	b.WriteString("\n")
	return b.String()
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return faintStyle.Render(
		"space:Play/Pause  s:Stop  ←/→:Seek  ↑/↓:Band  +/-:Gain  0:Flat  [/]:Volume  w:Save  q:Quit") + "\n"
}

// renderBar draws a filled/empty progress bar
func renderBar(value, max int64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(value * int64(width) / max)
		if filled > width {
			filled = width
		}
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// renderGainBar draws a bar centered on 0 dB: cut fills left of center,
// boost fills right. Width must be odd so the center cell exists.
func renderGainBar(gainDB float64, width int) string {
	center := width / 2
	span := eq.GainMaxDB
	cells := int(gainDB / span * float64(center))

	bar := []rune(strings.Repeat("·", width))
	bar[center] = '|'
	if cells > 0 {
		for i := 1; i <= cells; i++ {
			bar[center+i] = '█'
		}
	} else if cells < 0 {
		for i := 1; i <= -cells; i++ {
			bar[center-i] = '█'
		}
	}
	return string(bar)
}

func formatTime(frames int64, sampleRate int) string {
	if sampleRate <= 0 {
		return "--:--"
	}
	secs := int(frames / int64(sampleRate))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
