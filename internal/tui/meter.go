// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"levelmeter/internal/meter"
	"levelmeter/internal/refresh"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth    = 3
	labelWidth  = 5
	chromeLines = 5 // Title, blank, port numbers, status, help
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))
)

// scaleLabels name the reference levels, indexed like meter levels.
var scaleLabels = [meter.LevelCount]string{"0", "-3", "-6", "-10", "-20"}

type tickMsg time.Time

type meterKeys struct {
	Reset   key.Binding
	Falloff key.Binding
	Quit    key.Binding
}

func (k meterKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Reset, k.Falloff, k.Quit}
}

func (k meterKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultMeterKeys = meterKeys{
	Reset:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset peaks")),
	Falloff: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "toggle falloff")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// MeterModel is the Bubble Tea model drawing one vertical bar per port.
// Its tick drives the refresher, so the model goroutine is the meter's
// single consumer while the UI runs.
type MeterModel struct {
	refresher *refresh.Refresher
	interval  time.Duration
	title     string

	snap   *meter.Snapshot
	width  int
	height int

	keys  meterKeys
	help  help.Model
	cells [RoleCount]string // Pre-rendered lit cells per role
	peak  string
	back  string
	fore  lipgloss.Style
}

// NewMeterModel creates a model that steps r every interval.
func NewMeterModel(r *refresh.Refresher, title string, palette Palette) MeterModel {
	m := MeterModel{
		refresher: r,
		interval:  r.Interval(),
		title:     title,
		keys:      defaultMeterKeys,
		help:      help.New(),
		fore:      lipgloss.NewStyle().Foreground(palette.Color(RoleFore)),
	}

	block := strings.Repeat("█", barWidth-1) + " "
	for role := range RoleCount {
		m.cells[role] = lipgloss.NewStyle().Foreground(palette.Color(role)).Render(block)
	}
	m.peak = m.fore.Render(strings.Repeat("▔", barWidth-1) + " ")
	m.back = lipgloss.NewStyle().Foreground(palette.Color(RoleBack)).Render(strings.Repeat("·", barWidth-1) + " ")

	return m
}

func (m MeterModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh clock.
func (m MeterModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes and keys.
func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.refresher.Step(time.Time(msg))
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.refresher.Resize(float64(m.barRows()))

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			m.refresher.ResetPeak()
		case key.Matches(msg, m.keys.Falloff):
			m.refresher.TogglePeakFalloff()
		}
	}

	return m, nil
}

// barRows is the meter extent for the current window.
func (m MeterModel) barRows() int {
	return max(m.height-chromeLines, 1)
}

// View renders the UI
func (m MeterModel) View() string {
	if m.snap == nil || m.height == 0 {
		return "Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderBars())
	sb.WriteString(m.renderFooter())
	return sb.String()
}

// renderBars draws rows top down. Rows 0..value-1 are lit and the peak line
// sits on row peak-1.
func (m MeterModel) renderBars() string {
	snap := m.snap
	rows := int(snap.Scale)
	var sb strings.Builder

	for y := rows - 1; y >= 0; y-- {
		sb.WriteString(m.label(y))
		role := RoleForBand(meter.ClassifyPosition(y, snap.Levels))

		for _, p := range snap.Ports {
			switch {
			case p.Peak > 0 && y == min(p.Peak, rows-1):
				sb.WriteString(m.peak)
			case y < p.Value:
				sb.WriteString(m.cells[role])
			default:
				sb.WriteString(m.back)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// label returns the scale column for row y.
func (m MeterModel) label(y int) string {
	for i, level := range m.snap.Levels {
		if level > 0 && y == level-1 {
			return m.fore.Render(fmt.Sprintf("%*s ", labelWidth-1, scaleLabels[i]))
		}
	}
	return strings.Repeat(" ", labelWidth)
}

func (m MeterModel) renderFooter() string {
	var sb strings.Builder

	sb.WriteString(strings.Repeat(" ", labelWidth))
	for i := range m.snap.Ports {
		sb.WriteString(fmt.Sprintf("%-*d", barWidth, i+1))
	}
	sb.WriteByte('\n')

	falloff := "on"
	if !m.snap.PeakFalloff {
		falloff = "off"
	}
	sb.WriteString(infoStyle.Render(fmt.Sprintf("peak falloff: %s • frame %d", falloff, m.snap.Seq)))
	sb.WriteByte('\n')
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// RunMeter launches the meter UI and blocks until the user quits.
func RunMeter(r *refresh.Refresher, title string) error {
	p := tea.NewProgram(
		NewMeterModel(r, title, DefaultPalette),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
