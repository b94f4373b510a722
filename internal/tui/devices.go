package tui

import (
	"fmt"
	"strings"

	"levelmeter/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var highlightStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#25A065")).
	Bold(true)

// commonSampleRates are offered after a device is chosen.
var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	Channels   int
	SampleRate float64
	Confirmed  bool
}

// DeviceListModel lets the user pick an input device and sample rate.
type DeviceListModel struct {
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	sampleRateIndex int
	selection       Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a picker over the given devices. Devices
// without inputs are not listed.
func NewDeviceListModel(devices []audio.Device) DeviceListModel {
	return DeviceListModel{activeScreen: ListScreen, devices: inputDevices(devices)}
}

func inputDevices(devices []audio.Device) []audio.Device {
	var inputs []audio.Device
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return inputs
}

// Init fetches the host devices when none were given.
func (m DeviceListModel) Init() tea.Cmd {
	if len(m.devices) > 0 {
		return nil
	}
	return fetchDevices
}

func fetchDevices() tea.Msg {
	devices, err := audio.HostDevices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

// Selection returns the confirmed choice, if any.
func (m DeviceListModel) Selection() Selection {
	return m.selection
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = inputDevices(msg.devices)
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen
					m.sampleRateIndex = nearestRate(m.devices[m.selectedIndex].DefaultSampleRate)
				}
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
				m.activeScreen = ListScreen
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.sampleRateIndex < len(commonSampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				device := m.devices[m.selectedIndex]
				m.selection = Selection{
					DeviceID:   device.ID,
					Channels:   device.MaxInputChannels,
					SampleRate: commonSampleRates[m.sampleRateIndex],
					Confirmed:  true,
				}
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// nearestRate returns the index of the offered rate closest to rate.
func nearestRate(rate float64) int {
	best := 0
	for i, r := range commonSampleRates {
		if abs(r-rate) < abs(commonSampleRates[best]-rate) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string

	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Choose • q: Quit")
	} else {
		title = titleStyle.Render("Sample Rate")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Start metering • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s\n", device.ID, device.Name)
		deviceInfo += fmt.Sprintf("    Input channels: %d\n", device.MaxInputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderDeviceConfig formats the sample rate screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	sb.WriteString(fmt.Sprintf("Device: %s (%d inputs)\n\n", device.Name, device.MaxInputChannels))
	sb.WriteString("Sample Rate:\n")

	for i, rate := range commonSampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)

		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}

		sb.WriteString(line)
	}

	return sb.String()
}

// PickDevice runs the picker over the host devices and returns the choice.
// Selection.Confirmed is false when the user quit without choosing.
func PickDevice() (Selection, error) {
	p := tea.NewProgram(
		NewDeviceListModel(nil),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return Selection{}, err
	}
	return final.(DeviceListModel).Selection(), nil
}
