package footer

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the footer's state
type Model struct {
	width      int
	mapName    string
	lastPacket string
	zoom       float64
	clients    int
	frames     int
}

// New creates a footer. shapePath may be empty when no map is loaded.
func New(shapePath string) Model {
	name := "no map"
	if shapePath != "" {
		name = filepath.Base(shapePath)
	}
	return Model{width: 80, mapName: name, zoom: 1.0}
}

func (m *Model) SetLastPacket(callsign string) {
	m.lastPacket = callsign
	m.frames++
}

func (m *Model) SetZoom(zoom float64) { m.zoom = zoom }

func (m *Model) SetClients(n int) { m.clients = n }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
	}
	return m, nil
}

func (m Model) View() string {
	last := m.lastPacket
	if last == "" {
		last = "-"
	}
	text := fmt.Sprintf(" last: %s | frames: %d | clients: %d | zoom: %.1fx | %s | q quit, arrows pan, K/L zoom, r reset",
		last, m.frames, m.clients, m.zoom, m.mapName)

	style := lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("250")).
		Width(m.width).
		MaxHeight(1)

	return style.Render(text)
}
