package sidebar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aprsbridge/aprs"
	"aprsbridge/packet"
)

type entry struct {
	callsign string
	distance float64 // km, negative when unknown
}

// Model holds the sidebar's state
type Model struct {
	width   int
	height  int
	packets []entry

	home    packet.Position
	hasHome bool
}

// New creates a sidebar. home, if non-nil, enables distance display.
func New(home *packet.Position) Model {
	m := Model{
		width:   20,
		height:  24,
		packets: make([]entry, 0),
	}
	if home != nil {
		m.home = *home
		m.hasHome = true
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) maxPackets() int {
	// -2 borders, -1 header line
	return max(1, m.height-3)
}

// AddPacket moves the record's station to the top of the list.
func (m *Model) AddPacket(rec packet.Record) {
	e := entry{callsign: rec.From, distance: -1}
	if m.hasHome && rec.HasPosition() {
		e.distance = aprs.DistanceKm(m.home, *rec.Position)
	}

	list := make([]entry, 0, len(m.packets)+1)
	list = append(list, e)
	for _, p := range m.packets {
		if p.callsign != e.callsign {
			list = append(list, p)
		}
	}
	m.packets = list

	if len(m.packets) > m.maxPackets() {
		m.packets = m.packets[:m.maxPackets()]
	}
}

// Callsigns returns the listed stations, most recent first.
func (m Model) Callsigns() []string {
	out := make([]string, len(m.packets))
	for i, p := range m.packets {
		out[i] = p.callsign
	}
	return out
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if len(m.packets) > m.maxPackets() {
			m.packets = m.packets[:m.maxPackets()]
		}
	}
	return m, nil
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width - 2).
		Height(m.height - 2).
		Padding(0, 1)

	inner := max(0, m.width-2-2)
	header := lipgloss.NewStyle().
		Bold(true).
		Underline(true).
		Width(inner).
		Render("Last Stations")

	var b strings.Builder
	b.WriteString(header)

	// Rows left under the header, so the box never grows vertically.
	contentHeight := (m.height - 2) - 1
	for i, p := range m.packets {
		if i >= contentHeight {
			break
		}
		line := p.callsign
		if p.distance >= 0 {
			line = fmt.Sprintf("%s %.0fkm", p.callsign, p.distance)
		}
		b.WriteRune('\n')
		b.WriteString(fmt.Sprintf("%.*s", inner, line))
	}

	return style.Render(b.String())
}
