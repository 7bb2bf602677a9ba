// Package monitor is the interactive terminal view of the live feed: a
// station map, a recent-station list and an APRS message bar.
package monitor

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aprsbridge/aprs"
	"aprsbridge/packet"
	"aprsbridge/ui/footer"
	"aprsbridge/ui/header"
	mapview "aprsbridge/ui/map"
	"aprsbridge/ui/msgbar"
	"aprsbridge/ui/sidebar"
)

const sidebarWidth = 24

// ClientCounter reports how many subscribers are connected.
type ClientCounter interface {
	Len() int
}

// Options configure a monitor.
type Options struct {
	Station     string
	Home        *packet.Position
	ShapeFile   string
	DefaultZoom float64
	Clients     ClientCounter
}

// Model holds the application's state
type Model struct {
	width  int
	height int

	headerModel  header.Model
	mapModel     mapview.Model
	msgbarModel  msgbar.Model
	footerModel  footer.Model
	sidebarModel sidebar.Model

	clients ClientCounter
	err     error
}

// New builds the monitor. A shapefile that cannot be loaded is shown as
// an error screen.
func New(opts Options) Model {
	mapMod, err := mapview.New(opts.ShapeFile, opts.Home, opts.DefaultZoom)
	if err != nil {
		return Model{err: err, width: 80, height: 24}
	}

	footerMod := footer.New(opts.ShapeFile)
	footerMod.SetZoom(mapMod.GetZoomLevel())

	return Model{
		width:        80,
		height:       24,
		headerModel:  header.New("APRS Bridge", opts.Station),
		mapModel:     mapMod,
		msgbarModel:  msgbar.New(),
		footerModel:  footerMod,
		sidebarModel: sidebar.New(opts.Home),
		clients:      opts.Clients,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) handleRecord(rec packet.Record) Model {
	m.footerModel.SetLastPacket(rec.From)
	if m.clients != nil {
		m.footerModel.SetClients(m.clients.Len())
	}

	switch kind, msg := aprs.Classify(rec); kind {
	case aprs.KindPosition:
		m.mapModel.Plot(rec)
		m.sidebarModel.AddPacket(rec)
	case aprs.KindMessage:
		m.msgbarModel.Add(*msg)
		m.sidebarModel.AddPacket(rec)
	default:
		m.sidebarModel.AddPacket(rec)
	}
	return m
}

func (m Model) resize(msg tea.WindowSizeMsg) (Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	const headerHeight, footerHeight = 1, 1
	mainHeight := max(1, m.height-headerHeight-msgbar.Height-footerHeight)
	mapWidth := max(1, m.width-sidebarWidth)

	var cmds [5]tea.Cmd
	m.headerModel, cmds[0] = m.headerModel.Update(tea.WindowSizeMsg{Width: m.width, Height: headerHeight})
	m.sidebarModel, cmds[1] = m.sidebarModel.Update(tea.WindowSizeMsg{Width: sidebarWidth, Height: mainHeight})
	m.mapModel, cmds[2] = m.mapModel.Update(tea.WindowSizeMsg{Width: mapWidth, Height: mainHeight})
	m.msgbarModel, cmds[3] = m.msgbarModel.Update(tea.WindowSizeMsg{Width: m.width, Height: msgbar.Height})
	m.footerModel, cmds[4] = m.footerModel.Update(tea.WindowSizeMsg{Width: m.width, Height: footerHeight})
	return m, tea.Batch(cmds[:]...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case packet.Record:
		return m.handleRecord(msg), nil

	case tea.WindowSizeMsg:
		return m.resize(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.mapModel, cmd = m.mapModel.Update(msg)
		m.footerModel.SetZoom(m.mapModel.GetZoomLevel())
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Border(lipgloss.DoubleBorder(), true).
			BorderForeground(lipgloss.Color("9")).
			Padding(1).
			Align(lipgloss.Center, lipgloss.Center)
		return errorStyle.Render("Error:\n\n" + m.err.Error() + "\n\nPress any key to quit.")
	}

	middle := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebarModel.View(),
		m.mapModel.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerModel.View(),
		middle,
		m.msgbarModel.View(),
		m.footerModel.View(),
	)
}

// Sidebar exposes the station list, mainly for tests.
func (m Model) Sidebar() sidebar.Model { return m.sidebarModel }

// Messages exposes the message bar, mainly for tests.
func (m Model) Messages() msgbar.Model { return m.msgbarModel }
