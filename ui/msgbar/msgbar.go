package msgbar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aprsbridge/aprs"
)

// Height is the total component height, borders included.
const Height = 7

// Model holds the message bar's state
type Model struct {
	width    int
	height   int
	messages []string // newest first
}

func New() Model {
	return Model{
		width:    80,
		height:   Height,
		messages: make([]string, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Add records a message. Telemetry definitions are skipped.
func (m *Model) Add(msg aprs.Message) bool {
	if msg.IsTelemetry() {
		return false
	}
	line := fmt.Sprintf("%s>%s: %s", msg.From, msg.To, msg.Body)
	m.messages = append([]string{line}, m.messages...)

	if maxMessages := Height - 2; len(m.messages) > maxMessages {
		m.messages = m.messages[:maxMessages]
	}
	return true
}

// Lines returns the stored messages, newest first.
func (m Model) Lines() []string {
	return append([]string(nil), m.messages...)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = Height
	case aprs.Message:
		m.Add(msg)
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

	contentWidth := max(0, m.width-2-2)
	numMessages := max(0, m.height-2)

	var b strings.Builder
	for i := 0; i < numMessages; i++ {
		// oldest at the top, in arrival order
		if idx := len(m.messages) - 1 - i; idx >= 0 {
			line := m.messages[idx]
			if len(line) > contentWidth {
				line = line[:contentWidth]
			}
			b.WriteString(line)
		}
		if i < numMessages-1 {
			b.WriteRune('\n')
		}
	}

	return style.Render(b.String())
}
