// Package console prints decoded records as fixed-width table rows.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"aprsbridge/aprs"
	"aprsbridge/packet"
)

const (
	headerEvery  = 20
	minDataWidth = 20
	defaultWidth = 80
)

type column struct {
	name  string
	width int
}

var columns = []column{
	{"Date", 10},
	{"Time", 8},
	{"From", 12},
	{"To", 12},
	{"Via", 12},
	{"Type", 6},
	{"PID", 6},
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	callStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	posStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Printer writes one row per record and repeats the header every 20 rows.
// It is safe for concurrent use.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	width func() int
	rows  int

	home    packet.Position
	hasHome bool
}

// New returns a printer for out. home, if non-nil, adds a distance
// column to rows that carry a position.
func New(out io.Writer, home *packet.Position) *Printer {
	p := &Printer{out: out, width: terminalWidth}
	if home != nil {
		p.home = *home
		p.hasHome = true
	}
	return p
}

func terminalWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func (p *Printer) dataWidth() int {
	fixed := 0
	for _, c := range columns {
		fixed += c.width + 3
	}
	return max(minDataWidth, p.width()-fixed-2)
}

// Print writes rec, preceded by the header when due.
func (p *Printer) Print(rec packet.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dw := p.dataWidth()
	if p.rows%headerEvery == 0 {
		fmt.Fprintln(p.out, headerStyle.Render(p.header(dw)))
	}
	fmt.Fprintln(p.out, p.row(rec, dw))
	p.rows++
}

func (p *Printer) header(dw int) string {
	fields := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		fields = append(fields, pad(c.name, c.width))
	}
	fields = append(fields, pad("Data", dw))
	return strings.Join(fields, "   ")
}

func (p *Printer) row(rec packet.Record, dw int) string {
	values := []string{
		rec.Date(), rec.Clock(), rec.From, rec.To, rec.Via, rec.Type.String(), rec.ProtocolID(),
	}
	fields := make([]string, 0, len(columns)+1)
	for i, c := range columns {
		cell := pad(values[i], c.width)
		if c.name == "From" {
			cell = callStyle.Render(cell)
		}
		fields = append(fields, cell)
	}

	data := rec.Data
	if rec.HasPosition() {
		data = fmt.Sprintf("[%.4f, %.4f] %s", rec.Position.Lat, rec.Position.Lon, data)
		if p.hasHome {
			data = fmt.Sprintf("%.0fkm %s", aprs.DistanceKm(p.home, *rec.Position), data)
		}
	}
	data = truncate(data, dw)
	if rec.HasPosition() {
		data = posStyle.Render(data)
	}
	fields = append(fields, data)
	return strings.Join(fields, "   ")
}

// pad cuts s to w characters and pads it with spaces.
func pad(s string, w int) string {
	if len(s) > w {
		return s[:w]
	}
	return s + strings.Repeat(" ", w-len(s))
}

// truncate shortens s to w characters, marking the cut with "...".
func truncate(s string, w int) string {
	if len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-3] + "..."
}
