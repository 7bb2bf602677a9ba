package monitor

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"aprsbridge/packet"
)

const feedBuffer = 256

// Program runs the monitor and feeds it records from the ingest path.
type Program struct {
	prog    *tea.Program
	records chan packet.Record
}

func NewProgram(ctx context.Context, opts Options, teaOpts ...tea.ProgramOption) *Program {
	teaOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, teaOpts...)
	return &Program{
		prog:    tea.NewProgram(New(opts), teaOpts...),
		records: make(chan packet.Record, feedBuffer),
	}
}

// Observe queues a record for display. Records are dropped while the
// screen is busy rather than stalling ingest.
func (p *Program) Observe(rec packet.Record) {
	select {
	case p.records <- rec:
	default:
	}
}

// Run blocks until the user quits or the context is cancelled.
func (p *Program) Run() error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case rec := <-p.records:
				p.prog.Send(rec)
			}
		}
	}()

	_, err := p.prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
