package main

import (
	"fmt"
	"io"
	"sync"
)

const maxHeldLines = 1000

// screenWriter passes log output through to w except while the monitor
// owns the terminal. Lines written in the meantime are held, up to
// maxHeldLines, and written out once the terminal is released.
type screenWriter struct {
	mu      sync.Mutex
	w       io.Writer
	paused  bool
	held    [][]byte
	dropped int
}

func newScreenWriter(w io.Writer) *screenWriter {
	return &screenWriter{w: w}
}

func (s *screenWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return s.w.Write(p)
	}
	if len(s.held) >= maxHeldLines {
		s.dropped++
		return len(p), nil
	}
	s.held = append(s.held, append([]byte(nil), p...))
	return len(p), nil
}

// Pause starts holding output.
func (s *screenWriter) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume writes out everything held and passes output through again.
func (s *screenWriter) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = false
	for _, line := range s.held {
		_, _ = s.w.Write(line)
	}
	if s.dropped > 0 {
		fmt.Fprintf(s.w, "%d log lines dropped while the monitor was running\n", s.dropped)
	}
	s.held = nil
	s.dropped = 0
}
