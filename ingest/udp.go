package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
)

// maxDatagram is the largest UDP payload we will read.
const maxDatagram = 65535

// FrameHandler consumes one raw frame. Use Handle to adapt a Pipeline.
type FrameHandler interface {
	HandleFrame(src string, frame []byte)
}

// HandlerFunc adapts a function to FrameHandler.
type HandlerFunc func(src string, frame []byte)

func (f HandlerFunc) HandleFrame(src string, frame []byte) { f(src, frame) }

// Handle adapts a Pipeline to FrameHandler.
func Handle(p *Pipeline) FrameHandler {
	return HandlerFunc(func(src string, frame []byte) {
		p.HandleFrame(src, frame)
	})
}

// Listener receives one candidate frame per UDP datagram.
type Listener struct {
	conn    *net.UDPConn
	handler FrameHandler
	logger  *log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Listen binds addr. A bind failure is returned to the caller, which is
// expected to treat it as fatal.
func Listen(addr string, handler FrameHandler, logger *log.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind udp %s: %w", addr, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Listener{
		conn:    conn,
		handler: handler,
		logger:  logger.WithPrefix("udp"),
	}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run reads datagrams until ctx is done or the listener is closed.
// Frames are handled one at a time in arrival order.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	l.logger.Info("listening for APRS frames", "addr", l.Addr())

	buf := make([]byte, maxDatagram)
	for {
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.logger.Info("udp socket closed")
				return nil
			}
			l.logger.Warn("receive error", "err", err)
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])
		l.handler.HandleFrame(src.String(), frame)
	}
}

// Close releases the socket. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}
