package kiss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"aprsbridge/config"
	"aprsbridge/ingest"
)

// Client represents an active connection to a KISS TNC
type Client struct {
	conn   io.ReadWriteCloser // TCP or serial
	device string
	logger *log.Logger

	closeOnce sync.Once
}

// Connect opens the TNC named by the interface config. A device with a
// colon is dialed over TCP, anything else is opened as a serial port.
func Connect(conf config.InterfaceConfig, logger *log.Logger) (*Client, error) {
	if !strings.EqualFold(conf.Type, "KISS") {
		return nil, fmt.Errorf("unknown interface type: %s", conf.Type)
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("kiss")

	var (
		conn io.ReadWriteCloser
		err  error
	)
	if strings.Contains(conf.Device, ":") {
		logger.Info("connecting to KISS TNC over TCP", "addr", conf.Device)
		conn, err = connectTCP(conf.Device)
	} else {
		logger.Info("opening KISS TNC serial port", "device", conf.Device, "baud", conf.Baud)
		conn, err = connectSerial(conf.Device, conf.Baud)
	}
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn, device: conf.Device, logger: logger}, nil
}

// NewClient wraps an already open connection.
func NewClient(conn io.ReadWriteCloser, device string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{conn: conn, device: device, logger: logger.WithPrefix("kiss")}
}

// Run reads KISS frames and passes every data frame's AX.25 contents to
// handler until the connection closes or ctx is done.
func (c *Client) Run(ctx context.Context, handler ingest.FrameHandler) error {
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	decoder := NewDecoder(c.conn)
	for {
		frame, err := decoder.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.logger.Info("KISS connection closed", "device", c.device)
				return nil
			}
			return fmt.Errorf("read KISS frame from %s: %w", c.device, err)
		}

		port, ax25, ok := DataFrame(frame)
		if !ok {
			c.logger.Debug("ignoring non-data KISS frame", "cmd", fmt.Sprintf("0x%02x", frame[0]))
			continue
		}
		handler.HandleFrame(fmt.Sprintf("kiss:%s/%d", c.device, port), ax25)
	}
}

// Close disconnects the client
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
