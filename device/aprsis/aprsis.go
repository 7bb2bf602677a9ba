// Package aprsis gates decoded APRS traffic to an APRS-IS server.
package aprsis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"aprsbridge/aprs"
	"aprsbridge/config"
	"aprsbridge/packet"
)

const (
	appName      = "aprsbridge"
	appVersion   = "0.1"
	queueLen     = 128
	loginTimeout = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Uplink logs in to APRS-IS and forwards every received APRS frame in
// TNC2 text form, reconnecting after failures.
type Uplink struct {
	server   string
	callsign string
	passcode int
	retry    time.Duration

	queue  chan string
	dial   func(ctx context.Context, addr string) (net.Conn, error)
	logger *log.Logger
}

// NewUplink checks the station callsign and passcode. Gating needs a
// verified login, so a wrong passcode is an error here.
func NewUplink(conf config.Config, logger *log.Logger) (*Uplink, error) {
	callsign := strings.ToUpper(conf.Station.Callsign)
	if callsign == "" {
		return nil, fmt.Errorf("callsign missing in config for APRS-IS")
	}
	want, err := aprs.CalculatePasscode(callsign)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate passcode: %w", err)
	}
	if conf.IGate.Passcode != want {
		return nil, fmt.Errorf("passcode %d does not match callsign %s", conf.IGate.Passcode, callsign)
	}
	if logger == nil {
		logger = log.Default()
	}

	d := net.Dialer{Timeout: 15 * time.Second}
	return &Uplink{
		server:   conf.IGate.Server,
		callsign: callsign,
		passcode: conf.IGate.Passcode,
		retry:    conf.IGate.RetryInterval,
		queue:    make(chan string, queueLen),
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		},
		logger: logger.WithPrefix("aprsis"),
	}, nil
}

// FormatTNC2 renders a record as an APRS-IS line gated by igate.
// Example: N0CALL-1>APRS,WIDE1-1,qAR,IGATE:!4903.50N/07201.75W-
func FormatTNC2(rec packet.Record, igate string) string {
	path := rec.To
	if rec.Via != "" {
		path += "," + rec.Via
	}
	return fmt.Sprintf("%s>%s,qAR,%s:%s", rec.From, path, igate, rec.Data)
}

// Observe queues a record for upload. Non-APRS frames, empty payloads
// and records arriving while the queue is full are skipped.
func (u *Uplink) Observe(rec packet.Record) {
	if !aprs.IsAPRS(rec) || rec.Data == "" || rec.From == "" {
		return
	}
	select {
	case u.queue <- FormatTNC2(rec, u.callsign):
	default:
		u.logger.Warn("upload queue full, dropping", "from", rec.From)
	}
}

// Run keeps a session open until ctx is done.
func (u *Uplink) Run(ctx context.Context) error {
	for {
		err := u.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		u.logger.Warn("APRS-IS session ended", "server", u.server, "err", err, "retry", u.retry)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(u.retry):
		}
	}
}

func (u *Uplink) session(ctx context.Context) error {
	u.logger.Info("connecting to APRS-IS", "server", u.server)
	conn, err := u.dial(ctx, u.server)
	if err != nil {
		return fmt.Errorf("failed to connect to APRS-IS server %s: %w", u.server, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	if err := u.login(conn, reader); err != nil {
		return fmt.Errorf("APRS-IS login failed: %w", err)
	}
	u.logger.Info("APRS-IS login verified", "server", conn.RemoteAddr(), "callsign", u.callsign)

	// Server comments and keepalives are read and discarded so a dead
	// connection is noticed even when nothing is being sent.
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				readErr <- err
				return
			}
			u.logger.Debug("server", "line", strings.TrimSpace(line))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("connection closed by server")
			}
			return err
		case line := <-u.queue:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if _, err := io.WriteString(conn, line+"\r\n"); err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			u.logger.Debug("gated", "line", line)
		}
	}
}

// login sends the login string and waits for the server's verdict.
func (u *Uplink) login(conn net.Conn, reader *bufio.Reader) error {
	loginStr := fmt.Sprintf("user %s pass %d vers %s %s\r\n", u.callsign, u.passcode, appName, appVersion)
	if _, err := io.WriteString(conn, loginStr); err != nil {
		return fmt.Errorf("failed to send login string: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(loginTimeout)); err != nil {
		return err
	}
	defer conn.SetReadDeadline(time.Time{})

	for {
		lineBytes, err := reader.ReadBytes('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("timeout waiting for login response from server")
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("connection closed unexpectedly during login")
			}
			return fmt.Errorf("error reading login response: %w", err)
		}
		line := strings.TrimSpace(string(lineBytes))

		// # logresp <callsign> verified|unverified, server <serverid>
		if !strings.HasPrefix(line, "# logresp ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			return fmt.Errorf("malformed login response: %s", line)
		}
		if !strings.EqualFold(parts[2], u.callsign) {
			return fmt.Errorf("login response callsign mismatch: expected %s, got %s", u.callsign, parts[2])
		}
		if !strings.HasPrefix(parts[3], "verified") {
			return fmt.Errorf("login not verified: %s", parts[3])
		}
		return nil
	}
}
