package aprsis

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aprsbridge/config"
	"aprsbridge/packet"
)

func igateConfig(server string) config.Config {
	conf := config.Default()
	conf.Station.Callsign = "N0CALL"
	conf.IGate = config.IGateConfig{
		Enabled:       true,
		Server:        server,
		Passcode:      13023,
		RetryInterval: 20 * time.Millisecond,
	}
	return conf
}

func aprsRecord(data string) packet.Record {
	return packet.Record{
		From: "N0CALL-1",
		To:   "APRS",
		Via:  "WIDE1-1",
		Type: packet.TypeUI,
		PID:  0xf0,
		Data: data,
	}
}

func Test_NewUplink_Passcode(t *testing.T) {
	logger := log.New(io.Discard)

	_, err := NewUplink(igateConfig("localhost:14580"), logger)
	require.NoError(t, err)

	conf := igateConfig("localhost:14580")
	conf.IGate.Passcode = -1
	_, err = NewUplink(conf, logger)
	assert.ErrorContains(t, err, "does not match")

	conf.Station.Callsign = ""
	_, err = NewUplink(conf, logger)
	assert.ErrorContains(t, err, "callsign missing")
}

func Test_FormatTNC2(t *testing.T) {
	rec := aprsRecord("!4903.50N/07201.75W-")
	assert.Equal(t, "N0CALL-1>APRS,WIDE1-1,qAR,N0CALL:!4903.50N/07201.75W-", FormatTNC2(rec, "N0CALL"))

	rec.Via = ""
	assert.Equal(t, "N0CALL-1>APRS,qAR,N0CALL:!4903.50N/07201.75W-", FormatTNC2(rec, "N0CALL"))
}

func Test_Observe_Filters(t *testing.T) {
	u, err := NewUplink(igateConfig("localhost:14580"), log.New(io.Discard))
	require.NoError(t, err)

	notUI := aprsRecord("hello")
	notUI.Type = packet.TypeUnknown
	u.Observe(notUI)

	u.Observe(aprsRecord(""))
	assert.Empty(t, u.queue)

	u.Observe(aprsRecord(">status"))
	require.Len(t, u.queue, 1)
	assert.Equal(t, "N0CALL-1>APRS,WIDE1-1,qAR,N0CALL:>status", <-u.queue)
}

// fakeServer accepts one connection, answers the login with verdict and
// sends every line it receives afterwards to lines.
func fakeServer(t *testing.T, verdict string) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	lines := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)

		login, err := r.ReadString('\n')
		if err != nil {
			return
		}
		lines <- strings.TrimSpace(login)
		io.WriteString(conn, "# aprsc 2.1.14\r\n")
		io.WriteString(conn, "# logresp N0CALL "+verdict+", server T2TEST\r\n")

		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(line)
		}
	}()
	return ln.Addr().String(), lines
}

func receive(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case l := <-lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func Test_Run_Gates(t *testing.T) {
	addr, lines := fakeServer(t, "verified")
	u, err := NewUplink(igateConfig(addr), log.New(io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()

	assert.Equal(t, "user N0CALL pass 13023 vers aprsbridge 0.1", receive(t, lines))

	u.Observe(aprsRecord("!4903.50N/07201.75W-"))
	assert.Equal(t, "N0CALL-1>APRS,WIDE1-1,qAR,N0CALL:!4903.50N/07201.75W-", receive(t, lines))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func Test_login_Unverified(t *testing.T) {
	addr, _ := fakeServer(t, "unverified")
	u, err := NewUplink(igateConfig(addr), log.New(io.Discard))
	require.NoError(t, err)

	err = u.session(context.Background())
	assert.ErrorContains(t, err, "not verified")
}
