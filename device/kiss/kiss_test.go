package kiss

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"aprsbridge/config"
	"aprsbridge/ingest"
)

func Test_ReadFrame(t *testing.T) {
	var stream = []byte{
		0x01, 0x02, // noise before the first FEND
		FEND, FEND, // empty frame
		FEND, 0x00, 'h', FESC, TFEND, 'i', FESC, TFESC, FEND,
		FEND, 0x06, 0x01, FEND,
	}
	d := NewDecoder(bytes.NewReader(stream))

	frame, err := d.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 'h', FEND, 'i', FESC}, frame)

	frame, err = d.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06, 0x01}, frame)

	_, err = d.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func Test_EncodeDecode_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var ax25 = rapid.SliceOfN(rapid.Byte(), 1, 300).Draw(t, "ax25")
		var port = rapid.IntRange(0, 15).Draw(t, "port")

		frame, err := NewDecoder(bytes.NewReader(Encode(port, ax25))).ReadFrame()
		require.NoError(t, err)

		gotPort, got, ok := DataFrame(frame)
		require.True(t, ok)
		assert.Equal(t, port, gotPort)
		assert.Equal(t, ax25, got)
	})
}

func Test_DataFrame(t *testing.T) {
	_, _, ok := DataFrame([]byte{0x01, 0x10})
	assert.False(t, ok, "TXDELAY command")

	_, _, ok = DataFrame([]byte{0x00})
	assert.False(t, ok, "empty data frame")

	port, ax25, ok := DataFrame([]byte{0x20, 0xAA})
	assert.True(t, ok)
	assert.Equal(t, 2, port)
	assert.Equal(t, []byte{0xAA}, ax25)
}

func Test_Connect_UnknownType(t *testing.T) {
	_, err := Connect(config.InterfaceConfig{Type: "AGW", Device: "x:1"}, log.New(io.Discard))
	assert.Error(t, err)
}

func Test_Client_Run(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte{FEND, 0x01, 0x32, FEND})
		_, _ = conn.Write(Encode(0, []byte("first")))
		_, _ = conn.Write(Encode(1, []byte("second")))
	}()

	c, err := Connect(config.InterfaceConfig{Type: "kiss", Device: ln.Addr().String()}, log.New(io.Discard))
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		frames []string
		srcs   []string
	)
	handler := ingest.HandlerFunc(func(src string, frame []byte) {
		mu.Lock()
		defer mu.Unlock()
		frames = append(frames, string(frame))
		srcs = append(srcs, src)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx, handler))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, frames)
	assert.Equal(t, "kiss:"+ln.Addr().String()+"/1", srcs[1])
}

func Test_NewClient_Pipe(t *testing.T) {
	tnc, host := net.Pipe()
	go func() {
		defer tnc.Close()
		_, _ = tnc.Write(Encode(3, []byte("over the pipe")))
	}()

	c := NewClient(host, "pipe", log.New(io.Discard))
	defer c.Close()

	var got []string
	handler := ingest.HandlerFunc(func(src string, frame []byte) {
		got = append(got, src+" "+string(frame))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx, handler))
	assert.Equal(t, []string{"kiss:pipe/3 over the pipe"}, got)
}
