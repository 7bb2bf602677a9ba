package ingest

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aprsbridge/packet"
)

type recordingPublisher struct {
	mu   sync.Mutex
	recs []packet.Record
}

func (r *recordingPublisher) Publish(_ context.Context, rec packet.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *recordingPublisher) records() []packet.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]packet.Record(nil), r.recs...)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

// uiFrame is N0CALL-1 > APRS, UI, PID 0xf0, "!4903.50N/07201.75W-test".
func uiFrame() []byte {
	frame := []byte{
		'N' << 1, '0' << 1, 'C' << 1, 'A' << 1, 'L' << 1, 'L' << 1, 0x62,
		'A' << 1, 'P' << 1, 'R' << 1, 'S' << 1, ' ' << 1, ' ' << 1, 0x61,
		0x03, 0xf0,
	}
	return append(frame, "!4903.50N/07201.75W-test"...)
}

func Test_Pipeline_HandleFrame(t *testing.T) {
	pub := &recordingPublisher{}
	var seen []packet.Record
	p := NewPipeline(pub, quietLogger(),
		WithClock(func() time.Time { return fixedNow }),
		WithObserver(func(rec packet.Record) { seen = append(seen, rec) }),
	)

	rec, ok := p.HandleFrame("test", uiFrame())
	require.True(t, ok)
	assert.Equal(t, "N0CALL-1", rec.From)
	assert.Equal(t, "APRS", rec.To)
	assert.Equal(t, fixedNow, rec.CapturedAt)
	require.NotNil(t, rec.Position)
	assert.Len(t, seen, 1)

	_, ok = p.HandleFrame("test", []byte{0x01, 0x02})
	assert.False(t, ok)
	assert.Len(t, seen, 1)
	assert.Len(t, p.queue, 1)
}

func Test_Pipeline_QueueFullDoesNotBlock(t *testing.T) {
	p := NewPipeline(&recordingPublisher{}, quietLogger(), WithQueueLen(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			p.HandleFrame("test", uiFrame())
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleFrame blocked on a full queue")
	}
	assert.Len(t, p.queue, 1)
}

func Test_Pipeline_RunDeliversInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipeline(pub, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	frame := uiFrame()
	for i := 0; i < 3; i++ {
		frame[len(frame)-1] = byte('a' + i)
		p.HandleFrame("test", frame)
	}

	require.Eventually(t, func() bool { return len(pub.records()) == 3 }, 2*time.Second, 10*time.Millisecond)
	recs := pub.records()
	assert.Equal(t, "!4903.50N/07201.75W-tesa", recs[0].Data)
	assert.Equal(t, "!4903.50N/07201.75W-tesb", recs[1].Data)
	assert.Equal(t, "!4903.50N/07201.75W-tesc", recs[2].Data)
}

func Test_Listener_EndToEnd(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipeline(pub, quietLogger())

	l, err := Listen("127.0.0.1:0", Handle(p), quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx) }()
	go func() { _ = p.Run(ctx) }()

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("junk"))
	require.NoError(t, err)
	_, err = conn.Write(uiFrame())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.records()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "N0CALL-1", pub.records()[0].From)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.NoError(t, l.Close())
}

func Test_Listen_BindFailure(t *testing.T) {
	first, err := Listen("127.0.0.1:0", HandlerFunc(func(string, []byte) {}), quietLogger())
	require.NoError(t, err)
	defer first.Close()

	_, err = Listen(first.Addr().String(), HandlerFunc(func(string, []byte) {}), quietLogger())
	assert.ErrorContains(t, err, "bind udp")
}
