// Package ingest turns raw AX.25 frames into records and hands them to
// subscribers without letting delivery stall the receive path.
package ingest

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/charmbracelet/log"

	"aprsbridge/aprs"
	"aprsbridge/packet"
)

const defaultQueueLen = 64

// Publisher delivers a decoded record to subscribers.
type Publisher interface {
	Publish(ctx context.Context, rec packet.Record) error
}

// Observer sees every decoded record on the receive path, e.g. a console
// printer. It must not block.
type Observer func(packet.Record)

// Pipeline decodes frames and queues the resulting records for a single
// delivery goroutine so they reach subscribers in receive order.
type Pipeline struct {
	pub       Publisher
	queue     chan packet.Record
	observers []Observer
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*Pipeline)

// WithObserver adds an observer called for each decoded record.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// WithClock replaces the wall clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithQueueLen sets how many records may wait for delivery.
func WithQueueLen(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queue = make(chan packet.Record, n)
		}
	}
}

func NewPipeline(pub Publisher, logger *log.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	p := &Pipeline{
		pub:    pub,
		queue:  make(chan packet.Record, defaultQueueLen),
		now:    time.Now,
		logger: logger.WithPrefix("ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleFrame decodes one frame received from src. Undecodable frames are
// logged and dropped. It never blocks on delivery.
func (p *Pipeline) HandleFrame(src string, frame []byte) (packet.Record, bool) {
	rec, err := aprs.Decode(frame, p.now())
	if err != nil {
		p.logger.Debug("dropping frame", "src", src, "err", err, "raw", hex.EncodeToString(frame))
		return packet.Record{}, false
	}

	for _, o := range p.observers {
		o(rec)
	}

	select {
	case p.queue <- rec:
	default:
		p.logger.Warn("delivery queue full, record not published", "from", rec.From, "queued", len(p.queue))
	}
	return rec, true
}

// Run delivers queued records until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-p.queue:
			if err := p.pub.Publish(ctx, rec); err != nil {
				p.logger.Error("publish failed", "from", rec.From, "err", err)
			}
		}
	}
}
