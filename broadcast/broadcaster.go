// Package broadcast fans decoded records out to live subscriber sessions.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"aprsbridge/packet"
)

// Subscriber is one open connection that wants every decoded record.
// Send must return once ctx is done. Close may be called more than once.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// Broadcaster keeps the live subscriber set and delivers each record to
// every member concurrently. A subscriber whose send fails is evicted
// and closed without affecting the others.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]Subscriber

	sendTimeout time.Duration
	logger      *log.Logger
}

func New(sendTimeout time.Duration, logger *log.Logger) *Broadcaster {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{
		subs:        make(map[string]Subscriber),
		sendTimeout: sendTimeout,
		logger:      logger.WithPrefix("broadcast"),
	}
}

// Add registers a subscriber and returns the new subscriber count.
func (b *Broadcaster) Add(s Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[s.ID()] = s
	return len(b.subs)
}

// Remove drops a subscriber. It reports whether the subscriber was still
// present and the remaining count.
func (b *Broadcaster) Remove(id string) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[id]
	delete(b.subs, id)
	return ok, len(b.subs)
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Has reports whether id is in the live set.
func (b *Broadcaster) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subs[id]
	return ok
}

func (b *Broadcaster) snapshot() []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	return subs
}

// Publish encodes rec once and sends it to every current subscriber.
// It returns when all sends have completed or timed out. Per-subscriber
// failures are logged and evict that subscriber; only an encoding
// failure is returned.
func (b *Broadcaster) Publish(ctx context.Context, rec packet.Record) error {
	subs := b.snapshot()
	if len(subs) == 0 {
		return nil
	}

	msg, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	var g errgroup.Group
	for _, s := range subs {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
			defer cancel()
			if err := s.Send(sendCtx, msg); err != nil {
				b.evict(s, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *Broadcaster) evict(s Subscriber, cause error) {
	removed, remaining := b.Remove(s.ID())
	if !removed {
		return
	}
	b.logger.Warn("send failed, dropping subscriber", "id", s.ID(), "err", cause, "clients", remaining)
	if err := s.Close(); err != nil {
		b.logger.Debug("close after failed send", "id", s.ID(), "err", err)
	}
}

// Close closes and removes every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]Subscriber)
	b.mu.Unlock()

	for id, s := range subs {
		if err := s.Close(); err != nil {
			b.logger.Debug("close subscriber", "id", id, "err", err)
		}
	}
}
