// Package monitor owns the set of active channel subscriptions and exposes
// the subscribe and query operations used by the outer service surface.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gadicohen93/Veriver/internal/channel"
	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
)

// invalidChannelReason is the caller-facing reason when a reference resolves
// to something other than a broadcast channel.
const invalidChannelReason = "Not a valid channel"

// Monitor manages channel subscriptions. It is constructed once at startup
// and passed by reference; there is no ambient global instance.
type Monitor struct {
	client        channel.Client
	normalizer    Normalizer
	store         Store
	escalate      EscalationHandler
	backfillLimit int
	logger        logger.Logger

	mu   sync.Mutex
	subs map[int64]*Subscription
}

// Options configures a Monitor.
type Options struct {
	// BackfillLimit caps the historical load performed at subscribe time.
	BackfillLimit int
	// Escalate, when set, receives records flagged for investigation.
	Escalate EscalationHandler
}

// New creates a monitor service.
func New(client channel.Client, normalizer Normalizer, store Store, opts Options, log logger.Logger) *Monitor {
	limit := opts.BackfillLimit
	if limit <= 0 {
		limit = 10
	}
	return &Monitor{
		client:        client,
		normalizer:    normalizer,
		store:         store,
		escalate:      opts.Escalate,
		backfillLimit: limit,
		logger:        log,
		subs:          make(map[int64]*Subscription),
	}
}

// Subscribe resolves the channel reference, attaches push bindings, and
// performs the bounded backfill. It returns (ok, human-readable detail).
// Bindings attach before backfill runs, so a backfill failure reports false
// but leaves live-event handling in place.
func (m *Monitor) Subscribe(ctx context.Context, ref string) (bool, string) {
	handle := CanonicalHandle(ref)
	m.logger.Info("subscribing to channel", logger.String("handle", handle))

	entity, err := m.client.Resolve(ctx, handle)
	if err != nil {
		m.logger.Error("channel resolution failed",
			logger.String("handle", handle),
			logger.Error(err),
		)
		return false, err.Error()
	}
	if !entity.Broadcast {
		return false, invalidChannelReason
	}

	m.mu.Lock()
	if _, ok := m.subs[entity.ID]; ok {
		m.mu.Unlock()
		return true, fmt.Sprintf("Already subscribed to %s", handle)
	}
	sub := newSubscription(entity, m.client, m.normalizer, m.store, m.escalate, m.backfillLimit, m.logger)
	sub.bind()
	m.subs[entity.ID] = sub
	m.mu.Unlock()

	if err := sub.backfill(ctx); err != nil {
		m.logger.Error("backfill failed", logger.String("handle", handle), logger.Error(err))
		return false, err.Error()
	}

	return true, fmt.Sprintf("Successfully subscribed to %s", handle)
}

// Recent returns records captured within the last hours, newest first.
func (m *Monitor) Recent(ctx context.Context, hours int) []domain.CanonicalMessageRecord {
	if hours <= 0 {
		hours = 1
	}
	return m.store.QueryRecent(ctx, time.Duration(hours)*time.Hour)
}

// Last returns the most recent records up to limit, newest first.
func (m *Monitor) Last(ctx context.Context, limit int) []domain.CanonicalMessageRecord {
	if limit <= 0 {
		limit = 10
	}
	return m.store.QueryLast(ctx, limit)
}

// Channels lists the currently subscribed channels.
func (m *Monitor) Channels() []domain.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make([]domain.Channel, 0, len(m.subs))
	for _, sub := range m.subs {
		channels = append(channels, sub.entity.Channel())
	}
	return channels
}
