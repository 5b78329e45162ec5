package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gadicohen93/Veriver/internal/channel"
	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
	"github.com/gadicohen93/Veriver/internal/metrics"
)

// Normalizer converts raw messages into canonical records.
type Normalizer interface {
	Normalize(ctx context.Context, raw domain.RawMessage, ch domain.Channel) domain.CanonicalMessageRecord
}

// Store is the durable sink consumed by subscriptions.
type Store interface {
	Append(ctx context.Context, records []domain.CanonicalMessageRecord) error
	Correct(ctx context.Context, key domain.Key, fields domain.MutableFields)
	QueryRecent(ctx context.Context, since time.Duration) []domain.CanonicalMessageRecord
	QueryLast(ctx context.Context, limit int) []domain.CanonicalMessageRecord
}

// EscalationHandler receives records flagged for investigation. The
// downstream trigger is outside this service.
type EscalationHandler func(ctx context.Context, record domain.CanonicalMessageRecord)

// Subscription owns the push-event bindings and backfill for one monitored
// channel.
type Subscription struct {
	entity        channel.Entity
	client        channel.Client
	normalizer    Normalizer
	store         Store
	escalate      EscalationHandler
	backfillLimit int
	logger        logger.Logger
}

func newSubscription(
	entity channel.Entity,
	client channel.Client,
	normalizer Normalizer,
	store Store,
	escalate EscalationHandler,
	backfillLimit int,
	log logger.Logger,
) *Subscription {
	return &Subscription{
		entity:        entity,
		client:        client,
		normalizer:    normalizer,
		store:         store,
		escalate:      escalate,
		backfillLimit: backfillLimit,
		logger:        log.With(logger.Int64("channel_id", entity.ID), logger.String("channel", entity.Handle)),
	}
}

// bind registers the new-message and edited-message push bindings. Bindings
// stay registered for the process lifetime; they are attached before
// backfill so a backfill failure cannot lose live events.
func (s *Subscription) bind() {
	s.client.OnNewMessage(s.entity, s.handleNewMessage)
	s.client.OnEditedMessage(s.entity, s.handleEditedMessage)
}

// handleNewMessage normalizes and appends one pushed message. An append
// failure drops the event with a logged error; there is no re-queue.
func (s *Subscription) handleNewMessage(ctx context.Context, msg domain.RawMessage) {
	record := s.normalizer.Normalize(ctx, msg, s.entity.Channel())

	if err := s.store.Append(ctx, []domain.CanonicalMessageRecord{record}); err != nil {
		s.logger.Error("dropping message after failed append",
			logger.Int64("message_id", msg.ID),
			logger.Error(err),
		)
		return
	}
	metrics.MessagesIngested.WithLabelValues("push").Inc()
	s.maybeEscalate(ctx, record)
}

// handleEditedMessage re-normalizes the edited message and applies a
// best-effort correction for the matching key. Correction failures are
// logged inside the store and never abort this handler.
func (s *Subscription) handleEditedMessage(ctx context.Context, msg domain.RawMessage) {
	record := s.normalizer.Normalize(ctx, msg, s.entity.Channel())
	s.store.Correct(ctx, record.Key(), record.Mutable())
	s.maybeEscalate(ctx, record)
}

// backfill loads up to backfillLimit recent messages, normalizes them
// concurrently, and persists the whole batch with a single append.
func (s *Subscription) backfill(ctx context.Context) error {
	msgs, err := s.client.IterRecent(ctx, s.entity, s.backfillLimit)
	if err != nil {
		return fmt.Errorf("load recent messages: %w", err)
	}
	if len(msgs) == 0 {
		s.logger.Info("no recent messages to backfill")
		return nil
	}

	s.logger.Info("backfilling recent messages", logger.Int("count", len(msgs)))
	start := time.Now()

	jobs := make(chan domain.RawMessage, len(msgs))
	results := make(chan domain.CanonicalMessageRecord, len(msgs))

	var wg sync.WaitGroup
	for i := 0; i < len(msgs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				results <- s.normalizer.Normalize(ctx, raw, s.entity.Channel())
			}
		}()
	}
	for _, m := range msgs {
		jobs <- m
	}
	close(jobs)
	wg.Wait()
	close(results)

	records := make([]domain.CanonicalMessageRecord, 0, len(msgs))
	for r := range results {
		records = append(records, r)
	}

	// Batch-then-flush: one append for the whole backfill.
	if err := s.store.Append(ctx, records); err != nil {
		return fmt.Errorf("store backfill batch: %w", err)
	}

	metrics.MessagesIngested.WithLabelValues("backfill").Add(float64(len(records)))
	for _, r := range records {
		s.maybeEscalate(ctx, r)
	}

	s.logger.Info("backfill complete",
		logger.Int("count", len(records)),
		logger.Duration("duration", time.Since(start)),
	)
	return nil
}

func (s *Subscription) maybeEscalate(ctx context.Context, record domain.CanonicalMessageRecord) {
	if !record.Risk.RequiresInvestigation {
		return
	}
	metrics.Escalations.Inc()
	s.logger.Warn("message requires investigation",
		logger.Int64("message_id", record.MessageID),
		logger.Float64("toxicity", record.Risk.Toxicity),
		logger.Float64("risk_level", record.Risk.RiskLevel),
	)
	if s.escalate != nil {
		s.escalate(ctx, record)
	}
}

// CanonicalHandle strips a channel reference to its bare handle. Accepts a
// bare handle, an @-prefixed handle, or a full invite URL.
func CanonicalHandle(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "https://t.me/") {
		ref = strings.TrimSuffix(ref, "/")
		parts := strings.Split(ref, "/")
		return parts[len(parts)-1]
	}
	return strings.TrimPrefix(ref, "@")
}
