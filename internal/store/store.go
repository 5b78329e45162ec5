// Package store is the durable sink and query surface for canonical message
// records. Appends are retried on transient errors with bounded backoff;
// corrections are best-effort; queries degrade to empty results.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
	"github.com/gadicohen93/Veriver/internal/metrics"
	"github.com/gadicohen93/Veriver/internal/retry"
)

// ErrStoreWriteFailed is surfaced after append retries are exhausted.
var ErrStoreWriteFailed = errors.New("store write failed")

// RowError reports a per-row rejection from the warehouse.
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

// RowRejectionError aggregates per-row rejections. Rejected rows will not
// improve on retry, so this error fails fast.
type RowRejectionError struct {
	Rows []RowError
}

func (e *RowRejectionError) Error() string {
	return fmt.Sprintf("%d rows rejected: %v", len(e.Rows), e.Rows[0].Err)
}

// Warehouse is the storage backend boundary. AppendRows returns per-row
// rejections plus a whole-call error for transport failures.
type Warehouse interface {
	AppendRows(ctx context.Context, rows []domain.CanonicalMessageRecord) ([]RowError, error)
	UpdateMessage(ctx context.Context, key domain.Key, fields domain.MutableFields) error
	QueryRecent(ctx context.Context, since time.Duration) ([]domain.CanonicalMessageRecord, error)
	QueryLast(ctx context.Context, limit int) ([]domain.CanonicalMessageRecord, error)
}

// Options bounds the append retry policy.
type Options struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Store wraps a Warehouse with the ingestion write policy.
type Store struct {
	warehouse Warehouse
	retryCfg  retry.Config
	logger    logger.Logger
}

// New creates a store over the given warehouse.
func New(warehouse Warehouse, opts Options, log logger.Logger) *Store {
	cfg := retry.Config{
		MaxAttempts:  opts.MaxRetries,
		InitialDelay: opts.InitialDelay,
		MaxDelay:     opts.MaxDelay,
		Multiplier:   2.0,
		IsRetryable:  isRetryableAppend,
	}
	return &Store{warehouse: warehouse, retryCfg: cfg, logger: log}
}

// isRetryableAppend retries transport-level failures only. Row rejections
// (malformed values, schema mismatches) fail fast.
func isRetryableAppend(err error) bool {
	var rejection *RowRejectionError
	if errors.As(err, &rejection) {
		return false
	}
	return retry.DefaultIsRetryable(err)
}

// Append inserts the batch, retrying transient failures. On exhaustion or a
// non-retryable error it returns ErrStoreWriteFailed; rows are never
// partially dropped from the batch by this layer.
func (s *Store) Append(ctx context.Context, records []domain.CanonicalMessageRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := retry.Do(ctx, s.retryCfg, func() error {
		rowErrs, appendErr := s.warehouse.AppendRows(ctx, records)
		if appendErr != nil {
			return appendErr
		}
		if len(rowErrs) > 0 {
			return &RowRejectionError{Rows: rowErrs}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("append failed",
			logger.Int("records", len(records)),
			logger.Error(err),
		)
		metrics.StoreAppendFailures.Inc()
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}

	s.logger.Debug("appended records", logger.Int("records", len(records)))
	return nil
}

// Correct applies an update-by-key for the mutable fields of one record.
// A single attempt; failures are logged and swallowed so the edit-handling
// path never aborts.
func (s *Store) Correct(ctx context.Context, key domain.Key, fields domain.MutableFields) {
	if err := s.warehouse.UpdateMessage(ctx, key, fields); err != nil {
		s.logger.Error("correction failed",
			logger.Int64("channel_id", key.ChannelID),
			logger.Int64("message_id", key.MessageID),
			logger.Error(err),
		)
	}
}

// QueryRecent returns records captured within the window, newest first.
// Query failures yield an empty result to keep the read path available.
func (s *Store) QueryRecent(ctx context.Context, since time.Duration) []domain.CanonicalMessageRecord {
	records, err := s.warehouse.QueryRecent(ctx, since)
	if err != nil {
		s.logger.Error("recent query failed", logger.Error(err))
		return []domain.CanonicalMessageRecord{}
	}
	return records
}

// QueryLast returns the most recent records up to limit, newest first.
// Query failures yield an empty result.
func (s *Store) QueryLast(ctx context.Context, limit int) []domain.CanonicalMessageRecord {
	records, err := s.warehouse.QueryLast(ctx, limit)
	if err != nil {
		s.logger.Error("last query failed", logger.Error(err))
		return []domain.CanonicalMessageRecord{}
	}
	return records
}
