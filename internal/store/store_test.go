//nolint:testpackage // Testing internal store requires same package access
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
)

// fakeWarehouse scripts append/update/query outcomes and records calls.
type fakeWarehouse struct {
	appendErrs   []error
	rowErrs      []RowError
	appendCalls  int
	appended     [][]domain.CanonicalMessageRecord
	updateErr    error
	updateCalls  int
	queryErr     error
	queryRecords []domain.CanonicalMessageRecord
}

func (f *fakeWarehouse) AppendRows(_ context.Context, rows []domain.CanonicalMessageRecord) ([]RowError, error) {
	f.appendCalls++
	f.appended = append(f.appended, rows)
	if len(f.appendErrs) > 0 {
		err := f.appendErrs[0]
		f.appendErrs = f.appendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.rowErrs, nil
}

func (f *fakeWarehouse) UpdateMessage(_ context.Context, _ domain.Key, _ domain.MutableFields) error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakeWarehouse) QueryRecent(_ context.Context, _ time.Duration) ([]domain.CanonicalMessageRecord, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryRecords, nil
}

func (f *fakeWarehouse) QueryLast(_ context.Context, _ int) ([]domain.CanonicalMessageRecord, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryRecords, nil
}

func fastOptions() Options {
	return Options{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func testRecords(n int) []domain.CanonicalMessageRecord {
	records := make([]domain.CanonicalMessageRecord, n)
	for i := range records {
		records[i] = domain.CanonicalMessageRecord{ChannelID: 42, MessageID: int64(i + 1)}
	}
	return records
}

func TestAppend_Success(t *testing.T) {
	wh := &fakeWarehouse{}
	s := New(wh, fastOptions(), logger.NewNop())

	if err := s.Append(context.Background(), testRecords(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wh.appendCalls != 1 {
		t.Errorf("expected 1 append call, got %d", wh.appendCalls)
	}
	if len(wh.appended[0]) != 3 {
		t.Errorf("expected batch of 3, got %d", len(wh.appended[0]))
	}
}

func TestAppend_EmptyBatchIsNoop(t *testing.T) {
	wh := &fakeWarehouse{}
	s := New(wh, fastOptions(), logger.NewNop())

	if err := s.Append(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wh.appendCalls != 0 {
		t.Errorf("empty batch should not hit the warehouse, got %d calls", wh.appendCalls)
	}
}

func TestAppend_RetriesTransientFailure(t *testing.T) {
	wh := &fakeWarehouse{appendErrs: []error{errors.New("i/o timeout"), nil}}
	s := New(wh, fastOptions(), logger.NewNop())

	if err := s.Append(context.Background(), testRecords(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wh.appendCalls != 2 {
		t.Errorf("expected 2 append calls, got %d", wh.appendCalls)
	}
}

func TestAppend_ExhaustionSurfacesStoreError(t *testing.T) {
	wh := &fakeWarehouse{appendErrs: []error{
		errors.New("i/o timeout"),
		errors.New("i/o timeout"),
		errors.New("i/o timeout"),
	}}
	s := New(wh, fastOptions(), logger.NewNop())

	err := s.Append(context.Background(), testRecords(1))
	if !errors.Is(err, ErrStoreWriteFailed) {
		t.Fatalf("expected ErrStoreWriteFailed, got %v", err)
	}
	if wh.appendCalls != 3 {
		t.Errorf("expected retries capped at 3, got %d", wh.appendCalls)
	}
}

func TestAppend_RowRejectionFailsFast(t *testing.T) {
	wh := &fakeWarehouse{rowErrs: []RowError{{Index: 0, Err: errors.New("bad column type")}}}
	s := New(wh, fastOptions(), logger.NewNop())

	err := s.Append(context.Background(), testRecords(1))
	if !errors.Is(err, ErrStoreWriteFailed) {
		t.Fatalf("expected ErrStoreWriteFailed, got %v", err)
	}
	if wh.appendCalls != 1 {
		t.Errorf("row rejection must not be retried, got %d calls", wh.appendCalls)
	}
}

func TestCorrect_SingleAttemptSwallowsFailure(t *testing.T) {
	wh := &fakeWarehouse{updateErr: errors.New("no rows matched")}
	s := New(wh, fastOptions(), logger.NewNop())

	// Must not panic or propagate.
	s.Correct(context.Background(), domain.Key{ChannelID: 42, MessageID: 7}, domain.MutableFields{Text: "edited"})

	if wh.updateCalls != 1 {
		t.Errorf("correction must be attempted exactly once, got %d", wh.updateCalls)
	}
}

func TestQueryRecent_FailureYieldsEmpty(t *testing.T) {
	wh := &fakeWarehouse{queryErr: errors.New("connection reset")}
	s := New(wh, fastOptions(), logger.NewNop())

	got := s.QueryRecent(context.Background(), time.Hour)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestQueryLast_ReturnsRecords(t *testing.T) {
	wh := &fakeWarehouse{queryRecords: testRecords(2)}
	s := New(wh, fastOptions(), logger.NewNop())

	got := s.QueryLast(context.Background(), 2)
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}
