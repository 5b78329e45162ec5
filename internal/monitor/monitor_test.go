//nolint:testpackage // Testing internal monitor requires same package access
package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gadicohen93/Veriver/internal/channel"
	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
)

// fakeClient is an in-memory channel client.
type fakeClient struct {
	entities       map[string]channel.Entity
	resolveErr     error
	recent         []domain.RawMessage
	recentErr      error
	newHandlers    []channel.Handler
	editedHandlers []channel.Handler
}

func (f *fakeClient) Resolve(_ context.Context, handle string) (channel.Entity, error) {
	if f.resolveErr != nil {
		return channel.Entity{}, f.resolveErr
	}
	e, ok := f.entities[handle]
	if !ok {
		return channel.Entity{}, errors.New("no such peer: " + handle)
	}
	return e, nil
}

func (f *fakeClient) IterRecent(_ context.Context, _ channel.Entity, limit int) ([]domain.RawMessage, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeClient) OnNewMessage(_ channel.Entity, h channel.Handler) {
	f.newHandlers = append(f.newHandlers, h)
}

func (f *fakeClient) OnEditedMessage(_ channel.Entity, h channel.Handler) {
	f.editedHandlers = append(f.editedHandlers, h)
}

func (f *fakeClient) DownloadMedia(_ context.Context, _ domain.RawMessage, dest string) (string, error) {
	return dest, nil
}

// fakeNormalizer produces minimal records without side effects.
type fakeNormalizer struct {
	scores domain.RiskScores
}

func (f *fakeNormalizer) Normalize(_ context.Context, raw domain.RawMessage, ch domain.Channel) domain.CanonicalMessageRecord {
	return domain.CanonicalMessageRecord{
		MessageID:   raw.ID,
		ChannelID:   ch.ID,
		ChannelName: ch.Name(),
		Text:        raw.Text,
		CapturedAt:  raw.Date,
		IngestedAt:  time.Now().UTC(),
		MediaURLs:   []string{},
		Risk:        f.scores,
	}
}

// fakeStore records append batches and correction calls.
type fakeStore struct {
	appendErr    error
	appends      [][]domain.CanonicalMessageRecord
	corrections  []domain.Key
	correctedVia []domain.MutableFields
}

func (f *fakeStore) Append(_ context.Context, records []domain.CanonicalMessageRecord) error {
	f.appends = append(f.appends, records)
	return f.appendErr
}

func (f *fakeStore) Correct(_ context.Context, key domain.Key, fields domain.MutableFields) {
	f.corrections = append(f.corrections, key)
	f.correctedVia = append(f.correctedVia, fields)
}

func (f *fakeStore) QueryRecent(_ context.Context, _ time.Duration) []domain.CanonicalMessageRecord {
	return []domain.CanonicalMessageRecord{}
}

func (f *fakeStore) QueryLast(_ context.Context, _ int) []domain.CanonicalMessageRecord {
	return []domain.CanonicalMessageRecord{}
}

func broadcastClient(recent ...domain.RawMessage) *fakeClient {
	return &fakeClient{
		entities: map[string]channel.Entity{
			"example": {ID: 42, Handle: "example", Broadcast: true},
			"alice":   {ID: 7, Handle: "alice", Broadcast: false},
		},
		recent: recent,
	}
}

func rawMessages(n int) []domain.RawMessage {
	msgs := make([]domain.RawMessage, n)
	for i := range msgs {
		msgs[i] = domain.RawMessage{ID: int64(100 + i), Date: time.Now().UTC(), Text: "m"}
	}
	return msgs
}

func newMonitor(client channel.Client, store Store, opts Options) *Monitor {
	return New(client, &fakeNormalizer{}, store, opts, logger.NewNop())
}

func TestCanonicalHandle(t *testing.T) {
	cases := []struct {
		ref  string
		want string
	}{
		{"example", "example"},
		{"@example", "example"},
		{"https://t.me/example", "example"},
		{"https://t.me/example/", "example"},
		{"  @example ", "example"},
	}
	for _, tc := range cases {
		if got := CanonicalHandle(tc.ref); got != tc.want {
			t.Errorf("CanonicalHandle(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestSubscribe_InviteURLResolvesCanonicalHandle(t *testing.T) {
	client := broadcastClient(rawMessages(1)...)
	m := newMonitor(client, &fakeStore{}, Options{})

	ok, detail := m.Subscribe(context.Background(), "https://t.me/example")

	if !ok {
		t.Fatalf("expected success, got %q", detail)
	}
	if detail != "Successfully subscribed to example" {
		t.Errorf("unexpected detail: %q", detail)
	}
}

func TestSubscribe_NotABroadcastChannel(t *testing.T) {
	client := broadcastClient()
	m := newMonitor(client, &fakeStore{}, Options{})

	ok, detail := m.Subscribe(context.Background(), "@alice")

	if ok {
		t.Fatal("expected failure for non-broadcast entity")
	}
	if detail != "Not a valid channel" {
		t.Errorf("detail = %q, want %q", detail, "Not a valid channel")
	}
	if len(client.newHandlers) != 0 || len(client.editedHandlers) != 0 {
		t.Error("no bindings may be registered for an invalid channel")
	}
}

func TestSubscribe_ResolutionFailure(t *testing.T) {
	client := broadcastClient()
	client.resolveErr = errors.New("peer lookup failed")
	m := newMonitor(client, &fakeStore{}, Options{})

	ok, detail := m.Subscribe(context.Background(), "example")

	if ok || detail != "peer lookup failed" {
		t.Errorf("got (%v, %q)", ok, detail)
	}
}

func TestSubscribe_BackfillSingleBatchAppend(t *testing.T) {
	store := &fakeStore{}
	client := broadcastClient(rawMessages(7)...)
	m := newMonitor(client, store, Options{BackfillLimit: 10})

	ok, detail := m.Subscribe(context.Background(), "example")
	if !ok {
		t.Fatalf("subscribe failed: %q", detail)
	}

	if len(store.appends) != 1 {
		t.Fatalf("backfill must be one append call, got %d", len(store.appends))
	}
	if len(store.appends[0]) != 7 {
		t.Errorf("expected batch of 7 records, got %d", len(store.appends[0]))
	}
}

func TestSubscribe_BackfillCappedAtLimit(t *testing.T) {
	store := &fakeStore{}
	client := broadcastClient(rawMessages(25)...)
	m := newMonitor(client, store, Options{BackfillLimit: 10})

	if ok, detail := m.Subscribe(context.Background(), "example"); !ok {
		t.Fatalf("subscribe failed: %q", detail)
	}
	if len(store.appends) != 1 || len(store.appends[0]) != 10 {
		t.Errorf("expected one append of 10 records, got %d appends", len(store.appends))
	}
}

func TestSubscribe_BindingsAttachBeforeBackfill(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("store write failed")}
	client := broadcastClient(rawMessages(3)...)
	m := newMonitor(client, store, Options{})

	ok, _ := m.Subscribe(context.Background(), "example")

	if ok {
		t.Fatal("subscribe must fail when the backfill append fails")
	}
	// Live-event bindings survive a failed backfill.
	if len(client.newHandlers) != 1 || len(client.editedHandlers) != 1 {
		t.Errorf("bindings lost after backfill failure: new=%d edited=%d",
			len(client.newHandlers), len(client.editedHandlers))
	}
}

func TestSubscribe_AlreadySubscribed(t *testing.T) {
	store := &fakeStore{}
	client := broadcastClient(rawMessages(1)...)
	m := newMonitor(client, store, Options{})

	if ok, _ := m.Subscribe(context.Background(), "example"); !ok {
		t.Fatal("first subscribe failed")
	}
	ok, detail := m.Subscribe(context.Background(), "example")
	if !ok || detail != "Already subscribed to example" {
		t.Errorf("got (%v, %q)", ok, detail)
	}
	if len(client.newHandlers) != 1 {
		t.Errorf("re-subscribe must not register duplicate bindings, got %d", len(client.newHandlers))
	}
}

func TestNewMessageBinding_AppendsSingleRecord(t *testing.T) {
	store := &fakeStore{}
	client := broadcastClient()
	m := newMonitor(client, store, Options{})

	if ok, detail := m.Subscribe(context.Background(), "example"); !ok {
		t.Fatalf("subscribe failed: %q", detail)
	}

	client.newHandlers[0](context.Background(), domain.RawMessage{ID: 555, Date: time.Now(), Text: "live"})

	if len(store.appends) != 1 || len(store.appends[0]) != 1 {
		t.Fatalf("expected one single-record append, got %v", store.appends)
	}
	if store.appends[0][0].MessageID != 555 {
		t.Errorf("wrong record appended: %+v", store.appends[0][0])
	}
}

func TestNewMessageBinding_DropsOnAppendFailure(t *testing.T) {
	store := &fakeStore{}
	client := broadcastClient()
	m := newMonitor(client, store, Options{})
	if ok, _ := m.Subscribe(context.Background(), "example"); !ok {
		t.Fatal("subscribe failed")
	}

	store.appendErr = errors.New("store write failed")
	// Must not panic; the event is dropped with a logged error.
	client.newHandlers[0](context.Background(), domain.RawMessage{ID: 1, Date: time.Now()})
}

func TestEditedMessageBinding_CorrectionBestEffort(t *testing.T) {
	store := &fakeStore{}
	client := broadcastClient()
	m := newMonitor(client, store, Options{})
	if ok, _ := m.Subscribe(context.Background(), "example"); !ok {
		t.Fatal("subscribe failed")
	}

	editedAt := time.Now().UTC()
	// Key 9999 was never appended; the correction matches no row but the
	// handler still returns cleanly.
	client.editedHandlers[0](context.Background(), domain.RawMessage{ID: 9999, Date: time.Now(), Text: "edited", EditedAt: &editedAt})

	if len(store.corrections) != 1 {
		t.Fatalf("expected 1 correction attempt, got %d", len(store.corrections))
	}
	if store.corrections[0] != (domain.Key{ChannelID: 42, MessageID: 9999}) {
		t.Errorf("wrong correction key: %+v", store.corrections[0])
	}
	if len(store.appends) != 0 {
		t.Error("edit handling must not append new rows")
	}
}

func TestEscalationHandlerInvoked(t *testing.T) {
	var escalated []int64
	store := &fakeStore{}
	client := broadcastClient()
	m := New(client,
		&fakeNormalizer{scores: domain.RiskScores{Toxicity: 0.8, RiskLevel: 0.6, RequiresInvestigation: true}},
		store,
		Options{Escalate: func(_ context.Context, r domain.CanonicalMessageRecord) {
			escalated = append(escalated, r.MessageID)
		}},
		logger.NewNop(),
	)
	if ok, _ := m.Subscribe(context.Background(), "example"); !ok {
		t.Fatal("subscribe failed")
	}

	client.newHandlers[0](context.Background(), domain.RawMessage{ID: 77, Date: time.Now()})

	if len(escalated) != 1 || escalated[0] != 77 {
		t.Errorf("expected escalation for message 77, got %v", escalated)
	}
}

func TestChannels(t *testing.T) {
	client := broadcastClient(rawMessages(1)...)
	m := newMonitor(client, &fakeStore{}, Options{})

	if got := m.Channels(); len(got) != 0 {
		t.Errorf("expected no channels before subscribing, got %v", got)
	}
	if ok, _ := m.Subscribe(context.Background(), "example"); !ok {
		t.Fatal("subscribe failed")
	}
	got := m.Channels()
	if len(got) != 1 || got[0].ID != 42 {
		t.Errorf("unexpected channels: %v", got)
	}
}
