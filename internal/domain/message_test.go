//nolint:testpackage // tests exercise internals directly
package domain

import (
	"testing"
	"time"
)

func TestChannelName(t *testing.T) {
	if got := (Channel{ID: 42, Handle: "example"}).Name(); got != "example" {
		t.Errorf("Name() = %q, want handle", got)
	}
	if got := (Channel{ID: 42}).Name(); got != "42" {
		t.Errorf("Name() = %q, want numeric fallback", got)
	}
}

func TestRecordKey(t *testing.T) {
	rec := CanonicalMessageRecord{MessageID: 7, ChannelID: 42}
	if key := rec.Key(); key != (Key{ChannelID: 42, MessageID: 7}) {
		t.Errorf("Key() = %+v", key)
	}
}

func TestMutableExcludesIdentity(t *testing.T) {
	edited := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := CanonicalMessageRecord{
		MessageID:      7,
		ChannelID:      42,
		Text:           "updated",
		Views:          100,
		Forwards:       5,
		Replies:        2,
		Edited:         true,
		EditedAt:       &edited,
		HasReactions:   true,
		ReactionCounts: `{"👍":3}`,
	}

	m := rec.Mutable()
	if m.Text != "updated" || m.Views != 100 || !m.Edited || m.EditedAt != &edited {
		t.Errorf("Mutable() = %+v", m)
	}
	if m.ReactionCounts != `{"👍":3}` {
		t.Errorf("reaction counts = %q", m.ReactionCounts)
	}
}

func TestEncodeReactions(t *testing.T) {
	if got := EncodeReactions(nil); got != "" {
		t.Errorf("EncodeReactions(nil) = %q, want empty", got)
	}
	if got := EncodeReactions(map[string]int{}); got != "" {
		t.Errorf("EncodeReactions(empty) = %q, want empty", got)
	}

	a := EncodeReactions(map[string]int{"👍": 3, "🔥": 1})
	b := EncodeReactions(map[string]int{"🔥": 1, "👍": 3})
	if a != b {
		t.Errorf("encoding not deterministic: %q vs %q", a, b)
	}
	if a == "" {
		t.Error("encoding unexpectedly empty")
	}
}
