// Package domain defines the core data model for channel message ingestion.
package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Channel identifies one monitored broadcast channel.
// The numeric ID is stable; the handle is optional and may change upstream.
type Channel struct {
	ID     int64  `json:"channel_id"`
	Handle string `json:"channel_name,omitempty"`
}

// Name returns the display handle, falling back to the numeric id.
func (c Channel) Name() string {
	if c.Handle != "" {
		return c.Handle
	}
	return strconv.FormatInt(c.ID, 10)
}

// Media describes an attachment on a raw message. Kind is a coarse tag of
// the attachment's underlying type (photo, document, ...).
type Media struct {
	Kind string `json:"kind"`
}

// ReplySummary is the upstream reply-count object. Count may be missing even
// when the summary itself is present.
type ReplySummary struct {
	Count *int `json:"count,omitempty"`
}

// RawMessage is the as-received event payload from the channel client.
// Counter fields are pointers so that "absent upstream" is distinguishable
// from an explicit zero.
type RawMessage struct {
	ID        int64          `json:"message_id"`
	Date      time.Time      `json:"date"`
	Text      string         `json:"text,omitempty"`
	Media     *Media         `json:"media,omitempty"`
	EditedAt  *time.Time     `json:"edited_at,omitempty"`
	Pinned    bool           `json:"is_pinned"`
	Views     *int           `json:"views,omitempty"`
	Forwards  *int           `json:"forwards,omitempty"`
	Replies   *ReplySummary  `json:"replies,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
}

// RiskScores holds the bounded content-risk assessment for one message.
// Every score is clamped to [0.0, 1.0] and always present; a degraded
// assessment is all zeroes with RequiresInvestigation false.
type RiskScores struct {
	Toxicity              float64 `json:"toxicity"`
	Veracity              float64 `json:"veracity"`
	RiskLevel             float64 `json:"risk_level"`
	RequiresInvestigation bool    `json:"requires_investigation"`
}

// CanonicalMessageRecord is the durable, storage-ready representation of one
// message, keyed by (channel_id, message_id).
type CanonicalMessageRecord struct {
	MessageID   int64  `json:"message_id"`
	ChannelID   int64  `json:"channel_id"`
	ChannelName string `json:"channel_name"`

	Text       string    `json:"text"`
	CapturedAt time.Time `json:"date"`
	IngestedAt time.Time `json:"created_at"`

	Views    int `json:"views"`
	Forwards int `json:"forwards"`
	Replies  int `json:"replies"`

	HasMedia  bool     `json:"has_media"`
	MediaType string   `json:"media_type,omitempty"`
	MediaURLs []string `json:"media_urls"`

	Processed bool       `json:"processed"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Pinned    bool       `json:"is_pinned"`

	HasReactions   bool   `json:"has_reactions"`
	ReactionCounts string `json:"reaction_counts,omitempty"`

	Risk RiskScores `json:"risk"`
}

// Key identifies a record for correction paths.
type Key struct {
	ChannelID int64
	MessageID int64
}

// Key returns the record's (channel_id, message_id) identity.
func (r *CanonicalMessageRecord) Key() Key {
	return Key{ChannelID: r.ChannelID, MessageID: r.MessageID}
}

// MutableFields is the subset of record fields an edited-message event may
// overwrite. MessageID and CapturedAt never change after first ingestion.
type MutableFields struct {
	Text           string
	Views          int
	Forwards       int
	Replies        int
	Edited         bool
	EditedAt       *time.Time
	HasReactions   bool
	ReactionCounts string
}

// Mutable extracts the fields an edit is allowed to overwrite.
func (r *CanonicalMessageRecord) Mutable() MutableFields {
	return MutableFields{
		Text:           r.Text,
		Views:          r.Views,
		Forwards:       r.Forwards,
		Replies:        r.Replies,
		Edited:         r.Edited,
		EditedAt:       r.EditedAt,
		HasReactions:   r.HasReactions,
		ReactionCounts: r.ReactionCounts,
	}
}

// EncodeReactions serializes an emoji->count multiset deterministically.
// Returns "" when there are no reactions.
func EncodeReactions(reactions map[string]int) string {
	if len(reactions) == 0 {
		return ""
	}
	// json.Marshal sorts map keys, so equal inputs encode identically.
	b, err := json.Marshal(reactions)
	if err != nil {
		return ""
	}
	return string(b)
}
