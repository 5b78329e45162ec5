// Package normalize converts raw channel messages into canonical records.
// Normalization always completes: media and scoring failures degrade inside
// their own components and never surface here.
package normalize

import (
	"context"
	"sync"
	"time"

	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/scoring"
)

// MediaFetcher materializes a message's attachments, returning stable URIs
// (empty on no media or failure).
type MediaFetcher interface {
	FetchAndStore(ctx context.Context, channelID int64, msg domain.RawMessage) []string
}

// RiskScorer assesses message content, always returning usable scores.
type RiskScorer interface {
	Score(ctx context.Context, in scoring.Input) domain.RiskScores
}

// Normalizer builds canonical message records.
type Normalizer struct {
	media  MediaFetcher
	scorer RiskScorer
}

// New creates a normalizer.
func New(media MediaFetcher, scorer RiskScorer) *Normalizer {
	return &Normalizer{media: media, scorer: scorer}
}

// Normalize converts one raw message into its canonical record. Media
// handling and scoring run concurrently; the scorer is invoked even for
// text-free messages.
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawMessage, ch domain.Channel) domain.CanonicalMessageRecord {
	hasMedia := raw.Media != nil
	mediaType := ""
	if hasMedia {
		mediaType = raw.Media.Kind
	}

	mediaURLs := []string{}
	var wg sync.WaitGroup
	if hasMedia {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mediaURLs = n.media.FetchAndStore(ctx, ch.ID, raw)
		}()
	}

	risk := n.scorer.Score(ctx, scoring.Input{
		Text:        raw.Text,
		ChannelName: ch.Name(),
		HasMedia:    hasMedia,
		Views:       intOrZero(raw.Views),
		Forwards:    intOrZero(raw.Forwards),
	})
	wg.Wait()

	reactionCounts := domain.EncodeReactions(raw.Reactions)

	return domain.CanonicalMessageRecord{
		MessageID:   raw.ID,
		ChannelID:   ch.ID,
		ChannelName: ch.Name(),

		Text:       raw.Text,
		CapturedAt: raw.Date,
		IngestedAt: time.Now().UTC(),

		Views:    intOrZero(raw.Views),
		Forwards: intOrZero(raw.Forwards),
		Replies:  replyCount(raw.Replies),

		HasMedia:  hasMedia,
		MediaType: mediaType,
		MediaURLs: mediaURLs,

		Processed: false,
		Edited:    raw.EditedAt != nil,
		EditedAt:  raw.EditedAt,
		Pinned:    raw.Pinned,

		HasReactions:   reactionCounts != "",
		ReactionCounts: reactionCounts,

		Risk: risk,
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// replyCount tolerates an upstream reply summary that is present but missing
// its inner count.
func replyCount(r *domain.ReplySummary) int {
	if r == nil || r.Count == nil {
		return 0
	}
	return *r.Count
}
