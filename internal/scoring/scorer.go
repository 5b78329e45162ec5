// Package scoring assesses message content risk through an external
// completion capability. Failures never escape this package: every call
// yields a usable, possibly degraded, set of scores.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
	"github.com/gadicohen93/Veriver/internal/metrics"
)

// emptyTextSentinel replaces absent or blank message text so the prompt
// stays well-formed.
const emptyTextSentinel = "No text content"

// investigationThreshold is the fixed escalation policy: a message requires
// investigation iff risk_level + toxicity exceeds it.
const investigationThreshold = 1.0

// CompletionClient is the external scoring capability boundary.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Input carries the message facts the scoring prompt is built from.
type Input struct {
	Text        string
	ChannelName string
	HasMedia    bool
	Views       int
	Forwards    int
}

// Scorer scores message content via a CompletionClient.
type Scorer struct {
	client CompletionClient
	logger logger.Logger
}

// NewScorer creates a content scorer.
func NewScorer(client CompletionClient, log logger.Logger) *Scorer {
	return &Scorer{client: client, logger: log}
}

const promptTemplate = `You are assessing a message from a public broadcast channel for risk.

Channel: %s
Has media attachment: %t
Views: %d
Forwards: %d

Message text:
%s

Respond with a single JSON object and nothing else:
{"toxicity": <0.0-1.0>, "veracity": <0.0-1.0>, "risk_level": <0.0-1.0>, "reasoning": "<one or two sentences>"}

toxicity measures harassment, hate or incitement. veracity measures how
likely the content is factual. risk_level is the overall risk the message
poses if amplified.`

// scoreResponse is the structured shape the capability is asked to return.
// Pointers distinguish missing keys from explicit zeroes.
type scoreResponse struct {
	Toxicity  *float64 `json:"toxicity"`
	Veracity  *float64 `json:"veracity"`
	RiskLevel *float64 `json:"risk_level"`
	Reasoning string   `json:"reasoning"`
}

// Score assesses one message. On any transport or parse failure it returns
// all-zero scores with RequiresInvestigation false.
func (s *Scorer) Score(ctx context.Context, in Input) domain.RiskScores {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		text = emptyTextSentinel
	}

	prompt := fmt.Sprintf(promptTemplate, in.ChannelName, in.HasMedia, in.Views, in.Forwards, text)

	raw, err := s.client.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("content scoring failed, using degraded scores",
			logger.String("channel", in.ChannelName),
			logger.Error(err),
		)
		metrics.ScoringFailures.Inc()
		return domain.RiskScores{}
	}

	resp, err := parseScores(raw)
	if err != nil {
		s.logger.Warn("unparsable scoring response, using degraded scores",
			logger.String("channel", in.ChannelName),
			logger.Error(err),
		)
		metrics.ScoringFailures.Inc()
		return domain.RiskScores{}
	}

	scores := domain.RiskScores{
		Toxicity:  clamp01(*resp.Toxicity),
		Veracity:  clamp01(*resp.Veracity),
		RiskLevel: clamp01(*resp.RiskLevel),
	}
	scores.RequiresInvestigation = scores.RiskLevel+scores.Toxicity > investigationThreshold

	if resp.Reasoning != "" {
		s.logger.Debug("scoring reasoning",
			logger.String("channel", in.ChannelName),
			logger.String("reasoning", resp.Reasoning),
			logger.Float64("risk_level", scores.RiskLevel),
		)
	}

	return scores
}

// parseScores extracts the score object from a raw completion, tolerating
// surrounding prose and markdown fences.
func parseScores(raw string) (*scoreResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var resp scoreResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	if resp.Toxicity == nil || resp.Veracity == nil || resp.RiskLevel == nil {
		return nil, fmt.Errorf("response missing required score keys")
	}
	return &resp, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
