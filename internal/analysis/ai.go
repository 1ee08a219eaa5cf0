/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/HamedShams/sprint-pulse/internal/domain"
	"github.com/rs/zerolog"
)

// Completer sends a system + user prompt to a chat model and returns the
// content of the first choice.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const (
	sentimentPrompt = "You are an agile coach analyzing a daily standup. Rate the overall sentiment of the update. " +
		"Return only a JSON object with keys: score (number from -1 to 1), confidence (number from 0 to 1), summary (string)."
	patternsPrompt = "You are an agile analyst. Given the blocker descriptions reported by a team over the last week, " +
		"find recurring patterns. Return only a JSON object with keys: recurringPatterns (string[]), insights (string[]), recommendations (string[])."
)

var errBadShape = errors.New("unexpected response shape")

func SentimentFallback() domain.SentimentResult {
	return domain.SentimentResult{Score: 0, Confidence: 0.3, Summary: "Sentiment analysis failed"}
}

func PatternsFallback() domain.BlockerPatterns {
	return domain.BlockerPatterns{
		RecurringPatterns: []string{},
		Insights:          []string{},
		Recommendations:   []string{"Blocker pattern analysis unavailable, manual review recommended"},
	}
}

// AI wraps the hosted model. Its methods never fail: any transport, parse or
// shape problem degrades to the documented fallback value.
type AI struct {
	llm Completer
	log zerolog.Logger
}

func NewAI(llm Completer, log zerolog.Logger) *AI {
	return &AI{llm: llm, log: log}
}

func (a *AI) AnalyzeSentiment(ctx context.Context, standup domain.Standup) domain.SentimentResult {
	if a.llm == nil {
		return SentimentFallback()
	}
	var names []string
	if standup.User != nil {
		names = append(names, standup.User.Name)
	}
	parts := RedactPII([]string{standup.Yesterday, standup.Today, standup.Obstacles}, names)
	text := fmt.Sprintf("Yesterday: %s\nToday: %s\nObstacles: %s", parts[0], parts[1], parts[2])

	content, err := a.llm.Complete(ctx, sentimentPrompt, text)
	if err != nil {
		a.log.Warn().Err(err).Int64("standup", standup.ID).Msg("sentiment: llm call failed")
		return SentimentFallback()
	}
	res, err := parseSentiment(content)
	if err != nil {
		a.log.Warn().Err(err).Int64("standup", standup.ID).Msg("sentiment: bad llm response")
		return SentimentFallback()
	}
	return res
}

func (a *AI) DetectBlockerPatterns(ctx context.Context, descriptions []string) domain.BlockerPatterns {
	if a.llm == nil {
		return PatternsFallback()
	}
	lowered := make([]string, 0, len(descriptions))
	for _, d := range descriptions {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			lowered = append(lowered, d)
		}
	}
	payload, _ := json.Marshal(map[string]any{"blockers": RedactPII(lowered, nil)})

	content, err := a.llm.Complete(ctx, patternsPrompt, string(payload))
	if err != nil {
		a.log.Warn().Err(err).Int("blockers", len(lowered)).Msg("blocker patterns: llm call failed")
		return PatternsFallback()
	}
	res, err := parsePatterns(content)
	if err != nil {
		a.log.Warn().Err(err).Msg("blocker patterns: bad llm response")
		return PatternsFallback()
	}
	return res
}

// stripFences removes a surrounding ```json block some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseSentiment(content string) (domain.SentimentResult, error) {
	var raw struct {
		Score      *float64 `json:"score"`
		Confidence *float64 `json:"confidence"`
		Summary    *string  `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return domain.SentimentResult{}, err
	}
	if raw.Score == nil || raw.Confidence == nil || raw.Summary == nil {
		return domain.SentimentResult{}, errBadShape
	}
	if *raw.Score < -1 || *raw.Score > 1 || *raw.Confidence < 0 || *raw.Confidence > 1 {
		return domain.SentimentResult{}, fmt.Errorf("%w: values out of range", errBadShape)
	}
	return domain.SentimentResult{Score: *raw.Score, Confidence: *raw.Confidence, Summary: *raw.Summary}, nil
}

func parsePatterns(content string) (domain.BlockerPatterns, error) {
	var raw struct {
		RecurringPatterns *[]string `json:"recurringPatterns"`
		Insights          *[]string `json:"insights"`
		Recommendations   *[]string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return domain.BlockerPatterns{}, err
	}
	if raw.RecurringPatterns == nil || raw.Insights == nil || raw.Recommendations == nil {
		return domain.BlockerPatterns{}, errBadShape
	}
	return domain.BlockerPatterns{
		RecurringPatterns: nonNil(*raw.RecurringPatterns),
		Insights:          nonNil(*raw.Insights),
		Recommendations:   nonNil(*raw.Recommendations),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
