package assistant

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/dates"
	"github.com/jobops/jobops/internal/storage"
)

// ErrNoRecords is returned by Briefing when there is nothing to brief on.
var ErrNoRecords = errors.New("no applications to brief on")

// cachedBriefing is the value stored under the daily_briefing key.
type cachedBriefing struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Text  string `json:"text"`
}

const briefingPrompt = "Here is my job pipeline as JSON:\n%s\n\n" +
	"In two sentences, tell me what to focus on today. Prioritise interviews, stale applications and upcoming follow-ups. No preamble."

// Briefing returns today's short strategic summary. The result is cached
// and reused while the record count and the date are unchanged.
func (a *Assistant) Briefing(ctx context.Context) (string, error) {
	jobs := a.store.Jobs()
	if len(jobs) == 0 {
		return "", ErrNoRecords
	}
	today := dates.Today(a.now())

	var cached cachedBriefing
	if err := storage.LoadJSON(ctx, a.kv, storage.KeyDailyBriefing, &cached); err == nil {
		if cached.Count == len(jobs) && cached.Date == today && cached.Text != "" {
			return cached.Text, nil
		}
	}

	if a.llm == nil {
		return "", ErrNotConfigured
	}
	resp, err := a.llm.Generate(ctx, Request{
		System:    "You are the JobOps assistant, a concise job-search copilot.",
		Messages:  []Turn{{Role: "user", Content: fmt.Sprintf(briefingPrompt, ContextSnapshot(jobs))}},
		MaxTokens: 300,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate briefing: %w", err)
	}
	if resp.Text == "" {
		return "", fmt.Errorf("failed to generate briefing: empty response")
	}

	entry := cachedBriefing{Date: today, Count: len(jobs), Text: resp.Text}
	if err := storage.SaveJSON(ctx, a.kv, storage.KeyDailyBriefing, entry); err != nil {
		a.logger.Warn("failed to cache briefing", zap.Error(err))
	}
	return resp.Text, nil
}
