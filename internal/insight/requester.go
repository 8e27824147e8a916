// Package insight builds bounded summarization requests over recent journal
// entries and forwards them to the text-generation collaborator. It owns
// prompt construction and truncation policy, nothing else.
package insight

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nyshlabs/reflective/internal/journal"
	"github.com/nyshlabs/reflective/internal/llm"
)

// DefaultCharBudget bounds the entry text packed into one request payload.
const DefaultCharBudget = 10000

// EmptyCorpusError reports that insights were requested with zero stored
// entries. It is returned before any external request is issued.
type EmptyCorpusError struct{}

func (e *EmptyCorpusError) Error() string {
	return "no journal entries to analyze"
}

// Requester turns recent entries into a structured prompt and delegates to
// the upstream generator.
type Requester struct {
	generator  llm.Generator
	charBudget int
}

func NewRequester(g llm.Generator, charBudget int) *Requester {
	if charBudget <= 0 {
		charBudget = DefaultCharBudget
	}
	return &Requester{generator: g, charBudget: charBudget}
}

// Analyze summarizes the given entries, newest first, truncated to the
// character budget. Upstream failures surface to the caller unretried.
func (r *Requester) Analyze(ctx context.Context, entries []journal.Entry) (string, error) {
	prompt, err := r.BuildPrompt(entries)
	if err != nil {
		return "", err
	}
	return r.generator.Generate(ctx, prompt)
}

// BuildPrompt assembles the bounded request payload. Exported so callers can
// inspect or stream the same prompt.
func (r *Requester) BuildPrompt(entries []journal.Entry) (string, error) {
	if len(entries) == 0 {
		return "", &EmptyCorpusError{}
	}

	// Newest-first so truncation drops the oldest text.
	sorted := make([]journal.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var body strings.Builder
	used := 0
	for _, e := range sorted {
		block := fmt.Sprintf("[%s | %s]\n%s\n\n", e.Timestamp.Format(journal.TimeLayout), e.Mood, e.Text)
		if used+len(block) > r.charBudget {
			remaining := r.charBudget - used
			if remaining > 0 {
				body.WriteString(block[:remaining])
			}
			break
		}
		body.WriteString(block)
		used += len(block)
	}

	moods := distinctMoods(sorted)
	tags := distinctTags(sorted)

	var sb strings.Builder
	sb.WriteString("You are a reflective journaling assistant. Analyze the journal entries below and summarize recurring themes, mood patterns, and one or two gentle suggestions.\n\n")
	sb.WriteString("Moods present: " + strings.Join(moods, ", ") + "\n")
	if len(tags) > 0 {
		sb.WriteString("Tags present: " + strings.Join(tags, ", ") + "\n")
	}
	sb.WriteString("\nEntries (newest first):\n\n")
	sb.WriteString(body.String())
	return sb.String(), nil
}

func distinctMoods(entries []journal.Entry) []string {
	seen := make(map[string]bool)
	moods := make([]string, 0)
	for _, e := range entries {
		if !seen[e.Mood] {
			seen[e.Mood] = true
			moods = append(moods, e.Mood)
		}
	}
	return moods
}

func distinctTags(entries []journal.Entry) []string {
	seen := make(map[string]bool)
	tags := make([]string, 0)
	for _, e := range entries {
		for _, t := range e.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}
