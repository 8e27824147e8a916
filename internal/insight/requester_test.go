package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nyshlabs/reflective/internal/journal"
	"github.com/nyshlabs/reflective/internal/llm"
)

// fakeGenerator records the prompt it was handed.
type fakeGenerator struct {
	prompt string
	reply  string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, prompt string) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fakeGenerator) Chat(ctx context.Context, history []llm.Message, prompt string) (string, error) {
	return f.Generate(ctx, prompt)
}

func (f *fakeGenerator) ChatStream(ctx context.Context, history []llm.Message, prompt string) (<-chan llm.StreamChunk, error) {
	return f.GenerateStream(ctx, prompt)
}

func entryAt(id int64, ts time.Time, text, mood string, tags ...string) journal.Entry {
	return journal.Entry{ID: id, Timestamp: ts, Text: text, Mood: mood, Tags: tags}
}

func TestAnalyze_EmptyCorpus(t *testing.T) {
	fake := &fakeGenerator{}
	r := NewRequester(fake, 0)

	_, err := r.Analyze(context.Background(), nil)
	var eerr *EmptyCorpusError
	if !errors.As(err, &eerr) {
		t.Fatalf("error = %v, want EmptyCorpusError", err)
	}
	// No external request issued.
	if fake.calls != 0 {
		t.Errorf("generator called %d times, want 0", fake.calls)
	}
}

func TestBuildPrompt_MoodsAndTags(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.Local)
	entries := []journal.Entry{
		entryAt(1, base, "slow start", "😔 Low", "sleep"),
		entryAt(2, base.Add(24*time.Hour), "better day", "😄 Great", "study", "sleep"),
	}

	r := NewRequester(&fakeGenerator{}, 0)
	prompt, err := r.BuildPrompt(entries)
	if err != nil {
		t.Fatalf("BuildPrompt error: %v", err)
	}

	for _, want := range []string{"😔 Low", "😄 Great", "sleep", "study", "slow start", "better day"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	// Newest entry text appears before the older one.
	if strings.Index(prompt, "better day") > strings.Index(prompt, "slow start") {
		t.Error("entries not ordered newest first")
	}
}

func TestBuildPrompt_TruncatesOldest(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.Local)
	long := strings.Repeat("x", 400)
	entries := make([]journal.Entry, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, entryAt(int64(i+1), base.Add(time.Duration(i)*time.Hour),
			fmt.Sprintf("entry-%d %s", i, long), "🙂 Okay"))
	}

	r := NewRequester(&fakeGenerator{}, 1000)
	prompt, err := r.BuildPrompt(entries)
	if err != nil {
		t.Fatalf("BuildPrompt error: %v", err)
	}

	if !strings.Contains(prompt, "entry-9") {
		t.Error("newest entry dropped by truncation")
	}
	if strings.Contains(prompt, "entry-0 ") {
		t.Error("oldest entry should have been truncated away")
	}
}

func TestAnalyze_UpstreamErrorSurfaces(t *testing.T) {
	upstream := &llm.UpstreamError{Err: fmt.Errorf("503")}
	fake := &fakeGenerator{err: upstream}
	r := NewRequester(fake, 0)

	entries := []journal.Entry{entryAt(1, time.Now(), "hello", "🙂 Okay")}
	_, err := r.Analyze(context.Background(), entries)
	var uerr *llm.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if fake.calls != 1 {
		t.Errorf("generator called %d times, want exactly 1 (no retry)", fake.calls)
	}
}
