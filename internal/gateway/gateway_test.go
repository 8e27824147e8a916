package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nyshlabs/reflective/internal/bus"
	"github.com/nyshlabs/reflective/internal/calendar"
	"github.com/nyshlabs/reflective/internal/config"
	"github.com/nyshlabs/reflective/internal/journal"
	"github.com/nyshlabs/reflective/internal/llm"
	"github.com/nyshlabs/reflective/internal/reminder"
	"github.com/nyshlabs/reflective/internal/voice"
)

// fakeGenerator implements llm.Generator for testing
type fakeGenerator struct {
	reply  string
	chunks []string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.Chat(ctx, nil, prompt)
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, prompt string) (<-chan llm.StreamChunk, error) {
	return f.ChatStream(ctx, nil, prompt)
}

func (f *fakeGenerator) Chat(ctx context.Context, history []llm.Message, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) ChatStream(ctx context.Context, history []llm.Message, prompt string) (<-chan llm.StreamChunk, error) {
	f.calls++
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		if f.err != nil {
			ch <- llm.StreamChunk{Err: f.err}
			return
		}
		for _, c := range f.chunks {
			ch <- llm.StreamChunk{Text: c}
		}
	}()
	return ch, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.DBPath = filepath.Join(tmpDir, "journal.db")
	cfg.Store.RemindersPath = filepath.Join(tmpDir, "reminders.json")
	cfg.Store.TranscriptDir = filepath.Join(tmpDir, "transcripts")
	cfg.Channels.WebUI.Enabled = false
	cfg.Provider.SystemPrompt = "You are a test companion."
	return cfg
}

func newTestGateway(t *testing.T, gen llm.Generator) *Gateway {
	t.Helper()
	cfg := testConfig(t)
	g, err := NewWithOptions(cfg, Options{
		GeneratorFactory: func(*config.Config) (llm.Generator, error) { return gen, nil },
	})
	if err != nil {
		t.Fatalf("NewWithOptions error: %v", err)
	}
	t.Cleanup(func() { _ = g.store.Close() })
	return g
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long message", 10, "this is a ..."},
		{"", 5, ""},
	}

	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestGateway_SessionSeedsSystemPrompt(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{reply: "hi"})

	sess := g.session("telegram:42")
	if len(sess.Messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(sess.Messages))
	}
	if sess.Messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q, want system", sess.Messages[0].Role)
	}

	// Same key returns the same session without re-seeding.
	again := g.session("telegram:42")
	if len(again.Messages) != 1 {
		t.Errorf("re-seeded system prompt, len = %d", len(again.Messages))
	}
}

func TestGateway_HandleInbound_Reply(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{reply: "the answer"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "1",
		ChatID:   "42",
		Content:  "what do you think?",
	}

	select {
	case out := <-g.bus.Outbound:
		if out.Content != "the answer" {
			t.Errorf("content = %q, want 'the answer'", out.Content)
		}
		if out.Channel != "telegram" || out.ChatID != "42" {
			t.Errorf("routing = %s/%s, want telegram/42", out.Channel, out.ChatID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no outbound message")
	}
}

func TestGateway_HandleInbound_UpstreamError(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{err: fmt.Errorf("boom")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Content: "hello",
	}

	select {
	case out := <-g.bus.Outbound:
		if out.Content == "" {
			t.Error("expected apology message, got empty content")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no outbound message")
	}
}

func TestGateway_HandleInbound_WebUIStreams(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{chunks: []string{"one ", "two"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{
		Channel: "webui",
		ChatID:  "webui-1",
		Content: "stream it",
	}

	var got []bus.OutboundMessage
	for len(got) < 3 {
		select {
		case out := <-g.bus.Outbound:
			got = append(got, out)
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout after %d messages", len(got))
		}
	}

	if got[0].Content != "one " || got[1].Content != "two" {
		t.Errorf("chunks = %q, %q", got[0].Content, got[1].Content)
	}
	if done, _ := got[2].Metadata["done"].(bool); !done {
		t.Errorf("final message should carry done, got %+v", got[2])
	}
}

func TestGateway_Command_Journal(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{})

	sess := g.session("telegram:1")
	reply, handled := g.handleCommand(context.Background(), sess, bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "1",
		Content: "/journal had a productive morning",
	})
	if !handled {
		t.Fatal("command not handled")
	}
	if reply == "" {
		t.Error("expected confirmation reply")
	}

	entries, err := g.store.All(context.Background(), journal.Descending)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Text != "had a productive morning" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestGateway_Command_Streak(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{})

	ctx := context.Background()
	if _, err := g.store.Append(ctx, "today's entry", "🙂 Okay", nil, time.Now()); err != nil {
		t.Fatal(err)
	}

	sess := g.session("telegram:1")
	reply, handled := g.handleCommand(ctx, sess, bus.InboundMessage{Content: "/streak"})
	if !handled {
		t.Fatal("command not handled")
	}
	if reply != "Current streak: 1 days. Longest: 1 days." {
		t.Errorf("reply = %q", reply)
	}
}

func TestGateway_Command_InsightEmptyJournal(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be called"}
	g := newTestGateway(t, gen)

	sess := g.session("telegram:1")
	reply, handled := g.handleCommand(context.Background(), sess, bus.InboundMessage{Content: "/insight"})
	if !handled {
		t.Fatal("command not handled")
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times for empty journal, want 0", gen.calls)
	}
	if reply != "Write a few entries first, then ask again." {
		t.Errorf("reply = %q", reply)
	}
}

func TestGateway_Command_VoiceToggle(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{})

	sess := g.session("telegram:1")
	if sess.VoiceMode {
		t.Fatal("voice mode should start off")
	}

	reply, _ := g.handleCommand(context.Background(), sess, bus.InboundMessage{Content: "/voice"})
	if !sess.VoiceMode {
		t.Error("voice mode should be on")
	}
	if reply != "Voice replies on." {
		t.Errorf("reply = %q", reply)
	}

	g.handleCommand(context.Background(), sess, bus.InboundMessage{Content: "/voice"})
	if sess.VoiceMode {
		t.Error("voice mode should be off again")
	}
}

func TestGateway_Command_Clear(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{reply: "ok"})

	sess := g.session("telegram:1")
	ctx := context.Background()
	_, _ = sess.Ask(ctx, g.generator, "hello")

	g.handleCommand(ctx, sess, bus.InboundMessage{Content: "/clear"})
	if len(sess.Messages) != 0 {
		t.Errorf("messages after clear = %d, want 0", len(sess.Messages))
	}
}

type fakeTranscriber struct {
	result voice.CaptureResult
}

func (f *fakeTranscriber) Capture(ctx context.Context) voice.CaptureResult {
	return f.result
}

func TestGateway_Command_Listen(t *testing.T) {
	gen := &fakeGenerator{reply: "Sounds like a good day."}
	cfg := testConfig(t)
	g, err := NewWithOptions(cfg, Options{
		GeneratorFactory: func(*config.Config) (llm.Generator, error) { return gen, nil },
		Transcriber:      &fakeTranscriber{result: voice.CaptureResult{Text: "today went well", Outcome: voice.OutcomeOK}},
	})
	if err != nil {
		t.Fatalf("NewWithOptions error: %v", err)
	}
	t.Cleanup(func() { _ = g.store.Close() })

	sess := g.session("webui:webui-1")
	reply, handled := g.handleCommand(context.Background(), sess, bus.InboundMessage{Content: "/listen"})
	if !handled {
		t.Fatal("/listen was not handled")
	}
	if !strings.Contains(reply, "You said: today went well") {
		t.Errorf("reply = %q, want echoed transcription", reply)
	}
	if !strings.Contains(reply, "Sounds like a good day.") {
		t.Errorf("reply = %q, want assistant response", reply)
	}
}

func TestGateway_Command_Listen_NoSpeech(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	cfg := testConfig(t)
	g, err := NewWithOptions(cfg, Options{
		GeneratorFactory: func(*config.Config) (llm.Generator, error) { return gen, nil },
		Transcriber:      &fakeTranscriber{result: voice.CaptureResult{Outcome: voice.OutcomeTimeout}},
	})
	if err != nil {
		t.Fatalf("NewWithOptions error: %v", err)
	}
	t.Cleanup(func() { _ = g.store.Close() })

	sess := g.session("webui:webui-1")
	reply, handled := g.handleCommand(context.Background(), sess, bus.InboundMessage{Content: "/listen"})
	if !handled {
		t.Fatal("/listen was not handled")
	}
	if !strings.Contains(reply, "no speech detected") {
		t.Errorf("reply = %q, want timeout outcome", reply)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0 when nothing was heard", gen.calls)
	}
}

func TestGateway_Command_Listen_NotConfigured(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{})

	sess := g.session("telegram:1")
	reply, handled := g.handleCommand(context.Background(), sess, bus.InboundMessage{Content: "/listen"})
	if !handled {
		t.Fatal("/listen was not handled")
	}
	if !strings.Contains(reply, "not configured") {
		t.Errorf("reply = %q, want not-configured message", reply)
	}
}

func TestGateway_Command_Save(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{reply: "a fine day indeed"})

	sess := g.session("telegram:1")
	ctx := context.Background()
	_, _ = sess.Ask(ctx, g.generator, "how was my day?")

	reply, handled := g.handleCommand(ctx, sess, bus.InboundMessage{Content: "/save"})
	if !handled {
		t.Fatal("/save was not handled")
	}
	if !strings.Contains(reply, "Transcript saved to ") {
		t.Fatalf("reply = %q, want saved confirmation", reply)
	}

	files, err := os.ReadDir(g.cfg.Store.TranscriptDir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("transcript files = %d, want 1", len(files))
	}
	data, err := os.ReadFile(filepath.Join(g.cfg.Store.TranscriptDir, files[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(data), "a fine day indeed") {
		t.Errorf("transcript missing assistant turn: %s", data)
	}
}

func TestGateway_Command_NotACommand(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{})

	sess := g.session("telegram:1")
	_, handled := g.handleCommand(context.Background(), sess, bus.InboundMessage{Content: "just a message"})
	if handled {
		t.Error("plain text should not be handled as a command")
	}
}

func TestGateway_ReminderDelivery(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{})

	err := g.reminders.OnReminder(reminderFixture("evening pages", "telegram", "42", "time to write"))
	if err != nil {
		t.Fatalf("OnReminder error: %v", err)
	}

	select {
	case out := <-g.bus.Outbound:
		if out.Channel != "telegram" || out.ChatID != "42" {
			t.Errorf("routing = %s/%s", out.Channel, out.ChatID)
		}
		if out.Content != "time to write" {
			t.Errorf("content = %q", out.Content)
		}
	default:
		t.Fatal("no outbound message")
	}
}

func reminderFixture(name, channel, to, message string) reminder.Reminder {
	return reminder.NewReminder(name, time.Now().Add(time.Hour), calendar.RecurNone, reminder.Delivery{
		Channel: channel,
		To:      to,
		Message: message,
	}, "")
}

func TestGateway_Shutdown(t *testing.T) {
	g := newTestGateway(t, &fakeGenerator{})
	if err := g.Shutdown(); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
}
