// Package gateway wires the journal store, the assistant, the reminder
// scheduler and the chat channels together.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nyshlabs/reflective/internal/analytics"
	"github.com/nyshlabs/reflective/internal/bus"
	"github.com/nyshlabs/reflective/internal/channel"
	"github.com/nyshlabs/reflective/internal/chat"
	"github.com/nyshlabs/reflective/internal/config"
	"github.com/nyshlabs/reflective/internal/insight"
	"github.com/nyshlabs/reflective/internal/journal"
	"github.com/nyshlabs/reflective/internal/llm"
	"github.com/nyshlabs/reflective/internal/reminder"
	"github.com/nyshlabs/reflective/internal/voice"
)

// GeneratorFactory creates the LLM client (allows mocking in tests)
type GeneratorFactory func(cfg *config.Config) (llm.Generator, error)

// Options for creating a Gateway
type Options struct {
	GeneratorFactory GeneratorFactory
	Transcriber      voice.Transcriber // overrides the HTTP transcriber in tests
	SignalChan       chan os.Signal    // for testing signal handling
}

// DefaultGeneratorFactory creates the real OpenAI-compatible client
func DefaultGeneratorFactory(cfg *config.Config) (llm.Generator, error) {
	return llm.New(llm.Options{
		APIKey:      cfg.Provider.APIKey,
		BaseURL:     cfg.Provider.BaseURL,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
	})
}

type Gateway struct {
	cfg         *config.Config
	bus         *bus.MessageBus
	store       *journal.Store
	generator   llm.Generator
	sessions    *chat.Registry
	insight     *insight.Requester
	reminders   *reminder.Service
	speaker     *voice.Speaker
	transcriber voice.Transcriber
	channels    *channel.ChannelManager
	signalChan  chan os.Signal // for testing
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	store, err := journal.NewStore(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal store: %w", err)
	}
	g.store = store

	factory := opts.GeneratorFactory
	if factory == nil {
		factory = DefaultGeneratorFactory
	}
	gen, err := factory(cfg)
	if err != nil {
		_ = g.store.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	g.generator = gen

	g.sessions = chat.NewRegistry()
	g.insight = insight.NewRequester(gen, cfg.Insight.CharLimit)

	g.reminders = reminder.NewService(cfg.Store.RemindersPath)
	g.reminders.OnReminder = func(r reminder.Reminder) error {
		if r.Delivery.Channel == "" {
			log.Printf("[gateway] reminder %s due: %s", r.Name, r.Delivery.Message)
			return nil
		}
		msg := r.Delivery.Message
		if msg == "" {
			msg = fmt.Sprintf("Reminder: %s", r.Name)
		}
		g.bus.Outbound <- bus.OutboundMessage{
			Channel: r.Delivery.Channel,
			ChatID:  r.Delivery.To,
			Content: msg,
		}
		return nil
	}

	if cfg.Voice.Enabled && cfg.Voice.Endpoint != "" {
		synth := voice.NewHTTPSynthesizer(cfg.Voice.Endpoint)
		g.speaker = voice.NewSpeaker(synth, voice.DefaultQueueSize)
		g.transcriber = voice.NewHTTPTranscriber(cfg.Voice.Endpoint, time.Duration(cfg.Voice.TimeoutMs)*time.Millisecond)
	}
	if opts.Transcriber != nil {
		g.transcriber = opts.Transcriber
	}

	g.signalChan = opts.SignalChan

	chMgr, err := channel.NewChannelManagerWithGateway(cfg.Channels, cfg.Gateway, g.bus, g.apiHandler())
	if err != nil {
		_ = g.store.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// session returns the conversation for a bus message, seeding the system
// prompt on first use.
func (g *Gateway) session(key string) *chat.Session {
	sess := g.sessions.Get(key)
	if len(sess.Messages) == 0 && g.cfg.Provider.SystemPrompt != "" {
		sess.Messages = append(sess.Messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: g.cfg.Provider.SystemPrompt,
		})
	}
	return sess
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.reminders.Start(ctx); err != nil {
		log.Printf("[gateway] reminder start warning: %v", err)
	}

	if g.speaker != nil {
		g.speaker.Start(ctx)
	}

	go g.processLoop(ctx)

	log.Printf("[gateway] running on %s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	sess := g.session(msg.SessionKey())

	if reply, handled := g.handleCommand(ctx, sess, msg); handled {
		if reply != "" {
			g.bus.Outbound <- bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: reply,
			}
		}
		return
	}

	// Web UI clients get the reply streamed chunk by chunk; everything else
	// gets a single message.
	if msg.Channel == "webui" {
		reply, err := sess.AskStream(ctx, g.generator, msg.Content, func(chunk string) {
			g.bus.Outbound <- bus.OutboundMessage{
				Channel:  msg.Channel,
				ChatID:   msg.ChatID,
				Content:  chunk,
				Metadata: map[string]any{"type": "chunk"},
			}
		})
		if err != nil {
			log.Printf("[gateway] assistant error: %v", err)
			g.bus.Outbound <- bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: "Sorry, I could not reach the assistant. Please try again.",
			}
			return
		}
		g.bus.Outbound <- bus.OutboundMessage{
			Channel:  msg.Channel,
			ChatID:   msg.ChatID,
			Metadata: map[string]any{"type": "chunk", "done": true},
		}
		g.maybeSpeak(sess, reply)
		return
	}

	reply, err := sess.Ask(ctx, g.generator, msg.Content)
	if err != nil {
		log.Printf("[gateway] assistant error: %v", err)
		reply = "Sorry, I could not reach the assistant. Please try again."
	}
	if reply != "" {
		g.bus.Outbound <- bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: reply,
		}
	}
	g.maybeSpeak(sess, reply)
}

// handleCommand intercepts slash commands before the message reaches the
// assistant.
func (g *Gateway) handleCommand(ctx context.Context, sess *chat.Session, msg bus.InboundMessage) (string, bool) {
	text := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/journal":
		if rest == "" {
			return "Usage: /journal <entry text>", true
		}
		id, err := g.store.Append(ctx, rest, journal.DefaultMood, nil, time.Now())
		if err != nil {
			log.Printf("[gateway] journal append error: %v", err)
			return "Could not save that entry.", true
		}
		return fmt.Sprintf("Saved entry #%d.", id), true
	case "/streak":
		entries, err := g.store.All(ctx, journal.Descending)
		if err != nil {
			log.Printf("[gateway] journal read error: %v", err)
			return "Could not read the journal.", true
		}
		s := analytics.ComputeStreaks(entries)
		return fmt.Sprintf("Current streak: %d days. Longest: %d days.", s.Current, s.Longest), true
	case "/insight":
		entries, err := g.store.All(ctx, journal.Descending)
		if err != nil {
			log.Printf("[gateway] journal read error: %v", err)
			return "Could not read the journal.", true
		}
		summary, err := g.insight.Analyze(ctx, entries)
		if err != nil {
			var empty *insight.EmptyCorpusError
			if errors.As(err, &empty) {
				return "Write a few entries first, then ask again.", true
			}
			log.Printf("[gateway] insight error: %v", err)
			return "Could not reach the assistant for insights.", true
		}
		return summary, true
	case "/search":
		if rest == "" {
			return "Usage: /search <query>", true
		}
		entries, err := g.store.Search(ctx, rest, g.cfg.Search.Limit)
		if err != nil {
			log.Printf("[gateway] search error: %v", err)
			return "Search failed.", true
		}
		if len(entries) == 0 {
			return "No entries match.", true
		}
		var sb strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&sb, "%s (%s)\n%s\n\n", e.Timestamp.Format(journal.DateLayout), e.Mood, truncate(e.Text, 200))
		}
		return strings.TrimSpace(sb.String()), true
	case "/voice":
		sess.VoiceMode = !sess.VoiceMode
		if sess.VoiceMode {
			return "Voice replies on.", true
		}
		return "Voice replies off.", true

	case "/listen":
		if g.transcriber == nil {
			return "Voice input is not configured.", true
		}
		res := g.transcriber.Capture(ctx)
		if res.Outcome != voice.OutcomeOK {
			return fmt.Sprintf("I didn't catch that: %s.", res.Outcome), true
		}
		reply, err := sess.Ask(ctx, g.generator, res.Text)
		if err != nil {
			log.Printf("[gateway] listen: %v", err)
		}
		g.maybeSpeak(sess, reply)
		return fmt.Sprintf("You said: %s\n\n%s", res.Text, reply), true

	case "/save":
		path, err := sess.SaveTranscript(g.cfg.Store.TranscriptDir)
		if err != nil {
			log.Printf("[gateway] save transcript: %v", err)
			return "Couldn't save the transcript.", true
		}
		return fmt.Sprintf("Transcript saved to %s", path), true

	case "/clear":
		sess.Clear()
		return "Conversation cleared.", true
	default:
		return "", false
	}
}

func (g *Gateway) maybeSpeak(sess *chat.Session, reply string) {
	if g.speaker == nil || !sess.VoiceMode || reply == "" {
		return
	}
	g.speaker.Speak(reply)
}

func (g *Gateway) Shutdown() error {
	g.reminders.Stop()
	if g.speaker != nil {
		g.speaker.Stop(false)
	}
	_ = g.channels.StopAll()
	if g.store != nil {
		if err := g.store.Close(); err != nil {
			log.Printf("[gateway] close store warning: %v", err)
		}
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
