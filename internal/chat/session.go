// Package chat holds conversation state as explicit session values. Nothing
// here is ambient: each UI interaction receives a session, mutates it, and
// the caller keeps the result.
package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nyshlabs/reflective/internal/journal"
	"github.com/nyshlabs/reflective/internal/llm"
)

// TranscriptSearchLimit bounds SearchTranscript results, mirroring the
// journal search bound.
const TranscriptSearchLimit = 5

// Session is one conversation with the assistant.
type Session struct {
	ID        string
	Messages  []llm.Message
	VoiceMode bool
	StartedAt time.Time
}

func NewSession(id string) *Session {
	return &Session{ID: id, StartedAt: time.Now()}
}

// Ask sends the prompt with the session history and appends both turns. An
// upstream failure is recorded as the assistant turn so the transcript stays
// intact, and the error is still returned for the caller to report.
func (s *Session) Ask(ctx context.Context, g llm.Generator, prompt string) (string, error) {
	history := append([]llm.Message(nil), s.Messages...)
	s.Messages = append(s.Messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	reply, err := g.Chat(ctx, history, prompt)
	if err != nil {
		reply = fmt.Sprintf("I'm sorry, I encountered an error: %v", err)
		s.Messages = append(s.Messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
		return reply, err
	}

	s.Messages = append(s.Messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// AskStream streams the reply through onChunk and appends the reassembled
// text. On a mid-stream failure the partial text already produced is kept in
// the transcript.
func (s *Session) AskStream(ctx context.Context, g llm.Generator, prompt string, onChunk func(string)) (string, error) {
	history := append([]llm.Message(nil), s.Messages...)
	s.Messages = append(s.Messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	ch, err := g.ChatStream(ctx, history, prompt)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		sb.WriteString(chunk.Text)
		if onChunk != nil {
			onChunk(chunk.Text)
		}
	}

	full := sb.String()
	if streamErr != nil && full == "" {
		full = fmt.Sprintf("I'm sorry, I encountered an error: %v", streamErr)
	}
	s.Messages = append(s.Messages, llm.Message{Role: llm.RoleAssistant, Content: full})
	return full, streamErr
}

// Clear drops the conversation history but keeps the session identity and
// voice flag.
func (s *Session) Clear() {
	s.Messages = nil
}

// SearchTranscript returns at most limit messages containing the query as a
// case-insensitive substring, newest first.
func (s *Session) SearchTranscript(query string, limit int) []llm.Message {
	if limit <= 0 {
		limit = TranscriptSearchLimit
	}
	hits := make([]llm.Message, 0, limit)
	for i := len(s.Messages) - 1; i >= 0 && len(hits) < limit; i-- {
		if journal.MatchesFold(s.Messages[i].Content, query) {
			hits = append(hits, s.Messages[i])
		}
	}
	return hits
}

// SaveTranscript writes the conversation as markdown under dir and returns
// the file path.
func (s *Session) SaveTranscript(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create chats dir: %w", err)
	}

	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("chat_%s.md", now.Format("2006-01-02_15-04-05")))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Chat Session - %s\n\n", now.Format("2006-01-02 15:04:05")))
	for _, m := range s.Messages {
		role := "Assistant"
		if m.Role == llm.RoleUser {
			role = "User"
		}
		sb.WriteString(fmt.Sprintf("## %s\n%s\n\n", role, m.Content))
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// Registry hands out sessions keyed by channel:chat, one per conversation.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		s = NewSession(key)
		r.sessions[key] = s
	}
	return s
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}
