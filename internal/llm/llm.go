// Package llm wraps the external text-generation collaborator. The rest of
// the system treats it as an opaque generate(prompt) -> text service; all
// provider detail stays behind the Generator interface.
package llm

import (
	"context"
	"fmt"
)

// Role labels for chat history turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamChunk is one element of a streamed generation. The sequence is
// finite and not restartable; a mid-stream failure arrives as a final chunk
// with Err set, after every successfully produced chunk has been delivered.
type StreamChunk struct {
	Text string
	Err  error
}

// Generator is the single operation the journaling core needs from the
// upstream model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error)
	Chat(ctx context.Context, history []Message, prompt string) (string, error)
	ChatStream(ctx context.Context, history []Message, prompt string) (<-chan StreamChunk, error)
}

// UpstreamError reports that the external text-generation service was
// unreachable or returned an error. It is surfaced to the caller, never
// retried here.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream model: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
