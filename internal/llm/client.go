package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client implements Generator against any OpenAI-compatible endpoint.
type Client struct {
	model       llms.Model
	temperature float64
}

// Options for constructing a Client. BaseURL may point at any
// OpenAI-compatible gateway; Model names the hosted model.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("llm: api key not set")
	}

	clientOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}
	if opts.Model != "" {
		clientOpts = append(clientOpts, openai.WithModel(opts.Model))
	}

	m, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	temp := opts.Temperature
	if temp <= 0 {
		temp = 0.7
	}
	return &Client{model: m, temperature: temp}, nil
}

// NewWithModel wires an existing model, used by tests to inject fakes.
func NewWithModel(m llms.Model, temperature float64) *Client {
	if temperature <= 0 {
		temperature = 0.7
	}
	return &Client{model: m, temperature: temperature}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, nil, prompt)
}

func (c *Client) GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	return c.ChatStream(ctx, nil, prompt)
}

func (c *Client) Chat(ctx context.Context, history []Message, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, toContent(history, prompt),
		llms.WithTemperature(c.temperature))
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &UpstreamError{Err: fmt.Errorf("empty response")}
	}
	return resp.Choices[0].Content, nil
}

// ChatStream yields response text incrementally. Chunks already produced
// before a failure are delivered before the terminal error chunk, so the
// caller keeps whatever text the model managed to emit.
func (c *Client) ChatStream(ctx context.Context, history []Message, prompt string) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk)

	go func() {
		defer close(out)

		_, err := c.model.GenerateContent(ctx, toContent(history, prompt),
			llms.WithTemperature(c.temperature),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case out <- StreamChunk{Text: string(chunk)}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}))
		if err != nil {
			out <- StreamChunk{Err: &UpstreamError{Err: err}}
		}
	}()

	return out, nil
}

func toContent(history []Message, prompt string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llms.MessageContent{
			Role:  roleType(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	if strings.TrimSpace(prompt) != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		})
	}
	return messages
}

func roleType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
