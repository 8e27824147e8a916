// Package voice plumbs the external speech services. Both directions are
// opaque collaborators: transcription is a blocking capture with named
// outcomes, synthesis is fire-and-forget through a bounded queue.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Outcome names why a capture returned the text it did. Non-OK outcomes
// carry empty text; the caller can show the reason without treating it as a
// failure.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeTimeout      Outcome = "no speech detected"
	OutcomeUnrecognized Outcome = "could not understand audio"
	OutcomeTransport    Outcome = "speech service unreachable"
)

// CaptureResult is what a capture attempt produced.
type CaptureResult struct {
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
}

// Transcriber converts one utterance of audio input to text.
type Transcriber interface {
	Capture(ctx context.Context) CaptureResult
}

// DefaultCaptureTimeout bounds how long a capture blocks on audio input.
const DefaultCaptureTimeout = 10 * time.Second

// HTTPTranscriber asks a speech-to-text service to record and transcribe one
// utterance. The service owns the microphone; this side only waits.
type HTTPTranscriber struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func NewHTTPTranscriber(endpoint string, timeout time.Duration) *HTTPTranscriber {
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	return &HTTPTranscriber{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout + 5*time.Second},
	}
}

func (t *HTTPTranscriber) Capture(ctx context.Context) CaptureResult {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]any{
		"timeoutSeconds": int(t.timeout.Seconds()),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/capture", bytes.NewReader(body))
	if err != nil {
		return CaptureResult{Outcome: OutcomeTransport}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return CaptureResult{Outcome: OutcomeTimeout}
		}
		return CaptureResult{Outcome: OutcomeTransport}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CaptureResult{Outcome: OutcomeTransport}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return CaptureResult{Outcome: OutcomeTransport}
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return CaptureResult{Outcome: OutcomeTransport}
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return CaptureResult{Outcome: OutcomeUnrecognized}
	}
	return CaptureResult{Text: text, Outcome: OutcomeOK}
}

// Synthesizer turns text into speech somewhere out of process.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) error
}

// HTTPSynthesizer posts text to a text-to-speech service.
type HTTPSynthesizer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSynthesizer(endpoint string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/speak", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts service status %d", resp.StatusCode)
	}
	return nil
}
