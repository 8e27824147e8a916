package voice

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestHTTPTranscriber_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    Outcome
		text    string
	}{
		{
			name: "recognized speech",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"text": "hello journal"}`)
			},
			want: OutcomeOK,
			text: "hello journal",
		},
		{
			name: "unrecognized speech",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"text": ""}`)
			},
			want: OutcomeUnrecognized,
		},
		{
			name: "service error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: OutcomeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			tr := NewHTTPTranscriber(srv.URL, time.Second)
			got := tr.Capture(context.Background())
			if got.Outcome != tt.want {
				t.Errorf("outcome = %q, want %q", got.Outcome, tt.want)
			}
			if got.Text != tt.text {
				t.Errorf("text = %q, want %q", got.Text, tt.text)
			}
			// Non-OK outcomes carry empty text.
			if got.Outcome != OutcomeOK && got.Text != "" {
				t.Errorf("non-ok outcome carried text %q", got.Text)
			}
		})
	}
}

func TestHTTPTranscriber_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, `{"text": "too late"}`)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL, 50*time.Millisecond)
	got := tr.Capture(context.Background())
	if got.Outcome != OutcomeTimeout {
		t.Errorf("outcome = %q, want %q", got.Outcome, OutcomeTimeout)
	}
}

func TestHTTPTranscriber_Unreachable(t *testing.T) {
	tr := NewHTTPTranscriber("http://127.0.0.1:1", time.Second)
	got := tr.Capture(context.Background())
	if got.Outcome != OutcomeTransport {
		t.Errorf("outcome = %q, want %q", got.Outcome, OutcomeTransport)
	}
}

// recordingSynth collects synthesized text and can fail or panic on demand.
type recordingSynth struct {
	mu      sync.Mutex
	items   []string
	failOn  string
	panicOn string
}

func (r *recordingSynth) Synthesize(ctx context.Context, text string) error {
	if text == r.panicOn && r.panicOn != "" {
		panic("synth blew up")
	}
	if text == r.failOn && r.failOn != "" {
		return fmt.Errorf("synthesis failed")
	}
	r.mu.Lock()
	r.items = append(r.items, text)
	r.mu.Unlock()
	return nil
}

func (r *recordingSynth) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}

func TestSpeaker_FIFOOrder(t *testing.T) {
	synth := &recordingSynth{}
	sp := NewSpeaker(synth, 8)

	sp.Speak("one")
	sp.Speak("two")
	sp.Speak("three")
	sp.Start(context.Background())
	sp.Stop(true)

	got := synth.got()
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Errorf("items = %v, want FIFO [one two three]", got)
	}
}

func TestSpeaker_FailureDoesNotStopConsumer(t *testing.T) {
	synth := &recordingSynth{failOn: "bad", panicOn: "worse"}
	sp := NewSpeaker(synth, 8)

	sp.Speak("first")
	sp.Speak("bad")
	sp.Speak("worse")
	sp.Speak("last")
	sp.Start(context.Background())
	sp.Stop(true)

	got := synth.got()
	if len(got) != 2 || got[0] != "first" || got[1] != "last" {
		t.Errorf("items = %v, want [first last]", got)
	}
}

func TestSpeaker_NonBlockingWhenFull(t *testing.T) {
	synth := &recordingSynth{}
	sp := NewSpeaker(synth, 1)

	// Consumer not started: second item must be dropped, not block.
	done := make(chan struct{})
	go func() {
		sp.Speak("kept")
		sp.Speak("dropped")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Speak blocked on a full queue")
	}

	sp.Start(context.Background())
	sp.Stop(true)
	got := synth.got()
	if len(got) != 1 || got[0] != "kept" {
		t.Errorf("items = %v, want [kept]", got)
	}
}

func TestSpeaker_StopDiscard(t *testing.T) {
	synth := &recordingSynth{}
	sp := NewSpeaker(synth, 8)

	sp.Speak("pending-1")
	sp.Speak("pending-2")
	sp.Start(context.Background())
	sp.Stop(false)

	// Items may race the discard flag, but nothing should arrive after Stop
	// returns and Speak after Stop is a no-op.
	sp.Speak("after-stop")
	for _, item := range synth.got() {
		if item == "after-stop" {
			t.Error("item enqueued after Stop was synthesized")
		}
	}
}
