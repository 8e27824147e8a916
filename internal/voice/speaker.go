package voice

import (
	"context"
	"log"
	"sync"
)

// DefaultQueueSize bounds pending speech requests.
const DefaultQueueSize = 32

// Speaker drains text-to-speech requests through a single consumer. Producers
// never block: when the queue is full the item is dropped and logged. A
// failure synthesizing one item never stops the consumer loop.
type Speaker struct {
	synth   Synthesizer
	queue   chan string
	mu      sync.Mutex
	started bool
	closed  bool
	discard bool
	done    chan struct{}
}

func NewSpeaker(synth Synthesizer, queueSize int) *Speaker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Speaker{
		synth: synth,
		queue: make(chan string, queueSize),
		done:  make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Safe to call once.
func (s *Speaker) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.consume(ctx)
}

// Speak enqueues text without blocking, fire-and-forget relative to the
// caller. Empty text is ignored.
func (s *Speaker) Speak(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.queue <- text:
	default:
		log.Printf("[voice] speech queue full, dropping item")
	}
	s.mu.Unlock()
}

// Stop shuts the queue down. With drain=true the consumer finishes pending
// items first; otherwise they are discarded explicitly.
func (s *Speaker) Stop(drain bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.discard = !drain
	started := s.started
	close(s.queue)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

func (s *Speaker) consume(ctx context.Context) {
	defer close(s.done)
	for text := range s.queue {
		s.mu.Lock()
		discard := s.discard
		s.mu.Unlock()
		if discard {
			continue
		}
		s.speakOne(ctx, text)
	}
}

// speakOne isolates per-item failures so one bad item cannot crash the loop.
func (s *Speaker) speakOne(ctx context.Context, text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[voice] synthesizer panic: %v", r)
		}
	}()
	if err := s.synth.Synthesize(ctx, text); err != nil {
		log.Printf("[voice] synthesize failed: %v", err)
	}
}
