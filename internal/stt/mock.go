package stt

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexiqai/voiceapi/internal/audio"
	"github.com/lexiqai/voiceapi/internal/queue"
)

// MockEngine is a development recognizer. It segments audio with an energy
// endpointer and reports utterance durations instead of words.
type MockEngine struct{}

// NewMockEngine creates the development recognizer
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (e *MockEngine) Name() string { return "mock" }

func (e *MockEngine) Close() error { return nil }

// NewStream starts a mock recognition stream
func (e *MockEngine) NewStream(_ context.Context, sampleRate int) (Stream, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return &mockStream{
		endpointer: audio.NewEndpointer(sampleRate, nil),
		results:    queue.New[*Result](),
		sampleRate: sampleRate,
	}, nil
}

type mockStream struct {
	mu         sync.Mutex
	endpointer *audio.Endpointer
	results    *queue.Queue[*Result]
	sampleRate int
	index      int
	segment    int // bytes written since the last finished result
	closed     bool
}

func (s *mockStream) Write(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if len(pcm) == 0 {
		return nil
	}
	s.segment += len(pcm)

	for _, b := range s.endpointer.Feed(pcm) {
		if b == audio.SpeechEnd {
			s.emitLocked(true)
		}
	}
	if s.endpointer.Speaking() {
		s.emitLocked(false)
	}
	return nil
}

func (s *mockStream) emitLocked(finished bool) {
	s.results.Push(&Result{
		Text:     fmt.Sprintf("[utterance %d: %dms]", s.index, s.segment*1000/(2*s.sampleRate)),
		Index:    s.index,
		Finished: finished,
	})
	if finished {
		s.index++
		s.segment = 0
	}
}

func (s *mockStream) Read(ctx context.Context) (*Result, error) {
	return s.results.Pop(ctx)
}

// Close flushes an unfinished utterance as a final result, then ends the stream.
func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.segment > 0 {
		s.emitLocked(true)
	}
	s.endpointer.Reset()
	return s.results.CloseWrite()
}
