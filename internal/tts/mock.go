package tts

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/audio"
)

const (
	mockSecondsPerRune = 0.06
	mockMinSeconds     = 0.2
	mockAmplitude      = 6000
)

// mockChunkPattern makes the mock deliver audio in uneven pieces, the way
// real engines do
var mockChunkPattern = []int{1800, 4410, 640, 3000}

// MockEngine is a development synthesizer that renders every utterance as a
// tone whose length follows the text and whose pitch follows the speaker.
type MockEngine struct {
	logger zerolog.Logger
}

// NewMockEngine creates the development synthesizer
func NewMockEngine(logger zerolog.Logger) *MockEngine {
	return &MockEngine{logger: logger}
}

func (e *MockEngine) Name() string { return "mock" }

func (e *MockEngine) Close() error { return nil }

// NewStream allocates a mock synthesis stream
func (e *MockEngine) NewStream(_ context.Context, opts Options) (Stream, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.Speed <= 0 {
		return nil, fmt.Errorf("invalid speed %v", opts.Speed)
	}

	s := &mockStream{opts: opts}
	s.pipeline = newPipeline(e.Name(), s.synthesize, e.logger)
	return s, nil
}

type mockStream struct {
	*pipeline
	opts Options
}

// render returns the tone for text
func (s *mockStream) render(text string) []byte {
	seconds := float64(utf8.RuneCountInString(text)) * mockSecondsPerRune / s.opts.Speed
	if seconds < mockMinSeconds {
		seconds = mockMinSeconds
	}
	frequency := 220 + 30*float64(s.opts.SpeakerID%16)
	return audio.Tone(s.opts.SampleRate, frequency, seconds, mockAmplitude)
}

func (s *mockStream) synthesize(ctx context.Context, text string, emit func([]byte) error) error {
	pcm := s.render(text)
	for i := 0; len(pcm) > 0; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := mockChunkPattern[i%len(mockChunkPattern)]
		if n > len(pcm) {
			n = len(pcm)
		}
		if err := emit(pcm[:n]); err != nil {
			return err
		}
		pcm = pcm[n:]
	}
	return nil
}

// Generate renders text into a WAV container
func (s *mockStream) Generate(_ context.Context, text string) (io.ReadCloser, error) {
	return audio.TempWAV(s.render(text), s.opts.SampleRate)
}
