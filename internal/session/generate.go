package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/tts"
)

// GenerateRequest is the body of a one-shot synthesis request
type GenerateRequest struct {
	Text       string  `json:"text"`
	SpeakerID  int     `json:"sid"`
	SampleRate int     `json:"samplerate"`
	Speed      float64 `json:"speed"`
}

// DefaultGenerateRequest returns a request with the documented defaults
func DefaultGenerateRequest() GenerateRequest {
	return GenerateRequest{SpeakerID: 0, SampleRate: 16000, Speed: 1.0}
}

// Validate reports caller errors as ErrBadRequest
func (r GenerateRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Text) == "":
		return fmt.Errorf("%w: text is required", ErrBadRequest)
	case r.SampleRate <= 0:
		return fmt.Errorf("%w: samplerate must be positive", ErrBadRequest)
	case r.Speed <= 0:
		return fmt.Errorf("%w: speed must be positive", ErrBadRequest)
	case r.SpeakerID < 0:
		return fmt.Errorf("%w: sid must not be negative", ErrBadRequest)
	}
	return nil
}

// Generate synthesizes req.Text on a fresh stream and returns the engine's
// audio container unchanged. Closing the returned reader closes the stream.
func Generate(ctx context.Context, engine tts.Engine, req GenerateRequest, logger zerolog.Logger) (io.ReadCloser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, ErrEngineUnavailable
	}

	start := time.Now()
	stream, err := engine.NewStream(ctx, tts.Options{
		SpeakerID:  req.SpeakerID,
		SampleRate: req.SampleRate,
		Speed:      req.Speed,
	})
	observability.RecordStreamAllocation(engine.Name(), err == nil)
	if err != nil {
		logger.Error().Err(err).Msg("tts: failed to allocate tts stream")
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}

	body, err := stream.Generate(ctx, req.Text)
	if err != nil {
		stream.Close()
		logger.Error().Err(err).Msg("tts: generate failed")
		observability.RecordEngineError(engine.Name(), "generate")
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	observability.ObserveGenerateLatency(time.Since(start))

	logger.Info().
		Str("text", req.Text).
		Int("sid", req.SpeakerID).
		Int("samplerate", req.SampleRate).
		Float64("speed", req.Speed).
		Msg("tts: generate")
	return &generateReader{ReadCloser: body, stream: stream}, nil
}

type generateReader struct {
	io.ReadCloser
	stream tts.Stream
	once   sync.Once
	err    error
}

func (g *generateReader) Close() error {
	g.once.Do(func() {
		g.err = g.ReadCloser.Close()
		if err := g.stream.Close(); g.err == nil {
			g.err = err
		}
	})
	return g.err
}
