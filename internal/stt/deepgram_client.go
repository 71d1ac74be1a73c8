package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/queue"
	"github.com/lexiqai/voiceapi/internal/resilience"
)

// DeepgramConfig configures the Deepgram streaming engine
type DeepgramConfig struct {
	APIKey   string
	Model    string // nova-2, enhanced, base
	Language string

	MaxFailures  int
	ResetTimeout time.Duration
	Reconnect    *resilience.ReconnectConfig
}

// finalizeTimeout bounds how long Close waits for Deepgram to flush the last
// utterance
const finalizeTimeout = 2 * time.Second

// liveClient is the part of the Deepgram live client a stream uses
type liveClient interface {
	Write(p []byte) (int, error)
	Finalize() error
	Stop()
}

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	stream *deepgramStream
}

// Message forwards transcripts to the stream
func (m *messageCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	m.stream.handleMessage(msg)
	return nil
}

// Close marks the end of the stream when Deepgram hangs up
func (m *messageCallbackHandler) Close(*msginterfaces.CloseResponse) error {
	m.stream.markFinalized()
	m.stream.results.CloseWrite()
	return nil
}

// Error ends the stream; engine errors are not retried mid-utterance
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.stream.handleError(errorResponse)
	return nil
}

// DeepgramEngine recognizes speech with Deepgram's live websocket API,
// one websocket per stream.
type DeepgramEngine struct {
	cfg            DeepgramConfig
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewDeepgramEngine creates the Deepgram engine
func NewDeepgramEngine(cfg DeepgramConfig, logger zerolog.Logger) (*DeepgramEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deepgram api key is required")
	}

	circuitBreaker := resilience.NewCircuitBreaker("deepgram", cfg.MaxFailures, cfg.ResetTimeout)
	circuitBreaker.OnStateChange(observability.ObserveCircuitBreaker)

	return &DeepgramEngine{
		cfg:            cfg,
		circuitBreaker: circuitBreaker,
		logger:         logger,
	}, nil
}

func (d *DeepgramEngine) Name() string { return "deepgram" }

func (d *DeepgramEngine) Close() error { return nil }

// NewStream opens a live transcription websocket for linear16 audio at sampleRate
func (d *DeepgramEngine) NewStream(ctx context.Context, sampleRate int) (Stream, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s := newDeepgramStream(d.circuitBreaker, d.logger, cancel)

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       d.cfg.Language,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     sampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		stream:                 s,
	}

	err := d.circuitBreaker.Call(func() error {
		return resilience.Reconnect(ctx, d.logger, func(context.Context) error {
			client, err := listenClient.NewWSUsingCallback(streamCtx, d.cfg.APIKey, nil, tOptions, callback)
			if err != nil {
				return fmt.Errorf("failed to create Deepgram client: %w", err)
			}
			if !client.Connect() {
				return errors.New("failed to connect to Deepgram")
			}
			s.client = client
			return nil
		}, d.cfg.Reconnect)
	})
	if err != nil {
		cancel()
		return nil, err
	}

	d.logger.Debug().
		Str("model", d.cfg.Model).
		Str("language", d.cfg.Language).
		Int("sample_rate", sampleRate).
		Msg("Deepgram stream started")
	return s, nil
}

type deepgramStream struct {
	client          liveClient
	results         *queue.Queue[*Result]
	circuitBreaker  *resilience.CircuitBreaker
	logger          zerolog.Logger
	cancel          context.CancelFunc
	finalizeTimeout time.Duration

	// finalized is closed once Deepgram answered the finalize request or
	// the connection went away
	finalized    chan struct{}
	finalizeOnce sync.Once

	mu        sync.Mutex
	index     int
	closed    bool
	closeOnce sync.Once
}

func newDeepgramStream(cb *resilience.CircuitBreaker, logger zerolog.Logger, cancel context.CancelFunc) *deepgramStream {
	return &deepgramStream{
		results:         queue.New[*Result](),
		circuitBreaker:  cb,
		logger:          logger,
		cancel:          cancel,
		finalizeTimeout: finalizeTimeout,
		finalized:       make(chan struct{}),
	}
}

func (s *deepgramStream) markFinalized() {
	s.finalizeOnce.Do(func() { close(s.finalized) })
}

func (s *deepgramStream) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}
	if msg.FromFinalize {
		defer s.markFinalized()
	}
	if len(msg.Channel.Alternatives) == 0 {
		return
	}
	transcript := msg.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return
	}

	s.mu.Lock()
	result := &Result{Text: transcript, Index: s.index, Finished: msg.IsFinal}
	if msg.IsFinal {
		s.index++
	}
	s.mu.Unlock()

	s.results.Push(result)
}

func (s *deepgramStream) handleError(errorResponse *msginterfaces.ErrorResponse) {
	s.logger.Error().
		Interface("error", errorResponse).
		Msg("Deepgram error, ending stream")
	s.circuitBreaker.RecordResult(false)
	observability.RecordEngineError("deepgram", "read")
	s.markFinalized()
	s.results.CloseWrite()
}

func (s *deepgramStream) Write(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStreamClosed
	}

	if _, err := s.client.Write(pcm); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return nil
}

func (s *deepgramStream) Read(ctx context.Context) (*Result, error) {
	return s.results.Pop(ctx)
}

// Close asks Deepgram to flush the pending utterance, waits briefly for the
// final transcript, then closes the connection. Results already received
// stay readable.
func (s *deepgramStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.client.Finalize(); err != nil {
			s.logger.Debug().Err(err).Msg("Deepgram finalize failed")
		} else {
			select {
			case <-s.finalized:
			case <-time.After(s.finalizeTimeout):
				s.logger.Warn().Dur("timeout", s.finalizeTimeout).Msg("Deepgram did not finalize in time")
			}
		}

		s.client.Stop()
		s.cancel()
		s.results.CloseWrite()
	})
	return nil
}
