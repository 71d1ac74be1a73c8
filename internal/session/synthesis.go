package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/voiceapi/internal/audio"
	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/tts"
)

// errStale reports that the stream being drained was replaced
var errStale = errors.New("stream replaced")

// SynthesisConfig is the per-connection snapshot of synthesis parameters
type SynthesisConfig struct {
	SampleRate int
	SpeakerID  int
	Speed      float64
	ChunkSize  int  // maximum bytes per audio frame
	Interrupt  bool // new text replaces the active stream
	Split      bool // synthesize sentence by sentence
}

// Synthesis owns zero or one active synthesis stream. Only SubmitText
// replaces the stream; the emit role reads it through a generation-stamped
// snapshot and never sends a frame from a generation that is no longer
// current.
type Synthesis struct {
	engine  tts.Engine
	cfg     SynthesisConfig
	logger  zerolog.Logger
	metrics *observability.Metrics

	// mu is held for writing while the stream is replaced and for reading
	// while a frame is being sent
	mu         sync.RWMutex
	stream     tts.Stream
	gen        uint64
	live       bool // stream has not reached end of stream
	closed     bool
	inputEnded bool
	changed    chan struct{}

	// owned by the single reader
	reading    tts.Stream
	readingGen uint64
}

// NewSynthesis creates a session; the first stream is allocated by the
// first SubmitText
func NewSynthesis(engine tts.Engine, cfg SynthesisConfig, logger zerolog.Logger) (*Synthesis, error) {
	if engine == nil {
		return nil, ErrEngineUnavailable
	}
	return &Synthesis{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewSessionMetrics("tts"),
		changed: make(chan struct{}),
	}, nil
}

// signalLocked wakes the emit role after a state change
func (s *Synthesis) signalLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// SubmitText queues text for synthesis. With Interrupt set, or when no
// stream is live, the current stream is closed and a fresh one allocated
// before the text is written.
func (s *Synthesis) SubmitText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.inputEnded {
		return ErrClosed
	}

	if s.cfg.Interrupt || s.stream == nil || !s.live {
		if s.stream != nil {
			if s.live {
				s.metrics.RecordInterrupt()
				s.logger.Info().Msg("tts: stream interrupt")
			}
			s.closeStreamLocked()
		}

		stream, err := s.engine.NewStream(ctx, tts.Options{
			SpeakerID:  s.cfg.SpeakerID,
			SampleRate: s.cfg.SampleRate,
			Speed:      s.cfg.Speed,
		})
		observability.RecordStreamAllocation(s.engine.Name(), err == nil)
		if err != nil {
			s.logger.Error().Err(err).Msg("tts: failed to allocate tts stream")
			return fmt.Errorf("%w: %v", ErrAllocationFailed, err)
		}

		s.stream = stream
		s.gen++
		s.live = true
		s.signalLocked()
	}

	s.logger.Info().Str("text", text).Bool("split", s.cfg.Split).Msg("tts: received")
	if err := s.stream.Write(ctx, text, s.cfg.Split); err != nil {
		if errors.Is(err, tts.ErrEngineStart) {
			s.logger.Error().Err(err).Msg("tts: failed to start tts stream")
			s.closeStreamLocked()
			return fmt.Errorf("%w: %v", ErrAllocationFailed, err)
		}
		s.logger.Error().Err(err).Msg("tts: engine write failed, ending stream")
		observability.RecordEngineError(s.engine.Name(), "write")
		s.closeStreamLocked()
	}
	return nil
}

// closeStreamLocked closes and forgets the active stream, best effort
func (s *Synthesis) closeStreamLocked() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("tts: error closing stream")
	}
	s.stream = nil
	s.live = false
	s.gen++
	s.signalLocked()
}

// CloseInput marks the end of text. The live stream finishes what was already
// submitted; once it ends, Read reports ErrClosed and Run returns.
func (s *Synthesis) CloseInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.inputEnded {
		return nil
	}
	s.inputEnded = true
	if s.stream != nil && s.live {
		if err := s.stream.CloseInput(); err != nil {
			s.logger.Warn().Err(err).Msg("tts: error ending stream input")
			s.closeStreamLocked()
		}
	}
	s.signalLocked()
	return nil
}

// Close closes the active stream and ends the session. Safe to call more
// than once.
func (s *Synthesis) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.closeStreamLocked()
	s.signalLocked()
	return nil
}

// current waits until a live stream exists and returns it with its generation
func (s *Synthesis) current(ctx context.Context) (tts.Stream, uint64, error) {
	for {
		s.mu.RLock()
		stream, gen, live, closed, inputEnded, changed := s.stream, s.gen, s.live, s.closed, s.inputEnded, s.changed
		s.mu.RUnlock()

		if closed {
			return nil, 0, ErrClosed
		}
		if stream != nil && live {
			return stream, gen, nil
		}
		if inputEnded {
			return nil, 0, ErrClosed
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

// ended records that generation gen reached end of stream
func (s *Synthesis) ended(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen == gen && s.live {
		s.live = false
		s.signalLocked()
	}
}

func (s *Synthesis) isCurrent(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen == gen
}

// next returns the next event of the active stream with its generation.
// It reports io.EOF once when that stream ends.
func (s *Synthesis) next(ctx context.Context) (*tts.Result, uint64, error) {
	for {
		if s.reading == nil {
			stream, gen, err := s.current(ctx)
			if err != nil {
				return nil, 0, err
			}
			s.reading, s.readingGen = stream, gen
		}

		stream, gen := s.reading, s.readingGen
		result, err := stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			s.reading = nil
			if !s.isCurrent(gen) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				s.logger.Error().Err(err).Msg("tts: engine read failed")
				observability.RecordEngineError(s.engine.Name(), "read")
			}
			s.ended(gen)
			return nil, gen, io.EOF
		}
		if !s.isCurrent(gen) {
			s.reading = nil
			continue
		}
		return result, gen, nil
	}
}

// Read waits for an active stream and returns its next event, or io.EOF
// when that stream ends. Events of a replaced stream are never returned.
// After CloseInput, Read returns ErrClosed once the last stream has ended.
// Read must not be called concurrently with Run.
func (s *Synthesis) Read(ctx context.Context) (*tts.Result, error) {
	result, _, err := s.next(ctx)
	return result, err
}

// forward sends one event of generation gen. The read lock keeps the stream
// from being replaced while its frames are on the wire.
func (s *Synthesis) forward(ctx context.Context, sink AudioSink, gen uint64, result *tts.Result) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.gen != gen {
		return errStale
	}

	if result.Finished {
		if err := sink.SendMarker(ctx, result); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		s.metrics.RecordResult(true)
		return nil
	}

	for _, frame := range audio.SplitFrames(result.PCM, s.cfg.ChunkSize) {
		if err := sink.SendAudio(ctx, frame); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		s.metrics.RecordFrame(len(frame))
	}
	return nil
}

// Run reads text from src and streams audio to sink until the client goes
// away or a stream cannot be allocated. An empty text ends the input; Run
// then returns once the audio already submitted has been sent.
func (s *Synthesis) Run(ctx context.Context, src TextSource, sink AudioSink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.Close()

	s.metrics.RecordSessionStart()
	defer s.metrics.RecordSessionEnd()

	var g errgroup.Group
	g.Go(func() error {
		err := s.ingest(ctx, src)
		if err != nil {
			cancel()
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		return s.emit(ctx, sink)
	})
	return g.Wait()
}

func (s *Synthesis) ingest(ctx context.Context, src TextSource) error {
	for {
		text, err := src.ReceiveText(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Debug().Err(err).Msg("tts: receive ended")
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if text == "" {
			s.logger.Debug().Msg("tts: end of input")
			return s.CloseInput()
		}
		if err := s.SubmitText(ctx, text); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (s *Synthesis) emit(ctx context.Context, sink AudioSink) error {
	for {
		result, gen, err := s.next(ctx)
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			return nil
		}

		if err := s.forward(ctx, sink, gen, result); err != nil {
			if errors.Is(err, errStale) {
				s.reading = nil
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
