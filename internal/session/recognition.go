package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/stt"
)

// Recognition owns one recognition stream for the lifetime of a connection
type Recognition struct {
	engine     string
	stream     stt.Stream
	sampleRate int
	logger     zerolog.Logger
	metrics    *observability.Metrics

	closeOnce sync.Once
	closeErr  error
}

// StartRecognition allocates the session's stream from the preloaded engine
func StartRecognition(ctx context.Context, engine stt.Engine, sampleRate int, logger zerolog.Logger) (*Recognition, error) {
	if engine == nil {
		return nil, ErrEngineUnavailable
	}

	stream, err := engine.NewStream(ctx, sampleRate)
	observability.RecordStreamAllocation(engine.Name(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}

	return &Recognition{
		engine:     engine.Name(),
		stream:     stream,
		sampleRate: sampleRate,
		logger:     logger,
		metrics:    observability.NewSessionMetrics("asr"),
	}, nil
}

// Write forwards a PCM chunk to the engine
func (r *Recognition) Write(ctx context.Context, pcm []byte) error {
	if err := r.stream.Write(ctx, pcm); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	r.metrics.RecordAudioBytes("in", int64(len(pcm)))
	return nil
}

// Read returns the next result, or io.EOF once the stream has ended
func (r *Recognition) Read(ctx context.Context) (*stt.Result, error) {
	return r.stream.Read(ctx)
}

// Close closes the engine stream. Only the first call has an effect.
func (r *Recognition) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.stream.Close()
		if r.closeErr != nil {
			r.logger.Warn().Err(r.closeErr).Msg("asr: error closing stream")
		}
	})
	return r.closeErr
}

// Run relays audio from src into the engine and results from the engine to
// sink until the input ends or either side fails. Ending the input closes the
// stream; results already produced are still delivered before Run returns.
func (r *Recognition) Run(ctx context.Context, src AudioSource, sink ResultSink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.Close()

	r.metrics.RecordSessionStart()
	defer r.metrics.RecordSessionEnd()

	var g errgroup.Group
	g.Go(func() error {
		defer r.Close()
		return r.ingest(ctx, src)
	})
	g.Go(func() error {
		// the sibling may be blocked on the client; cancel unblocks it
		defer cancel()
		return r.emit(ctx, sink)
	})
	return g.Wait()
}

func (r *Recognition) ingest(ctx context.Context, src AudioSource) error {
	for {
		pcm, err := src.ReceiveAudio(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Debug().Err(err).Msg("asr: receive ended")
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if len(pcm) == 0 {
			r.logger.Debug().Msg("asr: end of audio")
			return nil
		}
		if err := r.Write(ctx, pcm); err != nil {
			r.logger.Error().Err(err).Msg("asr: engine write failed")
			observability.RecordEngineError(r.engine, "write")
			return nil
		}
	}
}

func (r *Recognition) emit(ctx context.Context, sink ResultSink) error {
	for {
		result, err := r.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				r.logger.Error().Err(err).Msg("asr: engine read failed")
				observability.RecordEngineError(r.engine, "read")
			}
			return nil
		}
		if err := sink.SendResult(ctx, result); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		r.metrics.RecordResult(result.Finished)
	}
}
