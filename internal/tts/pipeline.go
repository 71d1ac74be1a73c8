package tts

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/queue"
)

// synthFunc renders one utterance, handing audio to emit as it is produced
type synthFunc func(ctx context.Context, text string, emit func(pcm []byte) error) error

// pipeline turns queued texts into events on a single worker goroutine, so
// utterances are synthesized strictly in submission order.
type pipeline struct {
	engine  string
	synth   synthFunc
	jobs    *queue.Queue[string]
	results *queue.Queue[*Result]
	logger  zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
}

func newPipeline(engine string, synth synthFunc, logger zerolog.Logger) *pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &pipeline{
		engine:  engine,
		synth:   synth,
		jobs:    queue.New[string](),
		results: queue.New[*Result](),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Write queues text, split into sentences when split is set
func (p *pipeline) Write(_ context.Context, text string, split bool) error {
	p.startOnce.Do(func() { go p.run() })

	parts := []string{text}
	if split {
		parts = SplitSentences(text)
	}
	for _, part := range parts {
		if err := p.jobs.Push(part); err != nil {
			return ErrStreamClosed
		}
	}
	return nil
}

func (p *pipeline) Read(ctx context.Context) (*Result, error) {
	return p.results.Pop(ctx)
}

func (p *pipeline) run() {
	index := 0
	for {
		text, err := p.jobs.Pop(p.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.results.CloseWrite()
			}
			return
		}

		err = p.synth(p.ctx, text, func(pcm []byte) error {
			if len(pcm) == 0 {
				return nil
			}
			return p.results.Push(&Result{PCM: pcm})
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
				p.logger.Error().Err(err).Str("text", text).Msg("Synthesis failed, ending stream")
				observability.RecordEngineError(p.engine, "synthesize")
			}
			p.results.CloseWrite()
			return
		}

		if p.results.Push(&Result{Finished: true, Index: index, Text: text}) != nil {
			return
		}
		index++
	}
}

// CloseInput lets the worker finish the queued texts, then ends the results
func (p *pipeline) CloseInput() error {
	p.startOnce.Do(func() { go p.run() })
	return p.jobs.CloseWrite()
}

// Close stops the worker and drops unsent text and audio
func (p *pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.jobs.Discard()
		p.results.Discard()
	})
	return nil
}
