package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/queue"
	"github.com/lexiqai/voiceapi/internal/subprocess"
)

// ExecOptions are passed to the recognizer command as flags
type ExecOptions struct {
	Provider   string
	Threads    int
	Model      string
	Language   string
	ModelsRoot string
}

// ExecEngine runs one recognizer process per stream. The process reads
// 16-bit PCM on stdin and writes one JSON result per line on stdout.
type ExecEngine struct {
	argv   []string
	opts   ExecOptions
	logger zerolog.Logger
}

// NewExecEngine parses command and checks that it can be executed
func NewExecEngine(command string, opts ExecOptions, logger zerolog.Logger) (*ExecEngine, error) {
	argv, err := subprocess.ParseCommand(command)
	if err != nil {
		return nil, fmt.Errorf("asr command: %w", err)
	}
	if err := subprocess.Resolve(argv); err != nil {
		return nil, fmt.Errorf("asr command: %w", err)
	}
	return &ExecEngine{argv: argv, opts: opts, logger: logger}, nil
}

func (e *ExecEngine) Name() string { return "exec" }

func (e *ExecEngine) Close() error { return nil }

func (e *ExecEngine) args(sampleRate int) []string {
	args := append([]string{}, e.argv...)
	args = append(args, "--sample-rate", strconv.Itoa(sampleRate))
	if e.opts.Provider != "" {
		args = append(args, "--provider", e.opts.Provider)
	}
	if e.opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(e.opts.Threads))
	}
	if e.opts.Model != "" {
		args = append(args, "--model", e.opts.Model)
	}
	if e.opts.Language != "" {
		args = append(args, "--lang", e.opts.Language)
	}
	if e.opts.ModelsRoot != "" {
		args = append(args, "--models-root", e.opts.ModelsRoot)
	}
	return args
}

// NewStream starts a recognizer process for audio at sampleRate
func (e *ExecEngine) NewStream(_ context.Context, sampleRate int) (Stream, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	proc, err := subprocess.Start(e.args(sampleRate), e.logger)
	if err != nil {
		return nil, err
	}

	s := &execStream{
		proc:    proc,
		results: queue.New[*Result](),
		logger:  e.logger,
	}
	go s.readLoop()
	return s, nil
}

type execStream struct {
	proc    *subprocess.Process
	results *queue.Queue[*Result]
	logger  zerolog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

func (s *execStream) readLoop() {
	err := s.proc.Lines(func(line []byte) error {
		var r Result
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("decode asr result: %w", err)
		}
		return s.results.Push(&r)
	})
	if err != nil {
		// the process may still be writing; stop it so Wait returns
		s.proc.Kill()
	}
	if waitErr := s.proc.Wait(); err == nil && waitErr != nil {
		err = fmt.Errorf("asr process: %w", waitErr)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Recognizer stream ended with error")
	}
	s.results.CloseWithError(err)
}

func (s *execStream) Write(_ context.Context, pcm []byte) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	if err := s.proc.Write(pcm); err != nil {
		return fmt.Errorf("write asr input: %w", err)
	}
	return nil
}

func (s *execStream) Read(ctx context.Context) (*Result, error) {
	return s.results.Pop(ctx)
}

// Close ends the input. The process flushes its last results and exits;
// a process that lingers is killed in the background.
func (s *execStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.proc.CloseInput()
		go s.proc.Stop()
	})
	return nil
}
