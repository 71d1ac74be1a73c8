package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/queue"
	"github.com/lexiqai/voiceapi/internal/subprocess"
)

// ExecOptions are passed to the synthesizer command as flags
type ExecOptions struct {
	Provider   string
	Threads    int
	Model      string
	ModelsRoot string
}

type execRequest struct {
	Text  string `json:"text"`
	Split bool   `json:"split"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Finished  bool   `json:"finished"`
	Index     int    `json:"idx"`
	Text      string `json:"text"`
}

// ExecEngine runs a synthesizer process per stream. The process reads one
// JSON request per line on stdin and answers with JSON lines carrying base64
// PCM and finished markers. With --generate it instead reads a single request
// and writes a WAV file to stdout.
type ExecEngine struct {
	argv   []string
	opts   ExecOptions
	logger zerolog.Logger
}

// NewExecEngine parses command and checks that it can be executed
func NewExecEngine(command string, opts ExecOptions, logger zerolog.Logger) (*ExecEngine, error) {
	argv, err := subprocess.ParseCommand(command)
	if err != nil {
		return nil, fmt.Errorf("tts command: %w", err)
	}
	if err := subprocess.Resolve(argv); err != nil {
		return nil, fmt.Errorf("tts command: %w", err)
	}
	return &ExecEngine{argv: argv, opts: opts, logger: logger}, nil
}

func (e *ExecEngine) Name() string { return "exec" }

func (e *ExecEngine) Close() error { return nil }

func (e *ExecEngine) args(opts Options) []string {
	args := append([]string{}, e.argv...)
	args = append(args,
		"--sample-rate", strconv.Itoa(opts.SampleRate),
		"--sid", strconv.Itoa(opts.SpeakerID),
		"--speed", strconv.FormatFloat(opts.Speed, 'f', -1, 64),
	)
	if e.opts.Provider != "" {
		args = append(args, "--provider", e.opts.Provider)
	}
	if e.opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(e.opts.Threads))
	}
	if e.opts.Model != "" {
		args = append(args, "--model", e.opts.Model)
	}
	if e.opts.ModelsRoot != "" {
		args = append(args, "--models-root", e.opts.ModelsRoot)
	}
	return args
}

// NewStream allocates a stream; the process starts with the first Write
func (e *ExecEngine) NewStream(_ context.Context, opts Options) (Stream, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.Speed <= 0 {
		return nil, fmt.Errorf("invalid speed %v", opts.Speed)
	}
	return &execStream{
		argv:    e.args(opts),
		results: queue.New[*Result](),
		logger:  e.logger,
	}, nil
}

type execStream struct {
	argv    []string
	results *queue.Queue[*Result]
	logger  zerolog.Logger

	mu         sync.Mutex
	proc       *subprocess.Process
	closed     bool
	inputEnded bool
}

func (s *execStream) Write(_ context.Context, text string, split bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.inputEnded {
		return ErrStreamClosed
	}
	if s.proc == nil {
		proc, err := subprocess.Start(s.argv, s.logger)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEngineStart, err)
		}
		s.proc = proc
		go s.readLoop(proc)
	}

	line, err := json.Marshal(execRequest{Text: text, Split: split})
	if err != nil {
		return err
	}
	if err := s.proc.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write tts input: %w", err)
	}
	return nil
}

// CloseInput closes the process's stdin; it exits once the queued texts are
// synthesized, which ends the results
func (s *execStream) CloseInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.inputEnded {
		return nil
	}
	s.inputEnded = true
	if s.proc == nil {
		return s.results.CloseWrite()
	}
	return s.proc.CloseInput()
}

func (s *execStream) readLoop(proc *subprocess.Process) {
	err := proc.Lines(func(line []byte) error {
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("decode tts output: %w", err)
		}
		if resp.Finished {
			return s.results.Push(&Result{Finished: true, Index: resp.Index, Text: resp.Text})
		}
		pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			return fmt.Errorf("decode tts audio: %w", err)
		}
		return s.results.Push(&Result{PCM: pcm, Index: resp.Index})
	})
	if err != nil {
		proc.Kill()
	}
	if waitErr := proc.Wait(); err == nil && waitErr != nil {
		err = fmt.Errorf("tts process: %w", waitErr)
	}
	if err != nil && !s.isClosed() {
		s.logger.Warn().Err(err).Msg("Synthesizer stream ended with error")
	}
	s.results.CloseWrite()
}

func (s *execStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *execStream) Read(ctx context.Context) (*Result, error) {
	return s.results.Pop(ctx)
}

// Generate runs the command once in --generate mode and streams its WAV
// output. Closing the reader reaps the process.
func (s *execStream) Generate(_ context.Context, text string) (io.ReadCloser, error) {
	argv := append(append([]string{}, s.argv...), "--generate")
	proc, err := subprocess.Start(argv, s.logger)
	if err != nil {
		return nil, err
	}

	line, err := json.Marshal(execRequest{Text: text})
	if err != nil {
		proc.Kill()
		return nil, err
	}
	if err := proc.Write(append(line, '\n')); err != nil {
		proc.Kill()
		proc.Wait()
		return nil, fmt.Errorf("write tts input: %w", err)
	}
	proc.CloseInput()

	return &processOutput{Reader: proc.Stdout(), proc: proc}, nil
}

// Close kills the process; interrupted audio is not worth flushing
func (s *execStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.proc != nil {
		s.proc.Kill()
	}
	s.results.Discard()
	return nil
}

type processOutput struct {
	io.Reader
	proc      *subprocess.Process
	closeOnce sync.Once
}

func (o *processOutput) Close() error {
	o.closeOnce.Do(func() {
		o.proc.Kill()
		o.proc.Wait()
	})
	return nil
}
