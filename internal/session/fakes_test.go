package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lexiqai/voiceapi/internal/queue"
	"github.com/lexiqai/voiceapi/internal/stt"
	"github.com/lexiqai/voiceapi/internal/tts"
)

var errFake = errors.New("fake failure")

// fakeRecognizer echoes the sequence number of every chunk it receives
type fakeRecognizer struct {
	mu      sync.Mutex
	streams []*fakeRecognizerStream
	failNew bool
}

func (e *fakeRecognizer) Name() string { return "fake" }
func (e *fakeRecognizer) Close() error { return nil }

func (e *fakeRecognizer) NewStream(_ context.Context, sampleRate int) (stt.Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failNew {
		return nil, errFake
	}
	s := &fakeRecognizerStream{results: queue.New[*stt.Result]()}
	e.streams = append(e.streams, s)
	return s, nil
}

type fakeRecognizerStream struct {
	mu      sync.Mutex
	results *queue.Queue[*stt.Result]
	written int
	closes  int
}

func (s *fakeRecognizerStream) Write(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return stt.ErrStreamClosed
	}
	s.results.Push(&stt.Result{Text: fmt.Sprint(s.written), Index: s.written, Finished: true})
	s.written++
	return nil
}

func (s *fakeRecognizerStream) Read(ctx context.Context) (*stt.Result, error) {
	return s.results.Pop(ctx)
}

func (s *fakeRecognizerStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.results.CloseWrite()
	return nil
}

func (s *fakeRecognizerStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// sliceAudioSource replays chunks, then reports err (or end of input when nil)
type sliceAudioSource struct {
	chunks [][]byte
	err    error
}

func (s *sliceAudioSource) ReceiveAudio(ctx context.Context) ([]byte, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, nil
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

type resultRecorder struct {
	mu      sync.Mutex
	results []*stt.Result
}

func (r *resultRecorder) SendResult(_ context.Context, result *stt.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

// fakeSynthesizer produces frames filled with the first byte of each text.
// It logs allocations and closes in the order they happen.
type fakeSynthesizer struct {
	frames    int
	frameSize int
	failNew   bool
	failStart bool

	mu      sync.Mutex
	log     []string
	streams int
}

func (e *fakeSynthesizer) Name() string { return "fake" }
func (e *fakeSynthesizer) Close() error { return nil }

func (e *fakeSynthesizer) NewStream(_ context.Context, opts tts.Options) (tts.Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failNew {
		return nil, errFake
	}
	e.streams++
	e.log = append(e.log, fmt.Sprintf("new %d", e.streams))
	return &fakeSynthStream{id: e.streams, engine: e, results: queue.New[*tts.Result]()}, nil
}

func (e *fakeSynthesizer) record(entry string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, entry)
}

func (e *fakeSynthesizer) snapshot() ([]string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...), e.streams
}

type fakeSynthStream struct {
	id        int
	engine    *fakeSynthesizer
	results   *queue.Queue[*tts.Result]
	next      int
	closeOnce sync.Once
}

func (s *fakeSynthStream) Write(_ context.Context, text string, _ bool) error {
	if s.engine.failStart {
		return fmt.Errorf("%w: %v", tts.ErrEngineStart, errFake)
	}
	for i := 0; i < s.engine.frames; i++ {
		if err := s.results.Push(&tts.Result{PCM: bytes.Repeat([]byte{text[0]}, s.engine.frameSize)}); err != nil {
			return tts.ErrStreamClosed
		}
	}
	if err := s.results.Push(&tts.Result{Finished: true, Index: s.next, Text: text}); err != nil {
		return tts.ErrStreamClosed
	}
	s.next++
	return nil
}

func (s *fakeSynthStream) CloseInput() error {
	return s.results.CloseWrite()
}

func (s *fakeSynthStream) Read(ctx context.Context) (*tts.Result, error) {
	return s.results.Pop(ctx)
}

func (s *fakeSynthStream) Generate(_ context.Context, text string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("RIFF" + text))), nil
}

func (s *fakeSynthStream) Close() error {
	s.closeOnce.Do(func() {
		s.engine.record(fmt.Sprintf("close %d", s.id))
		s.results.Discard()
	})
	return nil
}

// idleTextSource blocks until the session ends
type idleTextSource struct{}

func (idleTextSource) ReceiveText(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type sinkEvent struct {
	frame  []byte
	marker *tts.Result
}

type audioRecorder struct {
	delay time.Duration

	mu     sync.Mutex
	events []sinkEvent
}

func (r *audioRecorder) SendAudio(_ context.Context, frame []byte) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{frame: append([]byte(nil), frame...)})
	return nil
}

func (r *audioRecorder) SendMarker(_ context.Context, marker *tts.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{marker: marker})
	return nil
}

func (r *audioRecorder) snapshot() []sinkEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sinkEvent(nil), r.events...)
}

func (r *audioRecorder) markers() []*tts.Result {
	var out []*tts.Result
	for _, e := range r.snapshot() {
		if e.marker != nil {
			out = append(out, e.marker)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
