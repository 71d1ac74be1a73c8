package tts

import (
	"context"
	"errors"
	"io"
)

// ErrStreamClosed is returned by Write after the stream was closed.
var ErrStreamClosed = errors.New("tts: stream closed")

// ErrEngineStart is returned by Write when the engine backing a stream could
// not be started.
var ErrEngineStart = errors.New("tts: engine failed to start")

// Options configure one synthesis stream. They are fixed for its lifetime.
type Options struct {
	SpeakerID  int
	SampleRate int
	Speed      float64
}

// Result is one synthesis event. Audio events carry PCM; a finished event
// closes the utterance numbered Index and carries its text.
type Result struct {
	// PCM is 16-bit mono little-endian audio at the stream's sample rate
	PCM []byte `json:"-"`

	Finished bool   `json:"finished"`
	Index    int    `json:"idx"`
	Text     string `json:"text"`
}

// Stream is a single-consumer synthesis stream.
//
// Texts written to a stream are synthesized in submission order. Read returns
// io.EOF once the stream has ended, which happens after CloseInput once every
// written text has been synthesized. Close discards anything not yet read and
// is idempotent.
type Stream interface {
	// Write queues text; split selects sentence-by-sentence synthesis
	Write(ctx context.Context, text string, split bool) error

	// Read blocks for the next event
	Read(ctx context.Context) (*Result, error)

	// CloseInput marks the end of text; later writes fail with ErrStreamClosed
	CloseInput() error

	// Generate synthesizes text in one piece and returns a self-delimited
	// audio container (WAV)
	Generate(ctx context.Context, text string) (io.ReadCloser, error)

	// Close ends the stream and releases engine resources
	Close() error
}

// Engine is a loaded synthesizer shared by all connections
type Engine interface {
	// NewStream allocates a synthesis stream
	NewStream(ctx context.Context, opts Options) (Stream, error)

	// Name identifies the engine in logs and metrics
	Name() string

	// Close releases the engine
	Close() error
}
