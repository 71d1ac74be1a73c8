package stt

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned by Write after the stream was closed.
var ErrStreamClosed = errors.New("stt: stream closed")

// Result is one incremental transcription event.
type Result struct {
	// Text is the transcription of the current segment so far
	Text string `json:"text"`

	// Index numbers segments in emission order, starting at 0
	Index int `json:"idx"`

	// Finished marks the end of an utterance; the next result starts a new segment
	Finished bool `json:"finished"`
}

// Stream is a single-consumer recognition stream.
//
// Read returns results in emission order and io.EOF once the stream has ended.
// Close ends the input side; results the engine already produced stay readable
// until io.EOF. Close is idempotent.
type Stream interface {
	// Write feeds 16-bit mono little-endian PCM
	Write(ctx context.Context, pcm []byte) error

	// Read blocks for the next result
	Read(ctx context.Context) (*Result, error)

	// Close ends the stream and releases engine resources
	Close() error
}

// Engine is a loaded recognizer. It is shared by all connections and must
// allow concurrent NewStream calls.
type Engine interface {
	// NewStream starts a recognition stream for audio at sampleRate
	NewStream(ctx context.Context, sampleRate int) (Stream, error)

	// Name identifies the engine in logs and metrics
	Name() string

	// Close releases the engine
	Close() error
}
