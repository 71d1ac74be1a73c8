package session

import (
	"context"

	"github.com/lexiqai/voiceapi/internal/stt"
	"github.com/lexiqai/voiceapi/internal/tts"
)

// AudioSource delivers raw PCM chunks from the client. A zero-length chunk
// ends the input.
type AudioSource interface {
	ReceiveAudio(ctx context.Context) ([]byte, error)
}

// ResultSink delivers recognition results to the client
type ResultSink interface {
	SendResult(ctx context.Context, result *stt.Result) error
}

// TextSource delivers text submissions from the client. An empty string
// ends the input.
type TextSource interface {
	ReceiveText(ctx context.Context) (string, error)
}

// AudioSink delivers synthesized audio frames and end-of-utterance markers
type AudioSink interface {
	SendAudio(ctx context.Context, frame []byte) error
	SendMarker(ctx context.Context, marker *tts.Result) error
}
