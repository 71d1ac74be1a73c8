package transport

import (
	"fmt"
	"net/url"

	"github.com/gorilla/schema"

	"github.com/lexiqai/voiceapi/internal/session"
)

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// ASRParams are the query parameters of /asr
type ASRParams struct {
	SampleRate int `schema:"samplerate"`
}

// TTSParams are the query parameters of the /tts websocket
type TTSParams struct {
	SampleRate int     `schema:"samplerate"`
	Interrupt  bool    `schema:"interrupt"`
	SpeakerID  int     `schema:"sid"`
	ChunkSize  int     `schema:"chunk_size"`
	Speed      float64 `schema:"speed"`
	Split      bool    `schema:"split"`
}

// ParseASRParams decodes query over the defaults and validates the result
func ParseASRParams(query url.Values) (ASRParams, error) {
	p := ASRParams{SampleRate: 16000}
	if err := decoder.Decode(&p, query); err != nil {
		return p, fmt.Errorf("%w: %v", session.ErrBadRequest, err)
	}
	if p.SampleRate <= 0 {
		return p, fmt.Errorf("%w: samplerate must be positive", session.ErrBadRequest)
	}
	return p, nil
}

// ParseTTSParams decodes query over the defaults and validates the result
func ParseTTSParams(query url.Values) (TTSParams, error) {
	p := TTSParams{
		SampleRate: 16000,
		Interrupt:  true,
		SpeakerID:  0,
		ChunkSize:  1024,
		Speed:      1.0,
		Split:      true,
	}
	if err := decoder.Decode(&p, query); err != nil {
		return p, fmt.Errorf("%w: %v", session.ErrBadRequest, err)
	}

	switch {
	case p.SampleRate <= 0:
		return p, fmt.Errorf("%w: samplerate must be positive", session.ErrBadRequest)
	case p.ChunkSize <= 0:
		return p, fmt.Errorf("%w: chunk_size must be positive", session.ErrBadRequest)
	case p.Speed <= 0:
		return p, fmt.Errorf("%w: speed must be positive", session.ErrBadRequest)
	case p.SpeakerID < 0:
		return p, fmt.Errorf("%w: sid must not be negative", session.ErrBadRequest)
	}
	return p, nil
}

// SynthesisConfig snapshots the parameters for one connection
func (p TTSParams) SynthesisConfig() session.SynthesisConfig {
	return session.SynthesisConfig{
		SampleRate: p.SampleRate,
		SpeakerID:  p.SpeakerID,
		Speed:      p.Speed,
		ChunkSize:  p.ChunkSize,
		Interrupt:  p.Interrupt,
		Split:      p.Split,
	}
}
