package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/resilience"
)

const (
	cartesiaVersion   = "2024-06-10"
	cartesiaReadChunk = 4096
)

// CartesiaConfig configures the Cartesia HTTP engine
type CartesiaConfig struct {
	APIKey  string
	ModelID string
	BaseURL string
	Voices  []string // indexed by speaker id

	MaxFailures  int
	ResetTimeout time.Duration
	Retry        *resilience.RetryConfig
}

// CartesiaRequest represents the request payload for Cartesia's /tts/bytes
type CartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        CartesiaVoice        `json:"voice"`
	OutputFormat CartesiaOutputFormat `json:"output_format"`
}

// CartesiaVoice selects the voice and its controls
type CartesiaVoice struct {
	Mode     string            `json:"mode"`
	ID       string            `json:"id"`
	Controls *CartesiaControls `json:"__experimental_controls,omitempty"`
}

// CartesiaControls adjusts delivery; speed ranges from -1 (slow) to 1 (fast)
type CartesiaControls struct {
	Speed float64 `json:"speed"`
}

// CartesiaOutputFormat describes the audio Cartesia returns
type CartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// CartesiaEngine synthesizes speech with Cartesia's HTTP API. Streams post
// one request per utterance and forward the response body as it arrives.
type CartesiaEngine struct {
	cfg            CartesiaConfig
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewCartesiaEngine creates the Cartesia engine
func NewCartesiaEngine(cfg CartesiaConfig, logger zerolog.Logger) (*CartesiaEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cartesia api key is required")
	}
	if len(cfg.Voices) == 0 {
		return nil, errors.New("at least one cartesia voice is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	circuitBreaker := resilience.NewCircuitBreaker("cartesia", cfg.MaxFailures, cfg.ResetTimeout)
	circuitBreaker.OnStateChange(observability.ObserveCircuitBreaker)

	return &CartesiaEngine{
		cfg:            cfg,
		httpClient:     &http.Client{},
		circuitBreaker: circuitBreaker,
		logger:         logger,
	}, nil
}

func (c *CartesiaEngine) Name() string { return "cartesia" }

func (c *CartesiaEngine) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// NewStream allocates a synthesis stream for the speaker's voice
func (c *CartesiaEngine) NewStream(_ context.Context, opts Options) (Stream, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.SpeakerID < 0 || opts.SpeakerID >= len(c.cfg.Voices) {
		return nil, fmt.Errorf("speaker id %d out of range (%d voices)", opts.SpeakerID, len(c.cfg.Voices))
	}
	if c.circuitBreaker.GetState() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	s := &cartesiaStream{engine: c, opts: opts}
	s.pipeline = newPipeline(c.Name(), s.synthesize, c.logger)
	return s, nil
}

func (c *CartesiaEngine) request(text string, opts Options, container string) CartesiaRequest {
	req := CartesiaRequest{
		ModelID:    c.cfg.ModelID,
		Transcript: text,
		Voice: CartesiaVoice{
			Mode: "id",
			ID:   c.cfg.Voices[opts.SpeakerID],
		},
		OutputFormat: CartesiaOutputFormat{
			Container:  container,
			Encoding:   "pcm_s16le",
			SampleRate: opts.SampleRate,
		},
	}
	if opts.Speed != 1.0 {
		req.Voice.Controls = &CartesiaControls{Speed: speedControl(opts.Speed)}
	}
	return req
}

// speedControl maps a playback multiplier onto Cartesia's [-1, 1] scale
func speedControl(speed float64) float64 {
	v := speed - 1.0
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// post sends req and returns the open response body. Connection failures
// and 429/5xx responses are retried.
func (c *CartesiaEngine) post(ctx context.Context, req CartesiaRequest) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var body io.ReadCloser
	err = c.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/tts/bytes", bytes.NewReader(jsonData))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("X-API-Key", c.cfg.APIKey)
			httpReq.Header.Set("Cartesia-Version", cartesiaVersion)

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return fmt.Errorf("failed to make request: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				resp.Body.Close()
				err := fmt.Errorf("cartesia API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					return resilience.NewRetryableError(err)
				}
				return err
			}
			body = resp.Body
			return nil
		}, c.cfg.Retry, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

type cartesiaStream struct {
	*pipeline
	engine *CartesiaEngine
	opts   Options
}

func (s *cartesiaStream) synthesize(ctx context.Context, text string, emit func([]byte) error) error {
	body, err := s.engine.post(ctx, s.engine.request(text, s.opts, "raw"))
	if err != nil {
		return err
	}
	defer body.Close()

	// Keep sample alignment across reads
	buf := make([]byte, cartesiaReadChunk)
	carry := 0
	for {
		n, err := body.Read(buf[carry:])
		n += carry
		whole := n &^ 1
		if whole > 0 {
			pcm := make([]byte, whole)
			copy(pcm, buf[:whole])
			if emitErr := emit(pcm); emitErr != nil {
				return emitErr
			}
		}
		carry = copy(buf, buf[whole:n])
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read cartesia audio: %w", err)
		}
	}
}

// Generate requests a WAV container and returns the response body untouched
func (s *cartesiaStream) Generate(ctx context.Context, text string) (io.ReadCloser, error) {
	return s.engine.post(ctx, s.engine.request(text, s.opts, "wav"))
}
