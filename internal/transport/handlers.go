// Package transport binds the streaming sessions to websockets and HTTP.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/session"
	"github.com/lexiqai/voiceapi/internal/stt"
	"github.com/lexiqai/voiceapi/internal/tts"
)

// maxGenerateBody caps the JSON body of a one-shot request
const maxGenerateBody = 1 << 20

var upgrader = websocket.Upgrader{
	// Browser demo pages are served from other origins during development
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler serves /asr and /tts with engines loaded at startup
type Handler struct {
	ctx context.Context
	asr stt.Engine
	tts tts.Engine
}

// NewHandler creates the handlers. Cancelling ctx ends every open session.
func NewHandler(ctx context.Context, asr stt.Engine, synth tts.Engine) *Handler {
	return &Handler{ctx: ctx, asr: asr, tts: synth}
}

// Register adds the speech routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /asr", h.HandleASR)
	mux.HandleFunc("GET /tts", h.HandleTTSStream)
	mux.HandleFunc("POST /tts", h.HandleTTSGenerate)
}

// sessionContext ends with the request or with the server, whichever is first
func (h *Handler) sessionContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(h.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// HandleASR runs a recognition session: binary PCM in, JSON results out
func (h *Handler) HandleASR(w http.ResponseWriter, r *http.Request) {
	params, err := ParseASRParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger, _ := observability.WithSession("asr")
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("asr: websocket upgrade failed")
		return
	}
	conn := newConn(ws, logger)
	defer conn.Close()

	ctx, cancel := h.sessionContext(r)
	defer cancel()

	rec, err := session.StartRecognition(ctx, h.asr, params.SampleRate, logger)
	if err != nil {
		logger.Error().Err(err).Msg("asr: cannot start session")
		conn.CloseWith(websocket.CloseInternalServerErr, closeReason(err))
		return
	}

	logger.Info().Int("samplerate", params.SampleRate).Msg("asr: connection open")
	if err := rec.Run(ctx, conn, conn); err != nil {
		logger.Info().Err(err).Msg("asr: disconnected")
		return
	}
	logger.Info().Msg("asr: connection closed")
}

// HandleTTSStream runs a synthesis session: text in, binary audio frames and
// JSON end-of-utterance markers out
func (h *Handler) HandleTTSStream(w http.ResponseWriter, r *http.Request) {
	params, err := ParseTTSParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger, _ := observability.WithSession("tts")
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("tts: websocket upgrade failed")
		return
	}
	conn := newConn(ws, logger)
	defer conn.Close()

	ctx, cancel := h.sessionContext(r)
	defer cancel()

	synth, err := session.NewSynthesis(h.tts, params.SynthesisConfig(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("tts: cannot start session")
		conn.CloseWith(websocket.CloseInternalServerErr, closeReason(err))
		return
	}

	logger.Info().
		Int("samplerate", params.SampleRate).
		Int("sid", params.SpeakerID).
		Int("chunk_size", params.ChunkSize).
		Float64("speed", params.Speed).
		Bool("interrupt", params.Interrupt).
		Bool("split", params.Split).
		Msg("tts: connection open")

	err = synth.Run(ctx, conn, conn)
	switch {
	case errors.Is(err, session.ErrAllocationFailed):
		conn.CloseWith(websocket.CloseInternalServerErr, closeReason(err))
	case err != nil:
		logger.Info().Err(err).Msg("tts: disconnected")
	default:
		logger.Info().Msg("tts: connection closed")
	}
}

// HandleTTSGenerate synthesizes a JSON request in one piece and streams the
// WAV container back
func (h *Handler) HandleTTSGenerate(w http.ResponseWriter, r *http.Request) {
	logger, _ := observability.WithSession("tts_generate")

	req := session.DefaultGenerateRequest()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxGenerateBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	body, err := session.Generate(r.Context(), h.tts, req, logger)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if _, err := copyFlush(w, body); err != nil {
		logger.Warn().Err(err).Msg("tts: generate stream interrupted")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func closeReason(err error) string {
	switch {
	case errors.Is(err, session.ErrEngineUnavailable):
		return "engine not loaded"
	case errors.Is(err, session.ErrAllocationFailed):
		return "failed to allocate stream"
	default:
		return "internal error"
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}

// copyFlush copies src to w, flushing after every read so audio reaches the
// client as the engine produces it
func copyFlush(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
