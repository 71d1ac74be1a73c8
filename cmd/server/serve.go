package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/voiceapi/internal/config"
	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/stt"
	"github.com/lexiqai/voiceapi/internal/transport"
	"github.com/lexiqai/voiceapi/internal/tts"
)

const (
	shutdownTimeout    = 30 * time.Second
	healthRefreshEvery = 10 * time.Second
)

func serve(ctx context.Context, cfg *config.Config) error {
	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	for _, w := range cfg.Normalize() {
		logger.Warn().Msg(w)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info().
		Str("addr", cfg.ListenAddr()).
		Str("asr_engine", cfg.ASREngine).
		Str("tts_engine", cfg.TTSEngine).
		Str("models_root", cfg.ModelsRoot).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("voiceapi starting")

	// Engines are loaded once, before the listener accepts connections
	logger.Info().Str("engine", cfg.ASREngine).Str("model", cfg.ASRModel).Msg("Preloading ASR engine")
	asrEngine, err := stt.Load(cfg)
	if err != nil {
		return fmt.Errorf("load asr engine: %w", err)
	}
	defer asrEngine.Close()

	logger.Info().Str("engine", cfg.TTSEngine).Str("model", cfg.TTSModel).Msg("Preloading TTS engine")
	ttsEngine, err := tts.Load(cfg)
	if err != nil {
		return fmt.Errorf("load tts engine: %w", err)
	}
	defer ttsEngine.Close()
	logger.Info().Msg("Engines loaded")

	checks := map[string]observability.HealthCheckFunc{
		"voiceapi.asr": loaded(asrEngine != nil),
		"voiceapi.tts": loaded(ttsEngine != nil),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open sessions end when sessionsCtx is cancelled at shutdown
	sessionsCtx, endSessions := context.WithCancel(context.Background())
	defer endSessions()

	mux := http.NewServeMux()
	transport.NewHandler(sessionsCtx, asrEngine, ttsEngine).Register(mux)
	mux.HandleFunc("GET /health", observability.HealthCheckHandler())
	mux.HandleFunc("GET /ready", observability.ReadinessHandler(checks))
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}
	if info, err := os.Stat(cfg.AssetsDir); err == nil && info.IsDir() {
		mux.Handle("/", http.FileServer(http.Dir(cfg.AssetsDir)))
		logger.Info().Str("dir", cfg.AssetsDir).Msg("Serving static assets")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var (
		healthServer *observability.HealthServer
		healthLis    net.Listener
	)
	if addr := cfg.GRPCAddr(); addr != "" {
		if healthLis, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("grpc health listener: %w", err)
		}
		healthServer = observability.NewHealthServer(checks, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.ListenAddr()).
			Str("asr", fmt.Sprintf("ws://%s/asr", cfg.ListenAddr())).
			Str("tts", fmt.Sprintf("ws://%s/tts", cfg.ListenAddr())).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if healthServer != nil {
		g.Go(func() error {
			return healthServer.Serve(gctx, healthLis, healthRefreshEvery)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		if healthServer != nil {
			healthServer.Shutdown()
		}
		endSessions()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return err
	}
	logger.Info().Msg("Server exited gracefully")
	return nil
}

func loaded(ok bool) observability.HealthCheckFunc {
	return func(context.Context) (bool, error) {
		if !ok {
			return false, errors.New("engine not loaded")
		}
		return true, nil
	}
}
