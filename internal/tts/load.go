package tts

import (
	"fmt"
	"time"

	"github.com/lexiqai/voiceapi/internal/config"
	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/resilience"
)

// Load builds the synthesis engine selected by cfg.TTSEngine
func Load(cfg *config.Config) (Engine, error) {
	logger := observability.WithEngine("tts." + cfg.TTSEngine)

	switch cfg.TTSEngine {
	case config.EngineMock:
		return NewMockEngine(logger), nil
	case config.EngineExec:
		return NewExecEngine(cfg.TTSCommand, ExecOptions{
			Provider:   cfg.TTSProvider,
			Threads:    cfg.Threads,
			Model:      cfg.TTSModel,
			ModelsRoot: cfg.ModelsRoot,
		}, logger)
	case config.EngineCartesia:
		return NewCartesiaEngine(CartesiaConfig{
			APIKey:       cfg.CartesiaAPIKey,
			ModelID:      cfg.CartesiaModelID,
			BaseURL:      cfg.CartesiaURL,
			Voices:       cfg.Voices(),
			MaxFailures:  cfg.CircuitBreakerMaxFailures,
			ResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
			Retry: &resilience.RetryConfig{
				MaxAttempts:       cfg.RetryMaxAttempts,
				InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
				MaxBackoff:        5 * time.Second,
				BackoffMultiplier: 2.0,
				Jitter:            true,
			},
		}, logger)
	default:
		return nil, fmt.Errorf("unknown tts engine %q", cfg.TTSEngine)
	}
}
