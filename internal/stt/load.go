package stt

import (
	"fmt"
	"time"

	"github.com/lexiqai/voiceapi/internal/config"
	"github.com/lexiqai/voiceapi/internal/observability"
	"github.com/lexiqai/voiceapi/internal/resilience"
)

// Load builds the recognition engine selected by cfg.ASREngine. It runs once
// at startup; the engine is then shared by every connection.
func Load(cfg *config.Config) (Engine, error) {
	logger := observability.WithEngine("asr." + cfg.ASREngine)

	switch cfg.ASREngine {
	case config.EngineMock:
		return NewMockEngine(), nil
	case config.EngineExec:
		return NewExecEngine(cfg.ASRCommand, ExecOptions{
			Provider:   cfg.ASRProvider,
			Threads:    cfg.Threads,
			Model:      cfg.ASRModel,
			Language:   cfg.ASRLang,
			ModelsRoot: cfg.ModelsRoot,
		}, logger)
	case config.EngineDeepgram:
		return NewDeepgramEngine(DeepgramConfig{
			APIKey:       cfg.DeepgramAPIKey,
			Model:        cfg.DeepgramModel,
			Language:     cfg.DeepgramLanguage,
			MaxFailures:  cfg.CircuitBreakerMaxFailures,
			ResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
			Reconnect: &resilience.ReconnectConfig{
				MaxAttempts: cfg.ReconnectMaxAttempts,
				Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
				Multiplier:  2.0,
				MaxBackoff:  30 * time.Second,
			},
		}, logger)
	default:
		return nil, fmt.Errorf("unknown asr engine %q", cfg.ASREngine)
	}
}
