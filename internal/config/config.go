package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Engine names accepted by ASR_ENGINE / TTS_ENGINE
const (
	EngineMock     = "mock"
	EngineExec     = "exec"
	EngineDeepgram = "deepgram"
	EngineCartesia = "cartesia"
)

// Config holds all configuration for the speech gateway
type Config struct {
	// Server configuration
	Addr      string `envconfig:"ADDR" default:"0.0.0.0"`
	Port      int    `envconfig:"PORT" default:"8000"`
	GRPCPort  int    `envconfig:"GRPC_PORT" default:"9090"` // 0 disables the gRPC health server
	AssetsDir string `envconfig:"ASSETS_DIR" default:"./assets"`

	// Engine selection
	ASREngine string `envconfig:"ASR_ENGINE" default:"mock"` // mock, exec, deepgram
	TTSEngine string `envconfig:"TTS_ENGINE" default:"mock"` // mock, exec, cartesia

	// Local model configuration, passed through to exec engines
	ASRProvider string `envconfig:"ASR_PROVIDER" default:"cpu"` // cpu, cuda
	TTSProvider string `envconfig:"TTS_PROVIDER" default:"cpu"`
	Threads     int    `envconfig:"THREADS" default:"2"`
	ModelsRoot  string `envconfig:"MODELS_ROOT" default:""`
	ASRModel    string `envconfig:"ASR_MODEL" default:"sensevoice"`
	ASRLang     string `envconfig:"ASR_LANG" default:"zh"`
	TTSModel    string `envconfig:"TTS_MODEL" default:"vits-zh-hf-theresa"`
	ASRCommand  string `envconfig:"ASR_COMMAND" default:""`
	TTSCommand  string `envconfig:"TTS_COMMAND" default:""`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Cartesia TTS API configuration
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`
	CartesiaVoices  string `envconfig:"CARTESIA_VOICES" default:""` // comma separated, indexed by speaker id
	CartesiaURL     string `envconfig:"CARTESIA_URL" default:"https://api.cartesia.ai"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the selected engines have what they need
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid GRPC_PORT %d", c.GRPCPort)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("THREADS must be positive, got %d", c.Threads)
	}

	switch c.ASREngine {
	case EngineMock:
	case EngineExec:
		if strings.TrimSpace(c.ASRCommand) == "" {
			return fmt.Errorf("ASR_COMMAND is required for the exec ASR engine")
		}
	case EngineDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram ASR engine")
		}
	default:
		return fmt.Errorf("unknown ASR_ENGINE %q", c.ASREngine)
	}

	switch c.TTSEngine {
	case EngineMock:
	case EngineExec:
		if strings.TrimSpace(c.TTSCommand) == "" {
			return fmt.Errorf("TTS_COMMAND is required for the exec TTS engine")
		}
	case EngineCartesia:
		if c.CartesiaAPIKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required for the cartesia TTS engine")
		}
		if len(c.Voices()) == 0 {
			return fmt.Errorf("CARTESIA_VOICES is required for the cartesia TTS engine")
		}
	default:
		return fmt.Errorf("unknown TTS_ENGINE %q", c.TTSEngine)
	}
	return nil
}

// Normalize applies model-specific overrides and returns a warning for each
// value it changed.
func (c *Config) Normalize() []string {
	var warnings []string
	// melo tts only runs on the cpu provider
	if c.TTSModel == "vits-melo-tts-zh_en" && c.TTSProvider != "cpu" {
		warnings = append(warnings, fmt.Sprintf("tts model %s only supports the cpu provider, ignoring %q", c.TTSModel, c.TTSProvider))
		c.TTSProvider = "cpu"
	}
	if c.ModelsRoot == "" {
		c.ModelsRoot = FindModelsRoot()
	}
	return warnings
}

// ListenAddr returns the HTTP listen address
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

// GRPCAddr returns the gRPC health listen address, or "" when disabled
func (c *Config) GRPCAddr() string {
	if c.GRPCPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.GRPCPort))
}

// Voices returns the Cartesia voice ids, indexed by speaker id
func (c *Config) Voices() []string {
	var voices []string
	for _, v := range strings.Split(c.CartesiaVoices, ",") {
		if v = strings.TrimSpace(v); v != "" {
			voices = append(voices, v)
		}
	}
	return voices
}

// FindModelsRoot returns the first existing models directory near the working
// directory, or "./models" when none exists.
func FindModelsRoot() string {
	for _, dir := range []string{"./models", "../models", "../../models"} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(dir); err == nil {
				return abs
			}
			return dir
		}
	}
	return "./models"
}
