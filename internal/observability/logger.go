package observability

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	globalLogger zerolog.Logger
	initOnce     sync.Once
)

// InitLogger initializes the global structured logger. Only the first call
// takes effect.
func InitLogger(level string, pretty bool) {
	initOnce.Do(func() {
		globalLogger = NewLogger(os.Stdout, level, pretty)
		zerolog.SetGlobalLevel(ParseLevel(level))
		log.Logger = globalLogger
	})
}

// NewLogger builds a logger writing JSON (or console output when pretty) to w.
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the global logger
func GetLogger() zerolog.Logger {
	InitLogger("info", false)
	return globalLogger
}

// WithSession creates a logger for one connection, tagged with its kind and
// a fresh session id.
func WithSession(kind string) (zerolog.Logger, string) {
	id := NewSessionID()
	return GetLogger().With().
		Str("kind", kind).
		Str("session_id", id).
		Logger(), id
}

// WithEngine creates a logger for engine-level events
func WithEngine(name string) zerolog.Logger {
	return GetLogger().With().Str("engine", name).Logger()
}

// NewSessionID generates a new session ID
func NewSessionID() string {
	return uuid.New().String()
}
