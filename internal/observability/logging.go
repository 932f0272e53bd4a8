package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates the structured JSON logger for one component. The level
// comes from PARA_LOG_LEVEL (zerolog level names); unset or unparseable
// defaults to info.
func NewLogger(component string) zerolog.Logger {
	return NewLoggerWithLevel(component, levelFromEnv())
}

// NewLoggerWithLevel creates a component logger with an explicit level.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func levelFromEnv() zerolog.Level {
	raw := os.Getenv("PARA_LOG_LEVEL")
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
