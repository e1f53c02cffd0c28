package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the process-wide logger for one of the binaries.
// VEHICLECTL_LOG_LEVEL selects the level by zerolog name ("debug", "warn",
// ...); unset or unparseable values mean info.
func InitLogger(app string) zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("VEHICLECTL_LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
