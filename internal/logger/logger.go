package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/receiptflow-ledger/internal/config"
)

// NewLogger builds the process-wide JSON logger. Source locations are
// attached only at debug level to keep production lines compact.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})

	log := slog.New(handler)
	log.Info("logger initialized", "level", level)
	return log
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
