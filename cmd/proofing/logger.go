package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/adampresley/proofingdesk/cmd/proofing/internal/configuration"
)

func setupLogger(config *configuration.Config, version string) {
	level := parseLevel(config.LogLevel)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})

	logger := slog.New(handler).With(
		slog.String("app", appName),
		slog.String("version", version),
	)

	slog.SetDefault(logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
