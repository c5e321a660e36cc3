package main

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	cacheLog   = log.With().Str("component", "ai:cache").Logger()
	searchLog  = log.With().Str("component", "ai:search").Logger()
	backendLog = log.With().Str("component", "backend").Logger()
	backlogLog = log.With().Str("component", "backlog").Logger()
	archiveLog = log.With().Str("component", "archive").Logger()
)

// setupLogging installs the global logger. Component loggers are rebuilt so
// they inherit the new writer.
func setupLogging() {
	level, err := zerolog.ParseLevel(getenv("GOMOKU_LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if isatty.IsTerminal(os.Stdout.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	cacheLog = log.With().Str("component", "ai:cache").Logger()
	searchLog = log.With().Str("component", "ai:search").Logger()
	backendLog = log.With().Str("component", "backend").Logger()
	backlogLog = log.With().Str("component", "backlog").Logger()
	archiveLog = log.With().Str("component", "archive").Logger()
}
