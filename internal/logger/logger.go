/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package logger

import (
	"io"
	"os"
	"time"

	"github.com/HamedShams/sprint-pulse/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger and installs it as the zerolog global.
// Dev gets a console writer at debug level; everything else emits JSON.
func New(cfg config.Config) zerolog.Logger {
	return build(cfg, os.Stdout)
}

func build(cfg config.Config, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
		if cfg.AppEnv == "dev" {
			level = zerolog.DebugLevel
		}
	}
	if cfg.AppEnv == "dev" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Str("svc", "sprint-pulse").Str("env", cfg.AppEnv).Logger()
	log.Logger = logger
	return logger
}
