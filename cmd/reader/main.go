// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command reader opens one protected document from a Lectern server in the
// terminal and saves each page it shows as a PNG file.
//
// Logs go to stderr so the status line on stdout stays readable.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taibuivan/lectern/internal/reader"
)

const appName = "lectern-reader"

func main() {
	log := newLogger(slog.LevelWarn)
	slog.SetDefault(log)

	cfg, err := reader.LoadConfig()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	terminal := reader.NewTerminal(os.Stdin, int(os.Stdin.Fd()), log)
	must(log, reader.Run(ctx, cfg, terminal, os.Stdout, log), "run reader")
}

// newLogger builds the JSON logger tagged with the application name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", appName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
