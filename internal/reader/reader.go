// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/taibuivan/lectern/internal/viewer"
)

// tokenRequestTimeout bounds one token mint.
const tokenRequestTimeout = 10 * time.Second

// statusLine rewrites a single line of terminal output.
type statusLine struct {
	mu  sync.Mutex
	out io.Writer
}

func (status *statusLine) printf(format string, args ...any) {
	status.mu.Lock()
	defer status.mu.Unlock()
	fmt.Fprintf(status.out, "\r\x1b[K"+format, args...)
}

/*
Run shows the configured document until ctx ends or the user quits.

A failed load does not end the session: the error is shown and 'r' retries.

Returns:
  - error: Setup failures only
*/
func Run(ctx context.Context, cfg *Config, terminal *Terminal, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := NewTokenClient(cfg.ServerURL, cfg.ResourceID, &http.Client{Timeout: tokenRequestTimeout})
	if err != nil {
		return err
	}

	pages, err := NewPageWriter(cfg.OutputDir, cfg.Name)
	if err != nil {
		return err
	}

	surface := viewer.NewImageSurface()
	status := &statusLine{out: out}
	options := cfg.Viewer

	controller, err := viewer.New(viewer.ControllerConfig{
		ResolveURL: tokens.ResolveURL,
		Surface:    surface,
		Controls:   viewer.Controls{Retry: terminal.RetryControl()},
		Keys:       terminal,
		Options:    &options,
		Logger:     logger,
		Callbacks: viewer.Callbacks{
			OnProgress: func(percent int) {
				status.printf("loading %d%%", percent)
			},
			OnLoad: func(total int) {
				status.printf("loaded %d pages", total)
			},
			OnPageChange: func(page, total int) {
				path, err := pages.Write(page, surface.Frame())
				if err != nil {
					logger.Error("page_write_failed", slog.Int("page", page), slog.Any("error", err))
					status.printf("page %d/%d (not saved)", page, total)
					return
				}
				status.printf("page %d/%d  %s", page, total, path)
			},
			OnError: func(err *viewer.LoadError) {
				status.printf("%s  [r] retry  [q] quit", err.Message())
			},
			OnZoom: func(percent int) {
				status.printf("zoom %d%%", percent)
			},
			OnFullscreen: func(fullscreen bool) {
				if fullscreen {
					status.printf("fullscreen")
				} else {
					status.printf("windowed")
				}
			},
		},
	})
	if err != nil {
		return err
	}
	defer controller.Dispose()

	logger.Info("reader_started",
		slog.Int64("resource_id", cfg.ResourceID),
		slog.String("server", cfg.ServerURL),
		slog.String("output", cfg.OutputDir),
	)

	// Quitting must not wait for a slow or retrying download
	loaded := make(chan error, 1)
	go func() { loaded <- controller.Load(ctx) }()

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-terminal.Done():
			running = false
		case err := <-loaded:
			loaded = nil
			if err != nil && !quietLoadError(err) && ctx.Err() == nil {
				return err
			}
		}
	}

	state := controller.State()
	controller.Dispose()
	if loaded != nil {
		<-loaded
	}

	logger.Info("reader_stopped", slog.Int("page", state.CurrentPage), slog.Int("pages", state.TotalPages))
	fmt.Fprint(out, "\r\n")

	return nil
}

// quietLoadError reports load outcomes that are shown on screen or expected
// on shutdown rather than returned.
func quietLoadError(err error) bool {
	var loadError *viewer.LoadError
	return errors.As(err, &loadError) || errors.Is(err, viewer.ErrDisposed) || errors.Is(err, context.Canceled)
}
