// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package reader

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/term"

	"github.com/taibuivan/lectern/internal/viewer"
)

const readBufferSize = 64

// Terminal turns keyboard input into viewer keys. It implements
// [viewer.KeySource] and exposes the retry key as a [viewer.Control].
type Terminal struct {
	input  io.Reader
	fd     int
	logger *slog.Logger

	quit     chan struct{}
	quitOnce sync.Once

	mu           sync.Mutex
	retry        func()
	retryEnabled bool
}

// NewTerminal reads keys from input. When fd refers to a terminal it is put
// in raw mode while keys are bound; pass -1 for plain readers.
func NewTerminal(input io.Reader, fd int, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Terminal{input: input, fd: fd, logger: logger, quit: make(chan struct{})}
}

// Done is closed when the user quits or the input ends.
func (terminal *Terminal) Done() <-chan struct{} {
	return terminal.quit
}

// BindKeys starts reading input and forwards navigation keys to handler.
// The returned function stops forwarding and restores the terminal mode.
func (terminal *Terminal) BindKeys(handler func(viewer.Key)) func() {
	restore := terminal.makeRaw()

	var stopped atomic.Bool
	go func() {
		buffer := make([]byte, readBufferSize)
		for {
			n, err := terminal.input.Read(buffer)
			if stopped.Load() {
				return
			}

			for _, event := range parseKeys(buffer[:n]) {
				switch {
				case event.quit:
					terminal.signalQuit()
					return
				case event.retry:
					terminal.pressRetry()
				default:
					handler(event.key)
				}
			}

			if err != nil {
				if !errors.Is(err, io.EOF) {
					terminal.logger.Warn("terminal_read_failed", slog.Any("error", err))
				}
				terminal.signalQuit()
				return
			}
		}
	}()

	return func() {
		stopped.Store(true)
		restore()
	}
}

func (terminal *Terminal) makeRaw() (restore func()) {
	if terminal.fd < 0 || !term.IsTerminal(terminal.fd) {
		return func() {}
	}

	state, err := term.MakeRaw(terminal.fd)
	if err != nil {
		terminal.logger.Warn("terminal_raw_mode_unavailable", slog.Any("error", err))
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := term.Restore(terminal.fd, state); err != nil {
				terminal.logger.Warn("terminal_restore_failed", slog.Any("error", err))
			}
		})
	}
}

func (terminal *Terminal) signalQuit() {
	terminal.quitOnce.Do(func() { close(terminal.quit) })
}

// # Retry Control

// RetryControl is the 'r' key seen as a viewer control.
func (terminal *Terminal) RetryControl() viewer.Control {
	return retryKey{terminal: terminal}
}

// RetryEnabled reports whether 'r' currently does anything.
func (terminal *Terminal) RetryEnabled() bool {
	terminal.mu.Lock()
	defer terminal.mu.Unlock()
	return terminal.retry != nil && terminal.retryEnabled
}

func (terminal *Terminal) pressRetry() {
	terminal.mu.Lock()
	action := terminal.retry
	enabled := terminal.retryEnabled
	terminal.mu.Unlock()

	if action != nil && enabled {
		action()
	}
}

type retryKey struct {
	terminal *Terminal
}

func (key retryKey) Bind(action func()) func() {
	key.terminal.mu.Lock()
	defer key.terminal.mu.Unlock()

	key.terminal.retry = action
	return func() {
		key.terminal.mu.Lock()
		defer key.terminal.mu.Unlock()
		key.terminal.retry = nil
	}
}

func (key retryKey) SetEnabled(enabled bool) {
	key.terminal.mu.Lock()
	defer key.terminal.mu.Unlock()
	key.terminal.retryEnabled = enabled
}
