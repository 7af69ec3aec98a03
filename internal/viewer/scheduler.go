// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// errSuperseded ends a retry loop when a newer request arrived during backoff.
var errSuperseded = errors.New("viewer: superseded by newer request")

// Observer receives the outcome of renders. Calls come from the scheduler's
// goroutine and never while the scheduler lock is held.
type Observer interface {
	// PageRendered reports that page is now visible on the surface.
	PageRendered(page int)

	// RenderFailed reports a terminal failure for a page.
	RenderFailed(err *LoadError)
}

// renderRequest is one page at one scale.
type renderRequest struct {
	page  int
	scale float64
}

/*
Scheduler runs at most one render at a time for one document.

States:

	Idle ──RequestPage──► Rendering(n)
	Rendering(m) ──RequestPage(n)──► Rendering(m), pending = n   (latest wins)
	Rendering(m) ──done──► Rendering(pending) or Idle

A completed render is followed by background decoding of the next pages.
*/
type Scheduler struct {
	document Document
	cache    *PageCache
	painter  Painter
	surface  Surface
	observer Observer
	options  Options
	logger   *slog.Logger

	// root is cancelled by Close; every task and preload derives from it.
	root context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	rendering  bool
	current    renderRequest
	pending    *renderRequest
	cancelTask context.CancelFunc
	preloading map[int]chan struct{}
	closed     bool

	// wake interrupts a retry backoff when a pending request arrives.
	wake chan struct{}
}

// NewScheduler wires a scheduler for document. Rendering happens on
// goroutines owned by the scheduler.
func NewScheduler(document Document, cache *PageCache, painter Painter, surface Surface, observer Observer, options Options, logger *slog.Logger) *Scheduler {
	ensureInitialized()

	if logger == nil {
		logger = slog.Default()
	}

	root, stop := context.WithCancel(context.Background())
	return &Scheduler{
		document:   document,
		cache:      cache,
		painter:    painter,
		surface:    surface,
		observer:   observer,
		options:    options.normalized(),
		logger:     logger,
		root:       root,
		stop:       stop,
		preloading: make(map[int]chan struct{}),
		wake:       make(chan struct{}, 1),
	}
}

// RequestPage asks for page n at scale. While a render is in flight the
// request is parked in the pending slot, replacing any earlier one.
func (scheduler *Scheduler) RequestPage(n int, scale float64) {
	request := renderRequest{page: n, scale: scale}

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if scheduler.closed {
		return
	}

	if scheduler.rendering {
		scheduler.pending = &request
		select {
		case scheduler.wake <- struct{}{}:
		default:
		}
		return
	}

	scheduler.rendering = true
	ctx := scheduler.beginLocked(request)
	go scheduler.run(ctx, request)
}

// Busy reports whether a render is in flight and which page is pending (0 if none).
func (scheduler *Scheduler) Busy() (rendering bool, pendingPage int) {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if scheduler.pending != nil {
		pendingPage = scheduler.pending.page
	}
	return scheduler.rendering, pendingPage
}

// Close cancels the in-flight render and all preloads without waiting for
// them. No frame is presented after Close returns.
func (scheduler *Scheduler) Close() {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if scheduler.closed {
		return
	}
	scheduler.closed = true
	scheduler.pending = nil
	if scheduler.cancelTask != nil {
		scheduler.cancelTask()
	}
	scheduler.stop()
}

// beginLocked cancels the previous task and returns the context for the next.
func (scheduler *Scheduler) beginLocked(request renderRequest) context.Context {
	if scheduler.cancelTask != nil {
		scheduler.cancelTask()
	}

	ctx, cancel := context.WithCancel(scheduler.root)
	scheduler.cancelTask = cancel
	scheduler.current = request
	return ctx
}

// run renders request, then drains the pending slot until it is empty.
func (scheduler *Scheduler) run(ctx context.Context, request renderRequest) {
	for {
		err := scheduler.renderWithRetry(ctx, request)
		scheduler.report(request, err)

		scheduler.mu.Lock()
		next := scheduler.pending
		scheduler.pending = nil

		if next == nil || scheduler.closed {
			scheduler.rendering = false
			if scheduler.cancelTask != nil {
				scheduler.cancelTask()
				scheduler.cancelTask = nil
			}
			scheduler.mu.Unlock()
			return
		}

		ctx = scheduler.beginLocked(*next)
		request = *next
		scheduler.mu.Unlock()
	}
}

// report forwards the outcome of one request to the observer.
func (scheduler *Scheduler) report(request renderRequest, err error) {
	switch {
	case err == nil:
		scheduler.observer.PageRendered(request.page)
		if !scheduler.hasPending() {
			scheduler.preload(request.page)
		}

	case errors.Is(err, errSuperseded), isCancellation(err):
		scheduler.logger.Debug("render_cancelled", slog.Int("page", request.page))

	default:
		var loadError *LoadError
		if !errors.As(err, &loadError) {
			loadError = &LoadError{Reason: Classify(err), Attempts: 1, Page: request.page, Err: err}
		}
		scheduler.logger.Warn("render_failed",
			slog.Int("page", request.page),
			slog.String("reason", loadError.Reason.String()),
			slog.Int("attempts", loadError.Attempts),
			slog.Any("error", loadError.Err),
		)
		scheduler.observer.RenderFailed(loadError)
	}
}

// renderWithRetry renders once and retries failures with a linear backoff.
func (scheduler *Scheduler) renderWithRetry(ctx context.Context, request renderRequest) error {
	for attempt := 1; ; attempt++ {
		err := scheduler.render(ctx, request)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || isCancellation(err) {
			return ErrRenderCancelled
		}

		reason := Classify(err)
		if reason == ReasonMalformed || attempt > scheduler.options.MaxRetries {
			return &LoadError{Reason: reason, Attempts: attempt, Page: request.page, Err: err}
		}

		delay := scheduler.options.backoff(attempt)
		scheduler.logger.Info("render_retry",
			slog.Int("page", request.page),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		if err := scheduler.backoff(ctx, delay); err != nil {
			return err
		}
	}
}

// backoff waits for delay unless cancelled or a pending request takes over.
func (scheduler *Scheduler) backoff(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		if scheduler.hasPending() {
			return errSuperseded
		}

		select {
		case <-ctx.Done():
			return ErrRenderCancelled
		case <-timer.C:
			return nil
		case <-scheduler.wake:
		}
	}
}

// render decodes (or reuses) the page and paints it, low fidelity first when enabled.
func (scheduler *Scheduler) render(ctx context.Context, request renderRequest) error {
	page, err := scheduler.page(ctx, request.page)
	if err != nil {
		return err
	}

	if scheduler.options.ProgressiveRendering && scheduler.options.LowFidelityFactor < 1 {
		if err := scheduler.paint(ctx, page, request.scale, scheduler.options.LowFidelityFactor); err != nil {
			return err
		}

		// The sharp pass is wasted work if another page is already waiting
		if scheduler.hasPending() {
			return nil
		}
	}

	return scheduler.paint(ctx, page, request.scale, 1)
}

// paint draws one pass and presents it if the task is still current.
func (scheduler *Scheduler) paint(ctx context.Context, page *Page, scale, fidelity float64) error {
	frame, err := scheduler.painter.Paint(ctx, page, scale, fidelity)
	if err != nil {
		return err
	}

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if ctx.Err() != nil || scheduler.closed {
		return ErrRenderCancelled
	}
	return scheduler.surface.Present(frame)
}

// page returns the decoded page from the cache, from a preload of the same
// page that is already running, or by decoding it.
func (scheduler *Scheduler) page(ctx context.Context, n int) (*Page, error) {
	if page, ok := scheduler.cache.Get(n); ok {
		return page, nil
	}

	scheduler.mu.Lock()
	preloaded, inFlight := scheduler.preloading[n]
	scheduler.mu.Unlock()

	if inFlight {
		select {
		case <-ctx.Done():
			return nil, ErrRenderCancelled
		case <-preloaded:
		}
		if page, ok := scheduler.cache.Get(n); ok {
			return page, nil
		}
	}

	return scheduler.decode(ctx, n)
}

// decode decodes page n and caches it.
func (scheduler *Scheduler) decode(ctx context.Context, n int) (*Page, error) {
	page, err := scheduler.document.Page(ctx, n)
	if err != nil {
		return nil, err
	}

	scheduler.cache.Put(n, page)
	return page, nil
}

// preload decodes the pages after n in the background. Failures are logged
// and otherwise ignored.
func (scheduler *Scheduler) preload(n int) {
	last := min(n+scheduler.options.PreloadDepth, scheduler.document.NumPages())

	for next := n + 1; next <= last; next++ {
		if scheduler.cache.Contains(next) {
			continue
		}

		scheduler.mu.Lock()
		_, inFlight := scheduler.preloading[next]
		if inFlight || scheduler.closed {
			scheduler.mu.Unlock()
			continue
		}
		done := make(chan struct{})
		scheduler.preloading[next] = done
		scheduler.mu.Unlock()

		go func(pageNumber int) {
			defer func() {
				scheduler.mu.Lock()
				delete(scheduler.preloading, pageNumber)
				scheduler.mu.Unlock()
				close(done)
			}()

			if _, err := scheduler.decode(scheduler.root, pageNumber); err != nil && !isCancellation(err) {
				scheduler.logger.Debug("preload_failed", slog.Int("page", pageNumber), slog.Any("error", err))
			}
		}(next)
	}
}

func (scheduler *Scheduler) hasPending() bool {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	return scheduler.pending != nil
}
