// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Callbacks let the host follow the viewer, for example to announce changes
// for accessibility. Every field is optional. Callbacks run on the goroutine
// that caused them and never under a viewer lock.
type Callbacks struct {
	OnProgress   func(percent int)
	OnLoad       func(totalPages int)
	OnPageChange func(page, totalPages int)
	OnError      func(err *LoadError)
	OnZoom       func(percent int)
	OnFullscreen func(fullscreen bool)
}

// ControllerConfig is everything a host supplies to embed a viewer.
type ControllerConfig struct {
	// URL of the document. ResolveURL, when set, is called before every
	// download instead, so hosts can mint a fresh access token per attempt.
	URL        string
	ResolveURL func(ctx context.Context) (string, error)

	// Surface receives painted frames. Required.
	Surface Surface

	Fetcher Fetcher
	Decoder Decoder
	Painter Painter

	Controls  Controls
	Keys      KeySource
	Callbacks Callbacks

	// Options defaults to DefaultOptions when nil.
	Options *Options
	Logger  *slog.Logger
}

// ViewerState is a snapshot of one viewer.
type ViewerState struct {
	CurrentPage int
	TotalPages  int
	Zoom        float64
	Fullscreen  bool
	Rendering   bool
	PendingPage int
	Loaded      bool
}

// ZoomPercent is the zoom as a whole percentage.
func (state ViewerState) ZoomPercent() int {
	return zoomPercent(state.Zoom)
}

// Controller is the top-level viewer object. It owns its scheduler, cache and
// input bindings; [Controller.Dispose] releases all of them.
type Controller struct {
	url        string
	resolveURL func(ctx context.Context) (string, error)
	surface    Surface
	fetcher    Fetcher
	decoder    Decoder
	painter    Painter
	controls   Controls
	callbacks  Callbacks
	options    Options
	logger     *slog.Logger
	cache      *PageCache

	// lifetime ends with Dispose and bounds every load and retry.
	lifetime context.Context
	end      context.CancelFunc

	mu          sync.Mutex
	state       ViewerState
	scheduler   *Scheduler
	generation  int
	complete    []byte
	partial     []byte
	failure     *LoadError
	settleTimer *time.Timer
	releases    []func()
	loading     bool
	disposed    bool
	lastPercent int
}

// New builds a controller and binds its controls and key source once.
func New(config ControllerConfig) (*Controller, error) {
	if config.Surface == nil {
		return nil, errors.New("viewer: surface is required")
	}
	if config.URL == "" && config.ResolveURL == nil {
		return nil, errors.New("viewer: document URL is required")
	}

	options := DefaultOptions()
	if config.Options != nil {
		options = *config.Options
	}
	options = options.normalized()

	lifetime, end := context.WithCancel(context.Background())

	controller := &Controller{
		lifetime:    lifetime,
		end:         end,
		url:         config.URL,
		resolveURL:  config.ResolveURL,
		surface:     config.Surface,
		fetcher:     config.Fetcher,
		decoder:     config.Decoder,
		painter:     config.Painter,
		controls:    config.Controls,
		callbacks:   config.Callbacks,
		options:     options,
		logger:      config.Logger,
		cache:       NewPageCache(options.MaxCacheSize),
		state:       ViewerState{Zoom: options.InitialZoom},
		lastPercent: -1,
	}

	if controller.fetcher == nil {
		controller.fetcher = NewHTTPFetcher()
	}
	if controller.decoder == nil {
		controller.decoder = NewPDFDecoder()
	}
	if controller.painter == nil {
		controller.painter = NewRasterPainter()
	}
	if controller.logger == nil {
		controller.logger = slog.Default()
	}

	controller.bindInputs(config.Keys)
	return controller, nil
}

// bindInputs attaches every supplied control and keeps the release functions.
func (controller *Controller) bindInputs(keys KeySource) {
	bindings := []struct {
		control Control
		action  func()
	}{
		{controller.controls.First, controller.First},
		{controller.controls.Prev, controller.Prev},
		{controller.controls.Next, controller.Next},
		{controller.controls.Last, controller.Last},
		{controller.controls.ZoomIn, controller.ZoomIn},
		{controller.controls.ZoomOut, controller.ZoomOut},
		{controller.controls.Fullscreen, controller.ToggleFullscreen},
		{controller.controls.Retry, func() { go controller.Retry(controller.lifetime) }},
	}

	for _, binding := range bindings {
		if binding.control != nil {
			controller.releases = append(controller.releases, binding.control.Bind(binding.action))
		}
	}

	if keys != nil {
		controller.releases = append(controller.releases, keys.BindKeys(controller.HandleKey))
	}
}

/*
Load downloads and decodes the document, then renders page 1.

Failures are retried with a linear backoff. Network failures download again,
resuming after the bytes already received. Decode failures other than a
malformed document decode the downloaded bytes again. A malformed document,
a missing document and denied access are reported at once.

Dispose cancels a running Load as well as ctx does.

Returns:
  - error: ctx.Err() when cancelled, ErrDisposed after Dispose, *LoadError
    once retries are spent
*/
func (controller *Controller) Load(ctx context.Context) error {
	controller.mu.Lock()
	if controller.disposed {
		controller.mu.Unlock()
		return ErrDisposed
	}
	if controller.loading {
		controller.mu.Unlock()
		return errors.New("viewer: load already in progress")
	}
	controller.loading = true
	controller.failure = nil
	controller.lastPercent = -1
	complete, partial := controller.complete, controller.partial
	controller.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(controller.lifetime, cancel)()

	document, complete, partial, err := controller.acquire(ctx, complete, partial)
	if Classify(err) == ReasonMalformed {
		// Decoding the same bytes again cannot help; a retry downloads afresh
		complete = nil
	}

	controller.mu.Lock()
	controller.loading = false

	if controller.disposed {
		controller.mu.Unlock()
		return ErrDisposed
	}
	controller.complete, controller.partial = complete, partial

	if err != nil {
		var loadError *LoadError
		if !errors.As(err, &loadError) {
			controller.mu.Unlock()
			return err
		}
		controller.failure = loadError
		controller.mu.Unlock()

		controller.logger.Warn("document_load_failed",
			slog.String("reason", loadError.Reason.String()),
			slog.Int("attempts", loadError.Attempts),
			slog.Any("error", loadError.Err),
		)
		controller.emitError(loadError)
		controller.updateControls()
		return loadError
	}

	// A reload replaces the previous document and everything decoded from it
	if controller.scheduler != nil {
		controller.scheduler.Close()
	}
	controller.cache.Clear()
	controller.generation++
	controller.scheduler = NewScheduler(document, controller.cache, controller.painter, controller.surface,
		renderEvents{controller: controller, generation: controller.generation}, controller.options, controller.logger)

	total := document.NumPages()
	controller.state.TotalPages = total
	controller.state.CurrentPage = 1
	controller.state.Loaded = true
	scheduler, zoom := controller.scheduler, controller.state.Zoom
	controller.mu.Unlock()

	controller.logger.Info("document_loaded", slog.Int("pages", total), slog.Int("bytes", len(complete)))

	if callback := controller.callbacks.OnLoad; callback != nil {
		callback(total)
	}
	controller.updateControls()
	scheduler.RequestPage(1, zoom)

	return nil
}

// acquire runs the fetch and decode attempts for Load.
func (controller *Controller) acquire(ctx context.Context, complete, partial []byte) (Document, []byte, []byte, error) {
	for attempt := 1; ; attempt++ {
		var err error

		if complete == nil {
			var fetched []byte
			fetched, err = controller.fetch(ctx, partial)
			if err != nil {
				partial = fetched
			} else {
				complete, partial = fetched, nil
			}
		}

		if complete != nil {
			var document Document
			document, err = controller.decoder.Decode(ctx, complete)
			if err == nil {
				return document, complete, nil, nil
			}
		}

		if ctx.Err() != nil {
			return nil, complete, partial, ctx.Err()
		}

		reason := Classify(err)
		if !retryable(reason) || attempt > controller.options.MaxRetries {
			return nil, complete, partial, &LoadError{Reason: reason, Attempts: attempt, Err: err}
		}

		delay := controller.options.backoff(attempt)
		controller.logger.Info("document_load_retry",
			slog.Int("attempt", attempt),
			slog.String("reason", reason.String()),
			slog.Bool("refetch", complete == nil),
			slog.Int("resume_from", len(partial)),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return nil, complete, partial, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// fetch resolves the URL and downloads, resuming after partial.
func (controller *Controller) fetch(ctx context.Context, partial []byte) ([]byte, error) {
	url := controller.url
	if controller.resolveURL != nil {
		resolved, err := controller.resolveURL(ctx)
		if err != nil {
			return partial, err
		}
		url = resolved
	}

	return controller.fetcher.Fetch(ctx, url, partial, controller.progress)
}

// progress converts byte counts into percentage callbacks, skipping repeats.
func (controller *Controller) progress(loaded, total int64) {
	if total <= 0 || controller.callbacks.OnProgress == nil {
		return
	}

	percent := int(min(loaded*100/total, 100))

	controller.mu.Lock()
	if percent == controller.lastPercent {
		controller.mu.Unlock()
		return
	}
	controller.lastPercent = percent
	controller.mu.Unlock()

	controller.callbacks.OnProgress(percent)
}

// Retry is the in-viewer retry action after a terminal error. A failed page
// render is requested again; a failed load runs Load again, reusing the
// bytes already downloaded.
func (controller *Controller) Retry(ctx context.Context) error {
	controller.mu.Lock()
	if controller.disposed {
		controller.mu.Unlock()
		return ErrDisposed
	}

	scheduler := controller.scheduler
	if controller.state.Loaded && scheduler != nil {
		controller.failure = nil
		page, zoom := controller.state.CurrentPage, controller.state.Zoom
		controller.mu.Unlock()

		scheduler.RequestPage(page, zoom)
		return nil
	}
	controller.mu.Unlock()

	return controller.Load(ctx)
}

// # Navigation

// GoTo shows page n. Out of range and current pages are ignored.
func (controller *Controller) GoTo(n int) {
	controller.navigate(func(int, int) int { return n })
}

// Next shows the following page; ignored on the last page.
func (controller *Controller) Next() {
	controller.navigate(func(current, _ int) int { return current + 1 })
}

// Prev shows the preceding page; ignored on the first page.
func (controller *Controller) Prev() {
	controller.navigate(func(current, _ int) int { return current - 1 })
}

// First shows page 1.
func (controller *Controller) First() {
	controller.navigate(func(int, int) int { return 1 })
}

// Last shows the final page.
func (controller *Controller) Last() {
	controller.navigate(func(_, total int) int { return total })
}

func (controller *Controller) navigate(target func(current, total int) int) {
	controller.mu.Lock()
	if controller.disposed || !controller.state.Loaded || controller.scheduler == nil {
		controller.mu.Unlock()
		return
	}

	current, total := controller.state.CurrentPage, controller.state.TotalPages
	n := target(current, total)
	if n < 1 || n > total || n == current {
		controller.mu.Unlock()
		return
	}

	controller.state.CurrentPage = n
	scheduler, zoom := controller.scheduler, controller.state.Zoom
	controller.mu.Unlock()

	controller.updateControls()
	scheduler.RequestPage(n, zoom)
}

// # Zoom and Fullscreen

// ZoomIn enlarges by one step, up to the maximum.
func (controller *Controller) ZoomIn() {
	controller.zoom(controller.options.ZoomStep)
}

// ZoomOut shrinks by one step, down to the minimum.
func (controller *Controller) ZoomOut() {
	controller.zoom(-controller.options.ZoomStep)
}

func (controller *Controller) zoom(delta float64) {
	controller.mu.Lock()
	if controller.disposed {
		controller.mu.Unlock()
		return
	}

	next := clampZoom(controller.state.Zoom+delta, controller.options.MinZoom, controller.options.MaxZoom)
	if next == controller.state.Zoom {
		controller.mu.Unlock()
		return
	}

	controller.state.Zoom = next
	scheduler, page, loaded := controller.scheduler, controller.state.CurrentPage, controller.state.Loaded
	controller.mu.Unlock()

	if callback := controller.callbacks.OnZoom; callback != nil {
		callback(zoomPercent(next))
	}
	controller.updateControls()

	if loaded && scheduler != nil {
		scheduler.RequestPage(page, next)
	}
}

// ToggleFullscreen flips the fullscreen flag and re-renders the current page
// once the host layout has had FullscreenSettleDelay to settle.
func (controller *Controller) ToggleFullscreen() {
	controller.mu.Lock()
	if controller.disposed {
		controller.mu.Unlock()
		return
	}

	controller.state.Fullscreen = !controller.state.Fullscreen
	fullscreen := controller.state.Fullscreen

	if controller.settleTimer != nil {
		controller.settleTimer.Stop()
	}
	controller.settleTimer = time.AfterFunc(controller.options.FullscreenSettleDelay, controller.rerender)
	controller.mu.Unlock()

	if callback := controller.callbacks.OnFullscreen; callback != nil {
		callback(fullscreen)
	}
}

// rerender requests the current page again at the current zoom.
func (controller *Controller) rerender() {
	controller.mu.Lock()
	if controller.disposed || !controller.state.Loaded || controller.scheduler == nil {
		controller.mu.Unlock()
		return
	}
	scheduler, page, zoom := controller.scheduler, controller.state.CurrentPage, controller.state.Zoom
	controller.mu.Unlock()

	scheduler.RequestPage(page, zoom)
}

// # State and Lifecycle

// State returns a snapshot of the viewer.
func (controller *Controller) State() ViewerState {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	state := controller.state
	if controller.scheduler != nil {
		state.Rendering, state.PendingPage = controller.scheduler.Busy()
	}
	return state
}

// Failure returns the last terminal error, or nil after a successful render.
func (controller *Controller) Failure() *LoadError {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.failure
}

// Dispose releases every input binding, stops timers, cancels loading and
// rendering and releases the surface. It is safe to call more than once.
func (controller *Controller) Dispose() {
	controller.mu.Lock()
	if controller.disposed {
		controller.mu.Unlock()
		return
	}
	controller.disposed = true
	controller.end()

	releases := controller.releases
	controller.releases = nil

	if controller.settleTimer != nil {
		controller.settleTimer.Stop()
		controller.settleTimer = nil
	}

	scheduler := controller.scheduler
	controller.scheduler = nil
	controller.complete, controller.partial = nil, nil
	controller.mu.Unlock()

	for _, release := range releases {
		release()
	}
	if scheduler != nil {
		scheduler.Close()
	}
	controller.cache.Clear()
	controller.surface.Release()

	controller.logger.Debug("viewer_disposed")
}

// # Scheduler Events

// renderEvents is the narrow view of the controller handed to its scheduler.
// Events from a scheduler replaced by a reload are dropped.
type renderEvents struct {
	controller *Controller
	generation int
}

func (events renderEvents) PageRendered(page int) {
	controller := events.controller

	controller.mu.Lock()
	if controller.disposed || controller.generation != events.generation {
		controller.mu.Unlock()
		return
	}
	controller.failure = nil
	total := controller.state.TotalPages
	controller.mu.Unlock()

	if callback := controller.callbacks.OnPageChange; callback != nil {
		callback(page, total)
	}
	controller.updateControls()
}

func (events renderEvents) RenderFailed(err *LoadError) {
	controller := events.controller

	controller.mu.Lock()
	if controller.disposed || controller.generation != events.generation {
		controller.mu.Unlock()
		return
	}
	controller.failure = err
	controller.mu.Unlock()

	controller.emitError(err)
	controller.updateControls()
}

func (controller *Controller) emitError(err *LoadError) {
	if callback := controller.callbacks.OnError; callback != nil {
		callback(err)
	}
}

// updateControls enables each control according to the current state.
func (controller *Controller) updateControls() {
	controller.mu.Lock()
	if controller.disposed {
		controller.mu.Unlock()
		return
	}
	state := controller.state
	failed := controller.failure != nil
	controller.mu.Unlock()

	canGoBack := state.Loaded && state.CurrentPage > 1
	canGoForward := state.Loaded && state.CurrentPage < state.TotalPages

	setEnabled(controller.controls.First, canGoBack)
	setEnabled(controller.controls.Prev, canGoBack)
	setEnabled(controller.controls.Next, canGoForward)
	setEnabled(controller.controls.Last, canGoForward)
	setEnabled(controller.controls.ZoomIn, state.Zoom < controller.options.MaxZoom)
	setEnabled(controller.controls.ZoomOut, state.Zoom > controller.options.MinZoom)
	setEnabled(controller.controls.Retry, failed)
}

func setEnabled(control Control, enabled bool) {
	if control != nil {
		control.SetEnabled(enabled)
	}
}

func zoomPercent(zoom float64) int {
	return int(math.Round(zoom * 100))
}
