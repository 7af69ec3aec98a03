// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer_test

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/taibuivan/lectern/internal/viewer"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

// testOptions keeps retries and settle delays short.
func testOptions() viewer.Options {
	options := viewer.DefaultOptions()
	options.MaxRetries = 2
	options.RetryBaseDelay = time.Millisecond
	options.FullscreenSettleDelay = time.Millisecond
	options.ProgressiveRendering = false
	return options
}

// fakeDocument decodes instantly, unless a page is held, and records which
// pages were asked for.
type fakeDocument struct {
	pages int

	mu      sync.Mutex
	decoded []int
	failing map[int]error
	held    map[int]chan struct{}
}

func newFakeDocument(pages int) *fakeDocument {
	return &fakeDocument{pages: pages, failing: make(map[int]error), held: make(map[int]chan struct{})}
}

// hold blocks decoding of page n until the returned channel is closed.
func (document *fakeDocument) hold(n int) chan struct{} {
	document.mu.Lock()
	defer document.mu.Unlock()
	release := make(chan struct{})
	document.held[n] = release
	return release
}

func (document *fakeDocument) NumPages() int { return document.pages }

func (document *fakeDocument) Page(ctx context.Context, n int) (*viewer.Page, error) {
	document.mu.Lock()
	document.decoded = append(document.decoded, n)
	failure, release := document.failing[n], document.held[n]
	document.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, viewer.ErrRenderCancelled
		}
	}
	if failure != nil {
		return nil, failure
	}
	if err := ctx.Err(); err != nil {
		return nil, viewer.ErrRenderCancelled
	}
	return &viewer.Page{Number: n, Width: 100, Height: 140}, nil
}

func (document *fakeDocument) fail(n int, err error) {
	document.mu.Lock()
	defer document.mu.Unlock()
	document.failing[n] = err
}

func (document *fakeDocument) heal(n int) {
	document.mu.Lock()
	defer document.mu.Unlock()
	delete(document.failing, n)
}

func (document *fakeDocument) decodeCount(n int) int {
	document.mu.Lock()
	defer document.mu.Unlock()
	count := 0
	for _, decoded := range document.decoded {
		if decoded == n {
			count++
		}
	}
	return count
}

func (document *fakeDocument) decodedPages() []int {
	document.mu.Lock()
	defer document.mu.Unlock()
	return append([]int(nil), document.decoded...)
}

// paintCall is one Paint invocation.
type paintCall struct {
	page     int
	scale    float64
	fidelity float64
}

// gatePainter blocks on pages with a closed-later gate and records every pass.
type gatePainter struct {
	mu    sync.Mutex
	calls []paintCall
	gates map[int]chan struct{}
}

func newGatePainter() *gatePainter {
	return &gatePainter{gates: make(map[int]chan struct{})}
}

func (painter *gatePainter) gate(page int) chan struct{} {
	painter.mu.Lock()
	defer painter.mu.Unlock()

	gate := make(chan struct{})
	painter.gates[page] = gate
	return gate
}

func (painter *gatePainter) Paint(ctx context.Context, page *viewer.Page, scale, fidelity float64) (image.Image, error) {
	painter.mu.Lock()
	gate := painter.gates[page.Number]
	painter.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, viewer.ErrRenderCancelled
		}
	}

	painter.mu.Lock()
	painter.calls = append(painter.calls, paintCall{page: page.Number, scale: scale, fidelity: fidelity})
	painter.mu.Unlock()

	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (painter *gatePainter) paintCalls() []paintCall {
	painter.mu.Lock()
	defer painter.mu.Unlock()
	return append([]paintCall(nil), painter.calls...)
}

// pages lists the painted page numbers in order.
func (painter *gatePainter) pages() []int {
	var pages []int
	for _, call := range painter.paintCalls() {
		pages = append(pages, call.page)
	}
	return pages
}

// recordingObserver collects scheduler events.
type recordingObserver struct {
	mu       sync.Mutex
	rendered []int
	failures []*viewer.LoadError
}

func (observer *recordingObserver) PageRendered(page int) {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	observer.rendered = append(observer.rendered, page)
}

func (observer *recordingObserver) RenderFailed(err *viewer.LoadError) {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	observer.failures = append(observer.failures, err)
}

func (observer *recordingObserver) renderedPages() []int {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	return append([]int(nil), observer.rendered...)
}

func (observer *recordingObserver) failureList() []*viewer.LoadError {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	return append([]*viewer.LoadError(nil), observer.failures...)
}

// scriptedFetcher answers each Fetch call with the next scripted reply.
type scriptedFetcher struct {
	mu      sync.Mutex
	replies []func(resumeFrom []byte) ([]byte, error)
	resumes [][]byte
	urls    []string
}

func fetchReturning(data string) func([]byte) ([]byte, error) {
	return func([]byte) ([]byte, error) { return []byte(data), nil }
}

func (fetcher *scriptedFetcher) Fetch(ctx context.Context, url string, resumeFrom []byte, progress viewer.ProgressFunc) ([]byte, error) {
	fetcher.mu.Lock()
	call := len(fetcher.resumes)
	fetcher.resumes = append(fetcher.resumes, append([]byte(nil), resumeFrom...))
	fetcher.urls = append(fetcher.urls, url)
	reply := fetcher.replies[min(call, len(fetcher.replies)-1)]
	fetcher.mu.Unlock()

	data, err := reply(resumeFrom)
	if progress != nil && err == nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return data, err
}

func (fetcher *scriptedFetcher) calls() int {
	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	return len(fetcher.resumes)
}

// scriptedDecoder answers each Decode call with the next scripted reply.
// blockingFetcher holds every fetch open until its context ends.
type blockingFetcher struct {
	started chan struct{}
	ended   chan error
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{started: make(chan struct{}, 1), ended: make(chan error, 1)}
}

func (fetcher *blockingFetcher) Fetch(ctx context.Context, _ string, resumeFrom []byte, _ viewer.ProgressFunc) ([]byte, error) {
	fetcher.started <- struct{}{}
	<-ctx.Done()
	fetcher.ended <- ctx.Err()
	return resumeFrom, ctx.Err()
}

type scriptedDecoder struct {
	mu      sync.Mutex
	replies []func(data []byte) (viewer.Document, error)
	inputs  []string
}

func decodeTo(document viewer.Document) func([]byte) (viewer.Document, error) {
	return func([]byte) (viewer.Document, error) { return document, nil }
}

func decodeFailing(err error) func([]byte) (viewer.Document, error) {
	return func([]byte) (viewer.Document, error) { return nil, err }
}

func (decoder *scriptedDecoder) Decode(_ context.Context, data []byte) (viewer.Document, error) {
	decoder.mu.Lock()
	call := len(decoder.inputs)
	decoder.inputs = append(decoder.inputs, string(data))
	reply := decoder.replies[min(call, len(decoder.replies)-1)]
	decoder.mu.Unlock()

	return reply(data)
}

func (decoder *scriptedDecoder) decodedInputs() []string {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()
	return append([]string(nil), decoder.inputs...)
}

// fakeControl records its binding and enabled state.
type fakeControl struct {
	mu       sync.Mutex
	action   func()
	released bool
	enabled  *bool
}

func (control *fakeControl) Bind(action func()) func() {
	control.mu.Lock()
	defer control.mu.Unlock()
	control.action = action
	return func() {
		control.mu.Lock()
		defer control.mu.Unlock()
		control.action = nil
		control.released = true
	}
}

func (control *fakeControl) SetEnabled(enabled bool) {
	control.mu.Lock()
	defer control.mu.Unlock()
	control.enabled = &enabled
}

func (control *fakeControl) press() {
	control.mu.Lock()
	action := control.action
	control.mu.Unlock()
	if action != nil {
		action()
	}
}

func (control *fakeControl) isEnabled() (enabled, known bool) {
	control.mu.Lock()
	defer control.mu.Unlock()
	if control.enabled == nil {
		return false, false
	}
	return *control.enabled, true
}

func (control *fakeControl) isReleased() bool {
	control.mu.Lock()
	defer control.mu.Unlock()
	return control.released
}

// fakeKeys hands out one key handler.
type fakeKeys struct {
	mu       sync.Mutex
	handler  func(viewer.Key)
	released bool
}

func (keys *fakeKeys) BindKeys(handler func(viewer.Key)) func() {
	keys.mu.Lock()
	defer keys.mu.Unlock()
	keys.handler = handler
	return func() {
		keys.mu.Lock()
		defer keys.mu.Unlock()
		keys.handler = nil
		keys.released = true
	}
}

func (keys *fakeKeys) press(key viewer.Key) {
	keys.mu.Lock()
	handler := keys.handler
	keys.mu.Unlock()
	if handler != nil {
		handler(key)
	}
}

// eventLog is what a host saw through its callbacks.
type eventLog struct {
	progress    []int
	loaded      []int
	pageChanges [][2]int
	errors      []*viewer.LoadError
	zooms       []int
	fullscreen  []bool
}

// events collects host callbacks.
type events struct {
	mu  sync.Mutex
	log eventLog
}

func (recorded *events) record(update func(log *eventLog)) {
	recorded.mu.Lock()
	defer recorded.mu.Unlock()
	update(&recorded.log)
}

func (recorded *events) callbacks() viewer.Callbacks {
	return viewer.Callbacks{
		OnProgress: func(percent int) {
			recorded.record(func(log *eventLog) { log.progress = append(log.progress, percent) })
		},
		OnLoad: func(total int) {
			recorded.record(func(log *eventLog) { log.loaded = append(log.loaded, total) })
		},
		OnPageChange: func(page, total int) {
			recorded.record(func(log *eventLog) { log.pageChanges = append(log.pageChanges, [2]int{page, total}) })
		},
		OnError: func(err *viewer.LoadError) {
			recorded.record(func(log *eventLog) { log.errors = append(log.errors, err) })
		},
		OnZoom: func(percent int) {
			recorded.record(func(log *eventLog) { log.zooms = append(log.zooms, percent) })
		},
		OnFullscreen: func(fullscreen bool) {
			recorded.record(func(log *eventLog) { log.fullscreen = append(log.fullscreen, fullscreen) })
		},
	}
}

func (recorded *events) snapshot() eventLog {
	recorded.mu.Lock()
	defer recorded.mu.Unlock()
	return eventLog{
		progress:    append([]int(nil), recorded.log.progress...),
		loaded:      append([]int(nil), recorded.log.loaded...),
		pageChanges: append([][2]int(nil), recorded.log.pageChanges...),
		errors:      append([]*viewer.LoadError(nil), recorded.log.errors...),
		zooms:       append([]int(nil), recorded.log.zooms...),
		fullscreen:  append([]bool(nil), recorded.log.fullscreen...),
	}
}
