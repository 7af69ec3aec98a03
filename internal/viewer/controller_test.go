// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/lectern/internal/viewer"
)

const settle = 50 * time.Millisecond

type controllerFixture struct {
	document *fakeDocument
	fetcher  *scriptedFetcher
	decoder  *scriptedDecoder
	painter  *gatePainter
	surface  *viewer.ImageSurface
	keys     *fakeKeys
	events   *events

	first, prev, next, last, zoomIn, zoomOut, fullscreen, retry *fakeControl

	controller *viewer.Controller
}

func newControllerFixture(t *testing.T, configure func(fixture *controllerFixture, config *viewer.ControllerConfig)) *controllerFixture {
	t.Helper()

	document := newFakeDocument(5)
	fixture := &controllerFixture{
		document:   document,
		fetcher:    &scriptedFetcher{replies: []func([]byte) ([]byte, error){fetchReturning("%PDF-1.7 fake")}},
		decoder:    &scriptedDecoder{replies: []func([]byte) (viewer.Document, error){decodeTo(document)}},
		painter:    newGatePainter(),
		surface:    viewer.NewImageSurface(),
		keys:       &fakeKeys{},
		events:     &events{},
		first:      &fakeControl{},
		prev:       &fakeControl{},
		next:       &fakeControl{},
		last:       &fakeControl{},
		zoomIn:     &fakeControl{},
		zoomOut:    &fakeControl{},
		fullscreen: &fakeControl{},
		retry:      &fakeControl{},
	}

	options := testOptions()
	config := viewer.ControllerConfig{
		URL:     "http://localhost/serve?resourceId=1&token=t",
		Surface: fixture.surface,
		Fetcher: fixture.fetcher,
		Decoder: fixture.decoder,
		Painter: fixture.painter,
		Controls: viewer.Controls{
			First:      fixture.first,
			Prev:       fixture.prev,
			Next:       fixture.next,
			Last:       fixture.last,
			ZoomIn:     fixture.zoomIn,
			ZoomOut:    fixture.zoomOut,
			Fullscreen: fixture.fullscreen,
			Retry:      fixture.retry,
		},
		Keys:      fixture.keys,
		Callbacks: fixture.events.callbacks(),
		Options:   &options,
	}
	if configure != nil {
		configure(fixture, &config)
	}

	controller, err := viewer.New(config)
	require.NoError(t, err)
	t.Cleanup(controller.Dispose)
	fixture.controller = controller

	return fixture
}

// loadAndSettle loads the document and waits for page 1 to be on screen.
func (fixture *controllerFixture) loadAndSettle(t *testing.T) {
	t.Helper()

	require.NoError(t, fixture.controller.Load(context.Background()))
	fixture.waitForPages(t, 1)
}

func (fixture *controllerFixture) waitForPages(t *testing.T, count int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(fixture.events.snapshot().pageChanges) >= count && !fixture.controller.State().Rendering
	}, waitFor, tick)
}

func networkFailure(message string) *viewer.FetchError {
	return &viewer.FetchError{Reason: viewer.ReasonNetwork, Err: errors.New(message)}
}

/*
TestNew_RequiresSurfaceAndURL rejects configurations that cannot show anything.
*/
func TestNew_RequiresSurfaceAndURL(t *testing.T) {
	_, err := viewer.New(viewer.ControllerConfig{URL: "http://localhost/doc"})
	assert.Error(t, err)

	_, err = viewer.New(viewer.ControllerConfig{Surface: viewer.NewImageSurface()})
	assert.Error(t, err)
}

/*
TestController_LoadRendersFirstPage loads a document and expects page 1 with
the load and progress callbacks.
*/
func TestController_LoadRendersFirstPage(t *testing.T) {
	fixture := newControllerFixture(t, nil)

	assert.Equal(t, 120, fixture.controller.State().ZoomPercent())

	fixture.loadAndSettle(t)

	state := fixture.controller.State()
	assert.True(t, state.Loaded)
	assert.Equal(t, 1, state.CurrentPage)
	assert.Equal(t, 5, state.TotalPages)

	log := fixture.events.snapshot()
	assert.Equal(t, []int{5}, log.loaded)
	assert.Equal(t, []int{100}, log.progress)
	assert.Equal(t, [2]int{1, 5}, log.pageChanges[0])
	assert.Empty(t, log.errors)

	assert.Equal(t, []paintCall{{page: 1, scale: 1.2, fidelity: 1}}, fixture.painter.paintCalls())
	assert.NotNil(t, fixture.surface.Frame())
}

/*
TestController_NavigationGuards ignores moves past either end and to the
current page, and never renders for them.
*/
func TestController_NavigationGuards(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.loadAndSettle(t)

	fixture.controller.Prev()
	fixture.controller.First()
	fixture.controller.GoTo(0)
	fixture.controller.GoTo(1)

	assert.Never(t, func() bool { return len(fixture.painter.pages()) > 1 }, settle, tick)
	assert.Equal(t, 1, fixture.controller.State().CurrentPage)

	fixture.controller.Last()
	assert.Equal(t, 5, fixture.controller.State().CurrentPage)
	fixture.waitForPages(t, 2)

	fixture.controller.Next()
	fixture.controller.GoTo(6)
	fixture.controller.GoTo(5)

	assert.Never(t, func() bool { return len(fixture.painter.pages()) > 2 }, settle, tick)
	assert.Equal(t, []int{1, 5}, fixture.painter.pages())
}

/*
TestController_NavigationBeforeLoad is a no-op.
*/
func TestController_NavigationBeforeLoad(t *testing.T) {
	fixture := newControllerFixture(t, nil)

	fixture.controller.Next()
	fixture.controller.GoTo(3)

	assert.Zero(t, fixture.controller.State().CurrentPage)
	assert.Empty(t, fixture.painter.paintCalls())
}

/*
TestController_ControlsFollowPosition checks controls are enabled according to
the current page and that pressing them navigates.
*/
func TestController_ControlsFollowPosition(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.loadAndSettle(t)

	enabled := func(control *fakeControl) bool {
		value, known := control.isEnabled()
		return known && value
	}

	assert.False(t, enabled(fixture.first))
	assert.False(t, enabled(fixture.prev))
	assert.True(t, enabled(fixture.next))
	assert.True(t, enabled(fixture.last))
	assert.False(t, enabled(fixture.retry))

	fixture.last.press()
	fixture.waitForPages(t, 2)

	assert.True(t, enabled(fixture.prev))
	assert.False(t, enabled(fixture.next))

	fixture.prev.press()
	assert.Equal(t, 4, fixture.controller.State().CurrentPage)
}

/*
TestController_ZoomClamps steps zoom past both bounds. Steps at a bound are
ignored and do not fire callbacks.
*/
func TestController_ZoomClamps(t *testing.T) {
	fixture := newControllerFixture(t, nil)

	for range 20 {
		fixture.controller.ZoomIn()
	}
	assert.Equal(t, 3.0, fixture.controller.State().Zoom)

	zooms := fixture.events.snapshot().zooms
	assert.Len(t, zooms, 8)
	assert.Equal(t, 145, zooms[0])
	assert.Equal(t, 300, zooms[len(zooms)-1])

	enabled, _ := fixture.zoomIn.isEnabled()
	assert.False(t, enabled)

	for range 30 {
		fixture.controller.ZoomOut()
	}
	assert.Equal(t, 0.5, fixture.controller.State().Zoom)

	zooms = fixture.events.snapshot().zooms
	assert.Len(t, zooms, 18)
	assert.Equal(t, 50, zooms[len(zooms)-1])

	// Not loaded yet, so nothing was drawn
	assert.Empty(t, fixture.painter.paintCalls())
}

/*
TestController_ZoomRerenders draws the current page again at the new scale.
*/
func TestController_ZoomRerenders(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.loadAndSettle(t)

	fixture.controller.ZoomIn()

	assert.Eventually(t, func() bool {
		calls := fixture.painter.paintCalls()
		return len(calls) == 2 && calls[1].scale == 1.45 && calls[1].page == 1
	}, waitFor, tick)
}

/*
TestController_KeysAndSwipes maps keys and horizontal swipes to navigation.
*/
func TestController_KeysAndSwipes(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.loadAndSettle(t)

	current := func() int { return fixture.controller.State().CurrentPage }

	fixture.keys.press(viewer.KeyRight)
	assert.Equal(t, 2, current())

	fixture.keys.press(viewer.KeyPageDown)
	assert.Equal(t, 3, current())

	fixture.controller.HandleSwipe(-80, 10)
	assert.Equal(t, 4, current())

	fixture.controller.HandleSwipe(80, 120)
	fixture.controller.HandleSwipe(30, 0)
	assert.Equal(t, 4, current())

	fixture.controller.HandleSwipe(60, 0)
	assert.Equal(t, 3, current())

	fixture.keys.press(viewer.KeyEnd)
	assert.Equal(t, 5, current())

	fixture.keys.press(viewer.KeyHome)
	assert.Equal(t, 1, current())

	fixture.keys.press(viewer.KeyEquals)
	assert.Equal(t, 1.45, fixture.controller.State().Zoom)

	fixture.keys.press(viewer.KeyMinus)
	assert.Equal(t, 1.2, fixture.controller.State().Zoom)
}

/*
TestController_Fullscreen toggles fullscreen, re-renders after the settle
delay and leaves fullscreen on Escape.
*/
func TestController_Fullscreen(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.loadAndSettle(t)

	// Escape outside fullscreen does nothing
	fixture.keys.press(viewer.KeyEscape)
	assert.False(t, fixture.controller.State().Fullscreen)

	fixture.fullscreen.press()
	assert.True(t, fixture.controller.State().Fullscreen)

	assert.Eventually(t, func() bool {
		return len(fixture.painter.pages()) == 2
	}, waitFor, tick)

	fixture.keys.press(viewer.KeyEscape)
	assert.False(t, fixture.controller.State().Fullscreen)
	assert.Equal(t, []bool{true, false}, fixture.events.snapshot().fullscreen)
}

/*
TestController_LoadResumesAfterNetworkFailure retries a broken download from
the bytes already received.
*/
func TestController_LoadResumesAfterNetworkFailure(t *testing.T) {
	fixture := newControllerFixture(t, func(fixture *controllerFixture, _ *viewer.ControllerConfig) {
		fixture.fetcher.replies = []func([]byte) ([]byte, error){
			func([]byte) ([]byte, error) { return []byte("%PDF-1"), networkFailure("connection reset") },
			func(resumeFrom []byte) ([]byte, error) { return append(resumeFrom, ".7 rest"...), nil },
		}
	})

	fixture.loadAndSettle(t)

	assert.Equal(t, 2, fixture.fetcher.calls())
	assert.Equal(t, "%PDF-1", string(fixture.fetcher.resumes[1]))
	assert.Equal(t, []string{"%PDF-1.7 rest"}, fixture.decoder.decodedInputs())
	assert.Empty(t, fixture.events.snapshot().errors)
}

/*
TestController_LoadGivesUp reports a classified error once retries are spent.
*/
func TestController_LoadGivesUp(t *testing.T) {
	fixture := newControllerFixture(t, func(fixture *controllerFixture, _ *viewer.ControllerConfig) {
		fixture.fetcher.replies = []func([]byte) ([]byte, error){
			func(resumeFrom []byte) ([]byte, error) { return resumeFrom, networkFailure("no route to host") },
		}
	})

	err := fixture.controller.Load(context.Background())

	var loadError *viewer.LoadError
	require.ErrorAs(t, err, &loadError)
	assert.Equal(t, viewer.ReasonNetwork, loadError.Reason)
	assert.Equal(t, 3, loadError.Attempts)
	assert.Equal(t, 3, fixture.fetcher.calls())

	log := fixture.events.snapshot()
	require.Len(t, log.errors, 1)
	assert.Equal(t, loadError, log.errors[0])
	assert.False(t, fixture.controller.State().Loaded)

	enabled, _ := fixture.retry.isEnabled()
	assert.True(t, enabled)
}

/*
TestController_LoadTerminalReasons stops at the first attempt for failures a
retry cannot fix.
*/
func TestController_LoadTerminalReasons(t *testing.T) {
	tests := []struct {
		name    string
		fetch   func([]byte) ([]byte, error)
		decode  func([]byte) (viewer.Document, error)
		reason  viewer.Reason
		message string
	}{
		{
			name:    "malformed document",
			fetch:   fetchReturning("garbage"),
			decode:  decodeFailing(&viewer.DecodeError{Reason: viewer.ReasonMalformed, Err: errors.New("no xref")}),
			reason:  viewer.ReasonMalformed,
			message: "invalid or corrupted",
		},
		{
			name: "expired token",
			fetch: func([]byte) ([]byte, error) {
				return nil, &viewer.FetchError{Reason: viewer.ReasonAccessDenied, StatusCode: 401, Err: errors.New("Unauthorized")}
			},
			reason:  viewer.ReasonAccessDenied,
			message: "denied",
		},
		{
			name: "missing document",
			fetch: func([]byte) ([]byte, error) {
				return nil, &viewer.FetchError{Reason: viewer.ReasonNotFound, StatusCode: 404, Err: errors.New("Not Found")}
			},
			reason:  viewer.ReasonNotFound,
			message: "could not be found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newControllerFixture(t, func(fixture *controllerFixture, _ *viewer.ControllerConfig) {
				fixture.fetcher.replies = []func([]byte) ([]byte, error){tt.fetch}
				if tt.decode != nil {
					fixture.decoder.replies = []func([]byte) (viewer.Document, error){tt.decode}
				}
			})

			err := fixture.controller.Load(context.Background())

			var loadError *viewer.LoadError
			require.ErrorAs(t, err, &loadError)
			assert.Equal(t, tt.reason, loadError.Reason)
			assert.Equal(t, 1, loadError.Attempts)
			assert.Contains(t, loadError.Message(), tt.message)
			assert.Equal(t, 1, fixture.fetcher.calls())
		})
	}
}

/*
TestController_DecodeRetryReusesBytes decodes the downloaded bytes again after
a transient decode failure instead of downloading again.
*/
func TestController_DecodeRetryReusesBytes(t *testing.T) {
	fixture := newControllerFixture(t, func(fixture *controllerFixture, _ *viewer.ControllerConfig) {
		fixture.decoder.replies = []func([]byte) (viewer.Document, error){
			decodeFailing(&viewer.DecodeError{Reason: viewer.ReasonUnknown, Err: errors.New("worker busy")}),
			decodeTo(fixture.document),
		}
	})

	fixture.loadAndSettle(t)

	assert.Equal(t, 1, fixture.fetcher.calls())
	assert.Len(t, fixture.decoder.decodedInputs(), 2)
}

/*
TestController_RetryAfterMalformed downloads afresh when the user retries a
malformed document.
*/
func TestController_RetryAfterMalformed(t *testing.T) {
	fixture := newControllerFixture(t, func(fixture *controllerFixture, _ *viewer.ControllerConfig) {
		fixture.decoder.replies = []func([]byte) (viewer.Document, error){
			decodeFailing(&viewer.DecodeError{Reason: viewer.ReasonMalformed, Err: errors.New("truncated")}),
			decodeTo(fixture.document),
		}
	})

	require.Error(t, fixture.controller.Load(context.Background()))
	require.NoError(t, fixture.controller.Retry(context.Background()))
	fixture.waitForPages(t, 1)

	assert.Equal(t, 2, fixture.fetcher.calls())
	assert.True(t, fixture.controller.State().Loaded)
}

/*
TestController_LoadCancelled returns the context error without reporting it
to the host.
*/
func TestController_LoadCancelled(t *testing.T) {
	fixture := newControllerFixture(t, func(fixture *controllerFixture, _ *viewer.ControllerConfig) {
		fixture.fetcher.replies = []func([]byte) ([]byte, error){
			func(resumeFrom []byte) ([]byte, error) { return resumeFrom, networkFailure("aborted") },
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fixture.controller.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fixture.events.snapshot().errors)
}

/*
TestController_ResolveURLPerAttempt asks the host for a fresh URL before each
download.
*/
func TestController_ResolveURLPerAttempt(t *testing.T) {
	var minted atomic.Int32

	fixture := newControllerFixture(t, func(fixture *controllerFixture, config *viewer.ControllerConfig) {
		config.URL = ""
		config.ResolveURL = func(context.Context) (string, error) {
			return fmt.Sprintf("http://localhost/serve?resourceId=1&token=t%d", minted.Add(1)), nil
		}
		fixture.fetcher.replies = []func([]byte) ([]byte, error){
			func([]byte) ([]byte, error) {
				return nil, &viewer.FetchError{Reason: viewer.ReasonNetwork, StatusCode: 503, Err: errors.New("unavailable")}
			},
			fetchReturning("%PDF-1.7"),
		}
	})

	fixture.loadAndSettle(t)

	assert.Equal(t, []string{
		"http://localhost/serve?resourceId=1&token=t1",
		"http://localhost/serve?resourceId=1&token=t2",
	}, fixture.fetcher.urls)
}

/*
TestController_RenderFailureAndRetry surfaces a failed page and renders it
again when the retry control is pressed.
*/
func TestController_RenderFailureAndRetry(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.document.fail(1, &viewer.DecodeError{Reason: viewer.ReasonMalformed, Page: 1, Err: errors.New("bad content stream")})

	require.NoError(t, fixture.controller.Load(context.Background()))

	require.Eventually(t, func() bool {
		return len(fixture.events.snapshot().errors) == 1
	}, waitFor, tick)

	failure := fixture.controller.Failure()
	require.NotNil(t, failure)
	assert.Equal(t, 1, failure.Page)

	assert.Eventually(t, func() bool {
		enabled, _ := fixture.retry.isEnabled()
		return enabled
	}, waitFor, tick)

	fixture.document.heal(1)
	fixture.retry.press()

	fixture.waitForPages(t, 1)
	assert.Nil(t, fixture.controller.Failure())
}

/*
TestController_Dispose releases every binding and the surface, and turns
later calls into no-ops.
*/
func TestController_Dispose(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.loadAndSettle(t)

	fixture.controller.Dispose()
	fixture.controller.Dispose()

	for _, control := range []*fakeControl{
		fixture.first, fixture.prev, fixture.next, fixture.last,
		fixture.zoomIn, fixture.zoomOut, fixture.fullscreen, fixture.retry,
	} {
		assert.True(t, control.isReleased())
	}
	assert.True(t, fixture.keys.released)
	assert.True(t, fixture.surface.Released())
	assert.Nil(t, fixture.surface.Frame())

	assert.ErrorIs(t, fixture.controller.Load(context.Background()), viewer.ErrDisposed)
	assert.ErrorIs(t, fixture.controller.Retry(context.Background()), viewer.ErrDisposed)

	fixture.controller.Next()
	fixture.controller.ToggleFullscreen()
	assert.Never(t, func() bool { return len(fixture.painter.pages()) > 1 }, settle, tick)
}

/*
TestController_DisposeCancelsLoad stops a download that is still running when
the viewer is disposed.
*/
func TestController_DisposeCancelsLoad(t *testing.T) {
	fetcher := newBlockingFetcher()
	fixture := newControllerFixture(t, func(_ *controllerFixture, config *viewer.ControllerConfig) {
		config.Fetcher = fetcher
	})

	loaded := make(chan error, 1)
	go func() { loaded <- fixture.controller.Load(context.Background()) }()

	select {
	case <-fetcher.started:
	case <-time.After(waitFor):
		t.Fatal("fetch did not start")
	}

	fixture.controller.Dispose()

	select {
	case err := <-fetcher.ended:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("fetch still running after Dispose")
	}

	select {
	case err := <-loaded:
		assert.ErrorIs(t, err, viewer.ErrDisposed)
	case <-time.After(waitFor):
		t.Fatal("Load did not return after Dispose")
	}
	assert.Empty(t, fixture.events.snapshot().errors)
}

/*
TestController_DisposeCancelsRetryControl stops a load started by the retry
control, which has no caller context of its own.
*/
func TestController_DisposeCancelsRetryControl(t *testing.T) {
	fetcher := newBlockingFetcher()
	fixture := newControllerFixture(t, func(_ *controllerFixture, config *viewer.ControllerConfig) {
		config.Fetcher = fetcher
	})

	fixture.retry.press()

	select {
	case <-fetcher.started:
	case <-time.After(waitFor):
		t.Fatal("retry did not start a fetch")
	}

	fixture.controller.Dispose()

	select {
	case err := <-fetcher.ended:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("retry fetch still running after Dispose")
	}
}

/*
TestController_DisposeDuringRender drops the in-flight render without
presenting it or reporting an error.
*/
func TestController_DisposeDuringRender(t *testing.T) {
	fixture := newControllerFixture(t, nil)
	fixture.painter.gate(1)

	require.NoError(t, fixture.controller.Load(context.Background()))
	fixture.controller.Dispose()

	assert.Never(t, func() bool {
		log := fixture.events.snapshot()
		return len(log.pageChanges) > 0 || len(log.errors) > 0
	}, settle, tick)
	assert.Zero(t, fixture.surface.Frames())
}
