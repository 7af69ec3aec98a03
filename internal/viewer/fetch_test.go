// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/lectern/internal/viewer"
)

const documentBody = "%PDF-1.7 0123456789 abcdefghijklmnopqrstuvwxyz %%EOF"

// rangeServer serves documentBody with byte-range support and records the
// Range header of each request.
func rangeServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()

	var mu sync.Mutex
	var ranges []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ranges = append(ranges, r.Header.Get("Range"))
		mu.Unlock()

		http.ServeContent(w, r, "document.pdf", time.Time{}, bytes.NewReader([]byte(documentBody)))
	}))
	t.Cleanup(server.Close)

	return server, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), ranges...)
	}
}

/*
TestHTTPFetcher_Full downloads the whole body and reports progress up to the
announced length.
*/
func TestHTTPFetcher_Full(t *testing.T) {
	server, ranges := rangeServer(t)

	var lastLoaded, lastTotal int64
	data, err := viewer.NewHTTPFetcher().Fetch(context.Background(), server.URL, nil, func(loaded, total int64) {
		lastLoaded, lastTotal = loaded, total
	})

	require.NoError(t, err)
	assert.Equal(t, documentBody, string(data))
	assert.Equal(t, int64(len(documentBody)), lastLoaded)
	assert.Equal(t, int64(len(documentBody)), lastTotal)
	assert.Equal(t, []string{""}, ranges())
}

/*
TestHTTPFetcher_Resume continues after the bytes already received.
*/
func TestHTTPFetcher_Resume(t *testing.T) {
	server, ranges := rangeServer(t)
	received := []byte(documentBody[:10])

	var lastTotal int64
	data, err := viewer.NewHTTPFetcher().Fetch(context.Background(), server.URL, received, func(_, total int64) {
		lastTotal = total
	})

	require.NoError(t, err)
	assert.Equal(t, documentBody, string(data))
	assert.Equal(t, int64(len(documentBody)), lastTotal)
	assert.Equal(t, []string{"bytes=10-"}, ranges())
}

/*
TestHTTPFetcher_ResumeIgnoredByServer starts over when the server answers a
resume with the full body.
*/
func TestHTTPFetcher_ResumeIgnoredByServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(documentBody)))
		_, _ = w.Write([]byte(documentBody))
	}))
	defer server.Close()

	data, err := viewer.NewHTTPFetcher().Fetch(context.Background(), server.URL, []byte("%PDF"), nil)

	require.NoError(t, err)
	assert.Equal(t, documentBody, string(data))
}

/*
TestHTTPFetcher_StatusReasons classifies error statuses and hands back the
bytes received earlier.
*/
func TestHTTPFetcher_StatusReasons(t *testing.T) {
	tests := []struct {
		status int
		reason viewer.Reason
	}{
		{http.StatusNotFound, viewer.ReasonNotFound},
		{http.StatusGone, viewer.ReasonNotFound},
		{http.StatusUnauthorized, viewer.ReasonAccessDenied},
		{http.StatusForbidden, viewer.ReasonAccessDenied},
		{http.StatusTooManyRequests, viewer.ReasonNetwork},
		{http.StatusBadGateway, viewer.ReasonNetwork},
		{http.StatusBadRequest, viewer.ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			received := []byte("%PDF-1")
			data, err := viewer.NewHTTPFetcher().Fetch(context.Background(), server.URL, received, nil)

			var fetchError *viewer.FetchError
			require.ErrorAs(t, err, &fetchError)
			assert.Equal(t, tt.status, fetchError.StatusCode)
			assert.Equal(t, tt.reason, viewer.Classify(err))
			assert.Equal(t, received, data)
		})
	}
}

/*
TestHTTPFetcher_RangeRejected discards the resume point on 416.
*/
func TestHTTPFetcher_RangeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer server.Close()

	data, err := viewer.NewHTTPFetcher().Fetch(context.Background(), server.URL, []byte("stale"), nil)

	assert.Nil(t, data)
	assert.Equal(t, viewer.ReasonNetwork, viewer.Classify(err))
}

/*
TestHTTPFetcher_ShortBody returns the partial body with a network error when
the connection ends early.
*/
func TestHTTPFetcher_ShortBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(documentBody)))
		_, _ = w.Write([]byte(documentBody[:8]))
	}))
	defer server.Close()

	data, err := viewer.NewHTTPFetcher().Fetch(context.Background(), server.URL, nil, nil)

	require.Error(t, err)
	assert.Equal(t, viewer.ReasonNetwork, viewer.Classify(err))
	assert.Equal(t, documentBody[:8], string(data))
}

/*
TestHTTPFetcher_HugeContentLength does not trust the announced length for
its buffer and still reports the short body.
*/
func TestHTTPFetcher_HugeContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.FormatInt(1<<50, 10))
		_, _ = w.Write([]byte(documentBody))
	}))
	defer server.Close()

	var lastTotal int64
	data, err := viewer.NewHTTPFetcher().Fetch(context.Background(), server.URL, nil, func(_, total int64) {
		lastTotal = total
	})

	require.Error(t, err)
	assert.Equal(t, viewer.ReasonNetwork, viewer.Classify(err))
	assert.Equal(t, documentBody, string(data))
	assert.Equal(t, int64(1<<50), lastTotal)
}

/*
TestHTTPFetcher_Cancelled returns the context error, not a classified one.
*/
func TestHTTPFetcher_Cancelled(t *testing.T) {
	server, _ := rangeServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := viewer.NewHTTPFetcher().Fetch(ctx, server.URL, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
