// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// fetchChunkSize is the read size between progress reports.
	fetchChunkSize = 32 * 1024

	// maxPreallocation caps the buffer reserved up front from Content-Length.
	maxPreallocation = 64 << 20
)

// ProgressFunc receives the bytes loaded so far and the expected total, or -1
// when the server did not announce one.
type ProgressFunc func(loaded, total int64)

// Fetcher downloads document bytes.
type Fetcher interface {
	// Fetch downloads url. When resumeFrom is non-empty it continues after
	// those bytes if the server allows. On failure it returns whatever bytes
	// were received, so a later call can resume.
	Fetch(ctx context.Context, url string, resumeFrom []byte, progress ProgressFunc) ([]byte, error)
}

// HTTPFetcher downloads over HTTP, resuming with Range requests.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a dedicated client. The timeout covers
// connection setup and headers only; bodies may take as long as they need.
func NewHTTPFetcher() *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second
	return &HTTPFetcher{Client: &http.Client{Transport: transport}}
}

// Fetch implements [Fetcher].
func (fetcher *HTTPFetcher) Fetch(ctx context.Context, url string, resumeFrom []byte, progress ProgressFunc) ([]byte, error) {
	client := fetcher.Client
	if client == nil {
		client = http.DefaultClient
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Reason: ReasonUnknown, Err: err}
	}
	if len(resumeFrom) > 0 {
		request.Header.Set("Range", fmt.Sprintf("bytes=%d-", len(resumeFrom)))
	}

	response, err := client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return resumeFrom, ctx.Err()
		}
		return resumeFrom, &FetchError{Reason: ReasonNetwork, Err: err}
	}
	defer response.Body.Close()

	var data []byte
	total := int64(-1)

	switch {
	case response.StatusCode == http.StatusOK:
		// Full body, whatever was requested
		if response.ContentLength >= 0 {
			total = response.ContentLength
			data = make([]byte, 0, min(total, maxPreallocation))
		}

	case response.StatusCode == http.StatusPartialContent && len(resumeFrom) > 0:
		data = append(make([]byte, 0, len(resumeFrom)), resumeFrom...)
		if announced, ok := contentRangeTotal(response.Header.Get("Content-Range")); ok {
			total = announced
		} else if response.ContentLength >= 0 {
			total = int64(len(resumeFrom)) + response.ContentLength
		}

	case response.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// The resume point is no longer valid; start over next time
		return nil, &FetchError{Reason: ReasonNetwork, StatusCode: response.StatusCode, Err: errors.New("resume rejected")}

	default:
		return resumeFrom, &FetchError{
			Reason:     StatusReason(response.StatusCode),
			StatusCode: response.StatusCode,
			Err:        errors.New(http.StatusText(response.StatusCode)),
		}
	}

	buffer := make([]byte, fetchChunkSize)
	for {
		n, readErr := response.Body.Read(buffer)
		data = append(data, buffer[:n]...)
		if n > 0 && progress != nil {
			progress(int64(len(data)), total)
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return data, ctx.Err()
			}
			return data, &FetchError{Reason: ReasonNetwork, Err: readErr}
		}
	}

	if total >= 0 && int64(len(data)) < total {
		return data, &FetchError{Reason: ReasonNetwork, Err: fmt.Errorf("short read: %d of %d bytes", len(data), total)}
	}

	return data, nil
}

// StatusReason maps an unexpected HTTP status to a reason.
func StatusReason(status int) Reason {
	switch {
	case status == http.StatusNotFound, status == http.StatusGone:
		return ReasonNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ReasonAccessDenied
	case status == http.StatusTooManyRequests, status >= 500:
		return ReasonNetwork
	default:
		return ReasonUnknown
	}
}

// contentRangeTotal parses the total from "bytes start-end/total".
func contentRangeTotal(header string) (int64, bool) {
	_, total, found := strings.Cut(header, "/")
	if !found || total == "*" {
		return 0, false
	}

	value, err := strconv.ParseInt(total, 10, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
