// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/taibuivan/lectern/internal/platform/apperr"
	"github.com/taibuivan/lectern/internal/platform/constants"
	"github.com/taibuivan/lectern/internal/platform/ctxutil"
)

// ErrAborted wraps failures that happen after the response status was sent.
// Nothing more can be written to the client; callers only log it.
var ErrAborted = errors.New("stream: aborted after headers")

// Source opens one slice of a document. Every reader it returns is closed by
// [Serve] before Serve returns.
type Source interface {
	OpenRange(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

/*
Serve writes the slice of src selected by the request's Range header.

Responses:
  - 200 with Accept-Ranges when no usable Range header is present.
  - 206 with Content-Range for a satisfiable range.
  - For an unsatisfiable range it sets a Content-Range naming only the total
    and returns apperr.RangeNotSatisfiable, which respond.Error writes without
    a body.

Errors returned before any byte is written are safe to render. Errors wrapping
[ErrAborted] are not.
*/
func Serve(writer http.ResponseWriter, request *http.Request, src Source, total int64) error {
	byteRange, err := ComputeRange(request.Header.Get(constants.HeaderRange), total)
	if err != nil {
		writer.Header().Set(constants.HeaderContentRange, fmt.Sprintf("bytes */%d", total))
		notSatisfiable := apperr.RangeNotSatisfiable(total)
		notSatisfiable.Cause = err
		return notSatisfiable
	}

	length := byteRange.Length()

	var body io.ReadCloser
	if length > 0 {
		body, err = src.OpenRange(request.Context(), byteRange.Start, length)
		if err != nil {
			return err
		}
		defer body.Close()
	}

	header := writer.Header()
	header.Set(constants.HeaderAcceptRanges, "bytes")
	header.Set(constants.HeaderContentLength, strconv.FormatInt(length, 10))

	if byteRange.Partial {
		header.Set(constants.HeaderContentRange, byteRange.ContentRange())
		writer.WriteHeader(http.StatusPartialContent)
	} else {
		writer.WriteHeader(http.StatusOK)
	}

	if body == nil {
		return nil
	}

	written, err := io.CopyN(writer, body, length)
	if trace := ctxutil.GetTrace(request.Context()); trace != nil {
		trace.BytesSent = written
	}
	if err != nil {
		return fmt.Errorf("%w: copied %d of %d bytes: %w", ErrAborted, written, length, err)
	}

	return nil
}
