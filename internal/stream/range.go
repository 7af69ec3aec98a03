// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package stream computes HTTP byte ranges and streams the selected slice of a
stored document.

Only single ranges of the form "bytes=<start>-[<end>]" are understood. Any other
Range header, including suffix and multi-range forms, is ignored and the whole
document is sent, as RFC 7233 allows.
*/
package stream

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrRangeNotSatisfiable is returned when the requested start lies beyond the
// document or after the requested end.
var ErrRangeNotSatisfiable = errors.New("stream: range not satisfiable")

var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// ByteRange is the inclusive slice [Start, End] of a document of Total bytes.
//
// For a non-empty document 0 <= Start <= End < Total. The full range of an
// empty document is {0, -1, 0} and has zero length.
type ByteRange struct {
	Start   int64
	End     int64
	Total   int64
	Partial bool
}

// Length is the number of bytes the range covers.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range value for a partial response.
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// FullRange covers the whole document.
func FullRange(total int64) ByteRange {
	return ByteRange{Start: 0, End: total - 1, Total: total}
}

/*
ComputeRange interprets a Range header against a document of total bytes.

Rules:
  - Empty or unrecognised header: the full range.
  - Missing end: runs to the last byte.
  - End at or past total: clamped to the last byte.
  - Start past end, or start at or past total: ErrRangeNotSatisfiable.
*/
func ComputeRange(header string, total int64) (ByteRange, error) {
	matches := rangePattern.FindStringSubmatch(header)
	if matches == nil {
		return FullRange(total), nil
	}

	start, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		// Only overflow reaches here; a start that large is beyond any document
		return ByteRange{}, ErrRangeNotSatisfiable
	}

	end := total - 1
	if matches[2] != "" {
		requested, err := strconv.ParseInt(matches[2], 10, 64)
		if err == nil && requested < end {
			end = requested
		}
	}

	if start >= total || start > end {
		return ByteRange{}, ErrRangeNotSatisfiable
	}

	return ByteRange{Start: start, End: end, Total: total, Partial: true}, nil
}
