// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"context"
	"errors"
	"fmt"
)

// Reason classifies why a document or page could not be shown.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonMalformed
	ReasonNotFound
	ReasonNetwork
	ReasonAccessDenied
)

func (reason Reason) String() string {
	switch reason {
	case ReasonMalformed:
		return "malformed"
	case ReasonNotFound:
		return "not_found"
	case ReasonNetwork:
		return "network"
	case ReasonAccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// Message is the user-facing text for the reason.
func (reason Reason) Message() string {
	switch reason {
	case ReasonMalformed:
		return "The document is invalid or corrupted."
	case ReasonNotFound:
		return "The document could not be found."
	case ReasonNetwork:
		return "Network error. Check your connection and try again."
	case ReasonAccessDenied:
		return "Access to this document was denied or has expired."
	default:
		return "The document could not be displayed."
	}
}

// ErrRenderCancelled marks a render abandoned because a newer request or a
// dispose superseded it. It is never reported to the host.
var ErrRenderCancelled = errors.New("viewer: render cancelled")

// ErrPageOutOfRange is returned for page numbers outside [1, NumPages].
var ErrPageOutOfRange = errors.New("viewer: page out of range")

// ErrDisposed is returned by operations on a disposed controller.
var ErrDisposed = errors.New("viewer: controller disposed")

// DecodeError is a failure to turn bytes into a document or a page.
type DecodeError struct {
	Reason Reason
	Page   int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("viewer: decode page %d (%s): %v", e.Page, e.Reason, e.Err)
	}
	return fmt.Sprintf("viewer: decode document (%s): %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError is a failure to download the document bytes.
type FetchError struct {
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("viewer: fetch (%s, status %d): %v", e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("viewer: fetch (%s): %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LoadError is the terminal error handed to the host once retries are spent.
type LoadError struct {
	Reason   Reason
	Attempts int
	Page     int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("viewer: %s after %d attempt(s): %v", e.Reason, e.Attempts, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Message is the user-facing text for the failure.
func (e *LoadError) Message() string {
	return e.Reason.Message()
}

// Classify extracts the reason carried by err.
func Classify(err error) Reason {
	var decodeError *DecodeError
	var fetchError *FetchError
	var loadError *LoadError

	switch {
	case err == nil:
		return ReasonUnknown
	case errors.As(err, &loadError):
		return loadError.Reason
	case errors.As(err, &decodeError):
		return decodeError.Reason
	case errors.As(err, &fetchError):
		return fetchError.Reason
	default:
		return ReasonUnknown
	}
}

// isCancellation reports whether err stems from a cancelled context or render.
func isCancellation(err error) bool {
	return errors.Is(err, ErrRenderCancelled) || errors.Is(err, context.Canceled)
}

// retryable reports whether repeating the same work can succeed.
func retryable(reason Reason) bool {
	return reason == ReasonNetwork || reason == ReasonUnknown
}
