// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey holds the context keys shared by middleware and handlers.
// Read them through ctxutil rather than directly.
package ctxkey

type key uint8

const (
	// KeyRequestID carries the X-Request-ID correlation value.
	KeyRequestID key = iota + 1

	// KeyLogger carries the request scoped [*log/slog.Logger].
	KeyLogger

	// KeyTrace carries the mutable delivery trace filled by the serve handler.
	KeyTrace
)
