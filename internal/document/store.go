// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package document

import (
	"context"

	"github.com/taibuivan/lectern/internal/platform/apperr"
)

// ErrNotFound is returned for missing, inactive and unreadable documents alike.
var ErrNotFound = apperr.NotFound("Document")

// ResourceRepository is the read side of the content repository.
type ResourceRepository interface {
	// FindActiveByID returns the resource only when it exists and is active.
	// Anything else yields [ErrNotFound].
	FindActiveByID(ctx context.Context, id int64) (*Resource, error)
}
