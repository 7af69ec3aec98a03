// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package storage provides read access to stored document bytes.

Every read is a scoped acquisition: [Store.OpenRange] hands out a reader for one
slice of one object and the caller must close it on every exit path. No handle
is shared between requests; concurrent reads of the same object rely on the
filesystem or the object store.

Backends:

  - FileStore: documents under a local root directory (default).
  - S3Store: documents in an S3-compatible bucket (AWS, R2, MinIO).
*/
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when the location does not resolve to a readable object.
var ErrNotFound = errors.New("storage: object not found")

// ErrInvalidRange is returned when the requested slice lies outside the object.
var ErrInvalidRange = errors.New("storage: invalid range")

// Object describes a stored blob.
type Object struct {
	Location string
	Size     int64
	ModTime  time.Time
}

// Store is the read contract used by the document gateway.
type Store interface {

	/*
		Stat verifies that location exists and is readable.

		Returns:
		  - Object: size and modification time
		  - error: ErrNotFound if missing or unreadable
	*/
	Stat(ctx context.Context, location string) (Object, error)

	/*
		OpenRange opens exactly length bytes of location starting at offset.

		Returns:
		  - io.ReadCloser: must be closed by the caller
		  - error: ErrNotFound or ErrInvalidRange
	*/
	OpenRange(ctx context.Context, location string, offset, length int64) (io.ReadCloser, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
