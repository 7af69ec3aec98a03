// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Process-wide decode workers shared by every viewer instance.
var (
	workersOnce sync.Once
	workers     *semaphore.Weighted
)

// ensureInitialized sets up the decode worker pool. Calling it again is a no-op.
func ensureInitialized() {
	workersOnce.Do(func() {
		workers = semaphore.NewWeighted(int64(max(runtime.GOMAXPROCS(0), 1)))
	})
}

// withWorker runs fn while holding one decode slot.
func withWorker(ctx context.Context, fn func() error) error {
	ensureInitialized()

	if err := workers.Acquire(ctx, 1); err != nil {
		return ErrRenderCancelled
	}
	defer workers.Release(1)

	return fn()
}
