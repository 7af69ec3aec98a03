// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"sync"
	"time"
)

// MemoryNonceRegistry keeps nonces in process memory. It is used when no Redis
// URL is configured and in tests. Expired entries are dropped lazily on access
// and by Sweep.
type MemoryNonceRegistry struct {
	mu      sync.Mutex
	entries map[string]nonceEntry
	now     func() time.Time
}

type nonceEntry struct {
	resourceID int64
	expiresAt  time.Time
}

// NewMemoryNonceRegistry returns an empty registry.
func NewMemoryNonceRegistry() *MemoryNonceRegistry {
	return &MemoryNonceRegistry{
		entries: make(map[string]nonceEntry),
		now:     time.Now,
	}
}

// Register implements [NonceRegistry].
func (registry *MemoryNonceRegistry) Register(_ context.Context, nonce string, resourceID int64, ttl time.Duration) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.entries[nonce] = nonceEntry{resourceID: resourceID, expiresAt: registry.now().Add(ttl)}
	return nil
}

// Lookup implements [NonceRegistry].
func (registry *MemoryNonceRegistry) Lookup(_ context.Context, nonce string) (int64, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	entry, ok := registry.entries[nonce]
	if !ok {
		return 0, ErrUnknownNonce
	}
	if !registry.now().Before(entry.expiresAt) {
		delete(registry.entries, nonce)
		return 0, ErrUnknownNonce
	}

	return entry.resourceID, nil
}

// Sweep removes every expired entry and reports how many were dropped.
func (registry *MemoryNonceRegistry) Sweep() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	now := registry.now()
	removed := 0
	for nonce, entry := range registry.entries {
		if !now.Before(entry.expiresAt) {
			delete(registry.entries, nonce)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (registry *MemoryNonceRegistry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Sweep()
		}
	}
}
