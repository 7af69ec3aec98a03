// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import "sync"

// PageCache is a bounded store of decoded pages with insertion-order eviction.
//
// When a new page would exceed the bound, the page inserted first is dropped.
// Putting a page that is already present replaces it in place; its position in
// the eviction order does not change. Entries never expire by time.
type PageCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[int]*Page
	order   []int
}

// NewPageCache returns a cache holding at most maxSize pages (minimum 1).
func NewPageCache(maxSize int) *PageCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &PageCache{
		maxSize: maxSize,
		entries: make(map[int]*Page, maxSize),
		order:   make([]int, 0, maxSize),
	}
}

// Get returns the cached page.
func (cache *PageCache) Get(pageNumber int) (*Page, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	page, ok := cache.entries[pageNumber]
	return page, ok
}

// Contains reports whether the page is cached.
func (cache *PageCache) Contains(pageNumber int) bool {
	_, ok := cache.Get(pageNumber)
	return ok
}

// Put stores a page, evicting the oldest insertion when full.
func (cache *PageCache) Put(pageNumber int, page *Page) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if _, exists := cache.entries[pageNumber]; exists {
		cache.entries[pageNumber] = page
		return
	}

	if len(cache.order) >= cache.maxSize {
		oldest := cache.order[0]
		cache.order = cache.order[1:]
		delete(cache.entries, oldest)
	}

	cache.entries[pageNumber] = page
	cache.order = append(cache.order, pageNumber)
}

// Len is the number of cached pages.
func (cache *PageCache) Len() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.entries)
}

// Keys returns cached page numbers from oldest to newest insertion.
func (cache *PageCache) Keys() []int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return append([]int(nil), cache.order...)
}

// Clear drops every entry.
func (cache *PageCache) Clear() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	clear(cache.entries)
	cache.order = cache.order[:0]
}
