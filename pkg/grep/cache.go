// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package grep

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache is the bounded LRU+TTL result cache owned by the grep pipeline.
// Any ingest invalidates it wholesale; entries also age out individually.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List               // front = most recent
	entries map[uint64]*list.Element

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key     uint64
	value   *Response
	expires time.Time
}

// NewCache creates a cache bounded to maxSize entries with the given TTL.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 200
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[uint64]*list.Element),
	}
}

// Key hashes the full request parameter tuple.
func (c *Cache) Key(req Request) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s\x00%s\x00%s\x00%t\x00%d\x00%d\x00%t\x00%t\x00%t",
		req.Pattern, req.Project, req.Language, req.CaseSensitive,
		req.MaxResults, req.ContextLines, req.Grouped, req.IncludeAssets, req.Symbols))
}

// Get returns a live cached response, or nil.
func (c *Cache) Get(key uint64) *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expires) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return nil
	}
	c.order.MoveToFront(elem)
	c.hits++
	return entry.value
}

// Put stores a response, evicting the least recently used entry past the
// size bound.
func (c *Cache) Put(key uint64, value *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}
	elem := c.order.PushFront(&cacheEntry{key: key, value: value, expires: time.Now().Add(c.ttl)})
	c.entries[key] = elem
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Invalidate drops everything; called by the ingest path.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[uint64]*list.Element)
}

// HitRate reports cache effectiveness for diagnostics.
func (c *Cache) HitRate() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len reports the live entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
