package service

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"entailsum/internal/domain"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheMaxEntries = 512
	defaultCacheTTL        = 30 * time.Minute
)

// resultCache is an LRU of ranked results with per-entry expiry.
type resultCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type resultCacheEntry struct {
	key       string
	ranked    domain.RankedResult
	expiresAt time.Time
}

func newResultCache(maxEntries int) *resultCache {
	if maxEntries <= 0 {
		return nil
	}

	return &resultCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func resultCacheKey(model, source string) string {
	model = strings.TrimSpace(model)
	if model == "" || source == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(source))

	return model + "|" + hex.EncodeToString(hash[:])
}

func (c *resultCache) get(key string, now time.Time) (domain.RankedResult, bool) {
	if c == nil || key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*resultCacheEntry)
	if now.After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}

	c.order.MoveToFront(elem)

	return slices.Clone(entry.ranked), true
}

func (c *resultCache) set(key string, ranked domain.RankedResult, expiresAt, now time.Time) {
	if c == nil || key == "" || len(ranked) == 0 || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*resultCacheEntry)
		entry.ranked = slices.Clone(ranked)
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&resultCacheEntry{
		key:       key,
		ranked:    slices.Clone(ranked),
		expiresAt: expiresAt,
	})

	c.evictExpiredLocked(now)
	for len(c.entries) > c.maxEntries {
		c.removeElement(c.order.Back())
	}
}

func (c *resultCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*resultCacheEntry).expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *resultCache) removeElement(elem *list.Element) {
	delete(c.entries, elem.Value.(*resultCacheEntry).key)
	c.order.Remove(elem)
}
