package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"dbautorest/pkg/metrics"
)

// ResponseCache is a bounded TTL cache of shaped responses.
type ResponseCache struct {
	lru *expirable.LRU[string, any]
}

// NewResponseCache creates a cache holding at most size entries for ttl each.
func NewResponseCache(size int, ttl time.Duration) *ResponseCache {
	if size <= 0 {
		size = 5000
	}
	return &ResponseCache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

// Get returns an unexpired entry.
func (c *ResponseCache) Get(key string) (any, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		metrics.CacheResults.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheResults.WithLabelValues("miss").Inc()
	}
	return v, ok
}

// Set stores v under key.
func (c *ResponseCache) Set(key string, v any) {
	c.lru.Add(key, v)
}

// Purge drops every entry.
func (c *ResponseCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *ResponseCache) Len() int {
	return c.lru.Len()
}
