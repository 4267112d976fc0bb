// Package cache collapses concurrent identical executions and keeps a small
// TTL cache of shaped list responses.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dbautorest/pkg/metrics"
)

type call struct {
	done  chan struct{}
	val   any
	err   error
	timer *time.Timer
}

// Inflight runs at most one execution per key at a time. Callers arriving
// while it runs, or within the grace window after it succeeded, receive the
// same result. Failed executions are forgotten immediately.
type Inflight struct {
	mu     sync.Mutex
	calls  map[string]*call
	grace  time.Duration
	max    int
	closed bool
}

// NewInflight creates an Inflight keeping at most maxEntries keys.
// When full, new keys execute without deduplication.
func NewInflight(grace time.Duration, maxEntries int) *Inflight {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Inflight{
		calls: make(map[string]*call),
		grace: grace,
		max:   maxEntries,
	}
}

// Do executes fn once per key. shared reports whether the result came from
// another caller's execution. fn receives a context detached from the
// caller's cancellation so one disconnecting client cannot fail the others;
// fn is expected to bound itself with a timeout.
func (g *Inflight) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (v any, shared bool, err error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		metrics.DedupShared.Inc()
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			return nil, true, ctx.Err()
		}
	}
	if g.closed || len(g.calls) >= g.max {
		g.mu.Unlock()
		v, err := fn(context.WithoutCancel(ctx))
		return v, false, err
	}
	c := &call{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.val, c.err = nil, fmt.Errorf("execution panicked: %v", r)
			g.forget(key, c)
			close(c.done)
			panic(r)
		}
	}()
	c.val, c.err = fn(context.WithoutCancel(ctx))

	g.mu.Lock()
	switch {
	case c.err != nil || g.grace <= 0:
		if g.calls[key] == c {
			delete(g.calls, key)
		}
	default:
		c.timer = time.AfterFunc(g.grace, func() { g.forget(key, c) })
	}
	g.mu.Unlock()
	close(c.done)

	return c.val, false, c.err
}

func (g *Inflight) forget(key string, c *call) {
	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
}

// Len returns the number of tracked keys.
func (g *Inflight) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Close drops every entry and stops grace timers. Executions already running
// still complete for their waiters; later calls run undeduplicated.
func (g *Inflight) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, c := range g.calls {
		if c.timer != nil {
			c.timer.Stop()
		}
		delete(g.calls, key)
	}
	g.closed = true
}
