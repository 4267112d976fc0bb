package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dbautorest/models"
	"dbautorest/pkg/logger"
)

// pool is a manager slot. ready is closed once ex or err is set.
type pool struct {
	ready chan struct{}
	ex    Executor
	err   error
}

// Manager caches one executor per connection fingerprint. It is the only
// long-lived holder of credentials. No lock is held while dialing.
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*pool
	open   Opener
	opts   PoolOptions
	closed bool
}

// NewManager creates a manager using the default drivers.
func NewManager(opts PoolOptions) *Manager {
	return NewManagerWithOpener(opts, Open)
}

// NewManagerWithOpener creates a manager with a custom opener, for tests.
func NewManagerWithOpener(opts PoolOptions, open Opener) *Manager {
	return &Manager{
		pools: make(map[string]*pool),
		open:  open,
		opts:  opts,
	}
}

// Get returns the executor for cfg, opening it on first use. Concurrent
// first uses of the same fingerprint open a single pool.
func (m *Manager) Get(ctx context.Context, cfg models.ConnectionConfig) (Executor, error) {
	key := cfg.Fingerprint()

	m.mu.RLock()
	p, ok := m.pools[key]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, errors.New("driver manager is closed")
	}

	if !ok {
		m.mu.Lock()
		if p, ok = m.pools[key]; !ok {
			p = &pool{ready: make(chan struct{})}
			m.pools[key] = p
		}
		m.mu.Unlock()

		if !ok {
			m.dial(ctx, key, cfg, p)
		}
	}

	select {
	case <-p.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.ex, nil
}

func (m *Manager) dial(ctx context.Context, key string, cfg models.ConnectionConfig, p *pool) {
	ex, err := m.open(ctx, cfg, m.opts)
	if err != nil {
		p.err = fmt.Errorf("failed to open %s pool %s: %w", cfg.Type, key, err)
		m.mu.Lock()
		if m.pools[key] == p {
			delete(m.pools, key)
		}
		m.mu.Unlock()
		close(p.ready)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = ex.Close()
		p.err = errors.New("driver manager is closed")
		close(p.ready)
		return
	}
	p.ex = ex
	m.mu.Unlock()
	close(p.ready)
	logger.Infof("Opened %s pool %s (%s:%d/%s)", cfg.Type, key, cfg.Host, cfg.Port, cfg.Database)
}

// Refresh replaces the pool for cfg if stale is still the cached executor,
// then returns the current executor. Concurrent refreshes open it once.
func (m *Manager) Refresh(ctx context.Context, cfg models.ConnectionConfig, stale Executor) (Executor, error) {
	key := cfg.Fingerprint()

	m.mu.Lock()
	p, ok := m.pools[key]
	replace := ok && isReady(p) && p.ex == stale
	if replace {
		delete(m.pools, key)
	}
	m.mu.Unlock()

	if replace {
		logger.Infof("Refreshing stale pool %s", key)
		if err := stale.Close(); err != nil {
			logger.Warnf("Failed to close stale pool %s: %v", key, err)
		}
	}
	return m.Get(ctx, cfg)
}

func isReady(p *pool) bool {
	select {
	case <-p.ready:
		return true
	default:
		return false
	}
}

// Len returns the number of open or opening pools.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}

// Close closes every open pool. Later Get calls fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for key, p := range m.pools {
		if isReady(p) && p.ex != nil {
			if err := p.ex.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close pool %s: %w", key, err))
			}
		}
		delete(m.pools, key)
	}
	m.closed = true
	return errors.Join(errs...)
}
