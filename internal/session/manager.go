// Package session binds a browser session to its cart, checkout and
// recently-viewed list.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/cart"
	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/checkout"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/pricing"
	"github.com/alaineid/robomarket-ae-sub000/internal/search"
	"github.com/alaineid/robomarket-ae-sub000/internal/storage"
)

const (
	// CleanupInterval is how often idle sessions are evicted from memory.
	CleanupInterval = time.Minute

	SearchDelay = search.DefaultDelay
)

type Session struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Orchestrator
	Recent   *catalog.Recent
	Products *search.ProductList

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

type Deps struct {
	Store     storage.Store
	Catalog   catalog.Accessor
	Pricing   *pricing.Engine
	Submitter checkout.Submitter
	Validator *checkout.Validator
	Log       *logger.Logger
}

// Manager keeps live sessions in memory. Their state is durable in the
// backing store, so evicting an idle session only drops the cached objects.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
	idle     time.Duration
	now      func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewManager(deps Deps, idle time.Duration) *Manager {
	if deps.Validator == nil {
		deps.Validator = checkout.NewValidator()
	}
	m := &Manager{
		sessions:    make(map[string]*Session),
		deps:        deps,
		idle:        idle,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Get returns the session for id, restoring it from the store on first use.
// The restore runs without holding the manager lock; if two requests race to
// restore the same session, the first one stored wins.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	now := m.now()
	if s := m.lookup(id, now); s != nil {
		return s
	}

	s := m.open(ctx, id, now)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		s.Products.Cancel()
		existing.touch(now)
		return existing
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.deps.Log.Debug("session opened", "session_id", id)
	return s
}

func (m *Manager) lookup(id string, now time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	s.touch(now)
	return s
}

func (m *Manager) open(ctx context.Context, id string, now time.Time) *Session {
	kv := storage.Namespace(m.deps.Store, storage.SessionPrefix(id))
	log := m.deps.Log.With("session_id", id)
	c := cart.Open(ctx, kv, m.deps.Catalog, m.deps.Pricing, log)
	return &Session{
		ID:       id,
		Cart:     c,
		Checkout: checkout.Open(ctx, kv, c, m.deps.Submitter, m.deps.Validator, log),
		Recent:   catalog.OpenRecent(ctx, kv, log),
		Products: search.NewProductList(m.deps.Catalog, SearchDelay),
		lastSeen: now,
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// cleanupLoop periodically evicts idle sessions
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) evictIdle() int {
	if m.idle <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if s.idleSince(now) >= m.idle {
			s.Products.Cancel()
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.deps.Log.Debug("evicted idle sessions", "count", evicted, "remaining", len(m.sessions))
	}
	return evicted
}

func (m *Manager) Close() error {
	close(m.stopCleanup)
	m.wg.Wait()
	return nil
}
