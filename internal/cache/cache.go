// Package cache holds the answer cache and its background janitor.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"cfocopilot/internal/log"
)

// Cache is what the copilot needs from an answer cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge() int
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps expired entries out of the caches registered with it.
// Stop is safe to call whether or not Start ran, and more than once.
type Manager struct {
	logger *log.Logger

	mu     sync.Mutex
	caches map[string]Cleaner
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		caches: make(map[string]Cleaner),
	}
}

// Register adds c under name, replacing any cache registered before with
// the same name.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// Start sweeps every interval until Stop. It does nothing when already
// running, when interval is not positive, or when nothing is registered.
func (m *Manager) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil || interval <= 0 || len(m.caches) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel, m.done = cancel, make(chan struct{})
	go m.run(ctx, interval, m.done)
}

func (m *Manager) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanNow()
		}
	}
}

// CleanNow runs one expiry pass and returns how many entries were dropped.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	caches := make([]Cleaner, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		caches = append(caches, m.caches[name])
	}
	m.mu.Unlock()

	total := 0
	for i, c := range caches {
		if n := c.CleanExpired(); n > 0 {
			m.logger.Debug("Expired cache entries removed", "cache", names[i], "removed", n)
			total += n
		}
	}
	return total
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
