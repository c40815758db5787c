package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// cacheEntry represents a memoized classifier answer.
type cacheEntry struct {
	expiry     time.Time
	suggestion model.Suggestion
}

// Memo is a TTL cache of classifier answers keyed by normalized product name.
// Concurrent misses for the same key share one in-flight call. Failed calls
// are not memoized.
type Memo struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	group   singleflight.Group
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// NewMemo creates a memo with the specified TTL.
func NewMemo(ttl time.Duration) *Memo {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	memo := &Memo{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go memo.cleanup()

	return memo
}

// Get retrieves an answer if it exists and hasn't expired.
func (m *Memo) Get(key string) (model.Suggestion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return model.Suggestion{}, false
	}
	return entry.suggestion, true
}

// Set stores an answer.
func (m *Memo) Set(key string, suggestion model.Suggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = cacheEntry{
		suggestion: suggestion,
		expiry:     time.Now().Add(m.ttl),
	}
}

// Do returns the memoized answer for key or runs fn once for all concurrent
// callers asking for the same key. A caller whose ctx ends stops waiting; the
// in-flight call continues for the others.
func (m *Memo) Do(ctx context.Context, key string, fn func() (model.Suggestion, error)) (model.Suggestion, error) {
	if suggestion, ok := m.Get(key); ok {
		return suggestion, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		if suggestion, ok := m.Get(key); ok {
			return suggestion, nil
		}
		suggestion, err := fn()
		if err != nil {
			return model.Suggestion{}, err
		}
		m.Set(key, suggestion)
		return suggestion, nil
	})

	select {
	case <-ctx.Done():
		return model.Suggestion{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Suggestion{}, res.Err
		}
		return res.Val.(model.Suggestion), nil
	}
}

// Len returns the number of entries in the memo.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cleanup periodically removes expired entries.
func (m *Memo) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, entry := range m.entries {
				if now.After(entry.expiry) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (m *Memo) Close() {
	m.once.Do(func() { close(m.stopCh) })
}
