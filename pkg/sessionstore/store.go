// Package sessionstore provides the tab-session scoped key-value store used for
// throttle timestamps and the session identifier.
package sessionstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

const (
	// SessionIDKey is the key holding the lazily generated session identifier.
	SessionIDKey = "performanceSessionId"

	// DefaultIdleTimeout ends a session after this long without any access.
	DefaultIdleTimeout = 30 * time.Minute
)

// Store is a string key-value store scoped to one session.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryStore keeps values in memory. Every key shares one idle expiry, so a
// session that is not touched for the idle timeout loses all its keys at once,
// like a closed tab.
type MemoryStore struct {
	cache *ttlcache.Cache[string, string]
	mu    sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose keys expire after idleTimeout without
// access. A zero or negative timeout keeps keys until Clear is called.
func NewMemoryStore(idleTimeout time.Duration) *MemoryStore {
	opts := []ttlcache.Option[string, string]{}
	if idleTimeout > 0 {
		opts = append(opts, ttlcache.WithTTL[string, string](idleTimeout))
	}
	return &MemoryStore{cache: ttlcache.New(opts...)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(key)
	if item == nil {
		return "", false
	}
	s.touch()
	return item.Value(), true
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(key, value, ttlcache.DefaultTTL)
	s.touch()
}

// Clear drops every key, ending the session.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.DeleteAll()
}

// Len returns the number of live keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.DeleteExpired()
	return s.cache.Len()
}

// touch extends every key so the session expires as a whole.
func (s *MemoryStore) touch() {
	for _, key := range s.cache.Keys() {
		s.cache.Touch(key)
	}
}

var sessionMu sync.Mutex

// SessionID returns the session identifier held in store, generating and
// caching a new one on first access.
func SessionID(store Store) string {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	if id, ok := store.Get(SessionIDKey); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	store.Set(SessionIDKey, id)
	return id
}
