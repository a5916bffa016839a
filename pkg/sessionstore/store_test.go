package sessionstore

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_GetSet(t *testing.T) {
	store := NewMemoryStore(0)

	_, ok := store.Get("missing")
	assert.False(t, ok)

	store.Set("lastAnalytics_LCP", "1000")
	v, ok := store.Get("lastAnalytics_LCP")
	assert.True(t, ok)
	assert.Equal(t, "1000", v)

	store.Set("lastAnalytics_LCP", "2000")
	v, _ = store.Get("lastAnalytics_LCP")
	assert.Equal(t, "2000", v)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore(0)
	store.Set("a", "1")
	store.Set("b", "2")

	store.Clear()

	assert.Equal(t, 0, store.Len())
	_, ok := store.Get("a")
	assert.False(t, ok)
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	g := NewWithT(t)
	store := NewMemoryStore(50 * time.Millisecond)
	store.Set("a", "1")

	g.Eventually(store.Len, time.Second, 10*time.Millisecond).Should(BeZero())
	_, ok := store.Get("a")
	g.Expect(ok).To(BeFalse())
}

func TestSessionID(t *testing.T) {
	store := NewMemoryStore(0)

	first := SessionID(store)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, SessionID(store))

	stored, ok := store.Get(SessionIDKey)
	assert.True(t, ok)
	assert.Equal(t, first, stored)

	store.Clear()
	assert.NotEqual(t, first, SessionID(store))
}
