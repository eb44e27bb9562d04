package validate

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// History is the per-phone log of recent submission prefixes.
// Append must add the entry and return the resulting window atomically.
type History interface {
	Append(phone, entry string) []string
}

// CacheHistory keeps per-phone submission prefixes in go-cache.
// Each phone's log expires after the retention TTL since its last submission
// and holds at most maxEntries prefixes.
type CacheHistory struct {
	mu         sync.Mutex
	cache      *gocache.Cache
	maxEntries int
}

// NewCacheHistory creates a history with the given retention and per-phone cap
func NewCacheHistory(ttl time.Duration, maxEntries int) *CacheHistory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 20
	}

	return &CacheHistory{
		cache:      gocache.New(ttl, ttl/2),
		maxEntries: maxEntries,
	}
}

// Append records entry for phone and returns a copy of the phone's current log
func (h *CacheHistory) Append(phone, entry string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var entries []string
	if v, ok := h.cache.Get(phone); ok {
		entries = v.([]string)
	}

	entries = append(entries, entry)
	if len(entries) > h.maxEntries {
		entries = append([]string(nil), entries[len(entries)-h.maxEntries:]...)
	}
	h.cache.SetDefault(phone, entries)

	window := make([]string, len(entries))
	copy(window, entries)
	return window
}

// Len returns the number of prefixes currently retained for phone
func (h *CacheHistory) Len(phone string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v, ok := h.cache.Get(phone); ok {
		return len(v.([]string))
	}
	return 0
}
