package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
	"github.com/taskforge/taskforge-cli/internal/types"
)

// cacheEntry holds one cached analysis with access metadata.
type cacheEntry struct {
	analysis *dag.Analysis
	cachedAt time.Time
	hitCount int64
	// Monotonic sequence to break LRU ties when timestamps are equal
	// across platforms.
	lastAccessSeq uint64
}

// CacheStats provides statistics about cache usage.
type CacheStats struct {
	Size       int     `json:"size"`
	HitCount   int64   `json:"hitCount"`
	MissCount  int64   `json:"missCount"`
	HitRate    float64 `json:"hitRate"`
	EvictCount int64   `json:"evictCount"`
	MaxEntries int     `json:"maxEntries"`
	Epoch      uint64  `json:"epoch"`
}

// analysisCache is an LRU-bounded cache of analysis results keyed by task
// set fingerprint. Any dependency mutation bumps the epoch, which changes
// every fingerprint and so invalidates all prior entries.
type analysisCache struct {
	mu sync.Mutex

	entries    map[string]*cacheEntry
	maxEntries int
	epoch      uint64
	stats      CacheStats
	// Monotonic counter incremented on every access that touches entries.
	accessCounter uint64
}

func newAnalysisCache(maxEntries int) *analysisCache {
	if maxEntries < 1 {
		maxEntries = 64
	}
	return &analysisCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		stats:      CacheStats{MaxEntries: maxEntries},
	}
}

// Fingerprint computes a stable hash over the sorted (id, priority,
// sorted dependency list) tuples and the current configuration epoch.
// Equal task sets under the same epoch always hash identically.
func (c *analysisCache) Fingerprint(tasks []*types.Task) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		deps := make([]string, 0, len(t.Dependencies))
		for _, d := range t.Dependencies {
			deps = append(deps, fmt.Sprintf("%s:%s:%t", d.TaskID, d.Kind, d.Optional))
		}
		sort.Strings(deps)
		lines = append(lines, fmt.Sprintf("%s|%s|%s", t.ID, t.Priority, strings.Join(deps, ",")))
	}
	sort.Strings(lines)

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	h := sha256.New()
	fmt.Fprintf(h, "epoch=%d\n", epoch)
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached analysis for the fingerprint, if present.
func (c *analysisCache) Get(fingerprint string) (*dag.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		c.stats.MissCount++
		return nil, false
	}

	c.accessCounter++
	entry.lastAccessSeq = c.accessCounter
	entry.hitCount++
	c.stats.HitCount++
	return entry.analysis, true
}

// Set stores an analysis, evicting the least recently used entry when the
// cache is full.
func (c *analysisCache) Set(fingerprint string, analysis *dag.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[fingerprint]; !exists {
			c.evictLRULocked()
		}
	}

	c.accessCounter++
	c.entries[fingerprint] = &cacheEntry{
		analysis:      analysis,
		cachedAt:      time.Now(),
		lastAccessSeq: c.accessCounter,
	}
}

// Invalidate bumps the epoch, making every existing fingerprint stale,
// and drops the stored entries.
func (c *analysisCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[string]*cacheEntry)
}

// Clear removes every entry without changing the epoch.
func (c *analysisCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Stats returns a snapshot of cache statistics.
func (c *analysisCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.entries)
	stats.Epoch = c.epoch
	if total := stats.HitCount + stats.MissCount; total > 0 {
		stats.HitRate = float64(stats.HitCount) / float64(total)
	}
	return stats
}

// evictLRULocked removes the entry with the smallest access sequence.
func (c *analysisCache) evictLRULocked() {
	var victim string
	var oldest uint64
	for key, entry := range c.entries {
		if victim == "" || entry.lastAccessSeq < oldest {
			victim = key
			oldest = entry.lastAccessSeq
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.stats.EvictCount++
	}
}
