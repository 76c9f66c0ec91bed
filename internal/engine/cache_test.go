package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
	"github.com/taskforge/taskforge-cli/internal/types"
)

func cacheTask(id string, deps ...types.DependencyRef) *types.Task {
	return &types.Task{
		ID:           id,
		Title:        "task " + id,
		Priority:     types.PriorityMedium,
		Status:       types.StatusPending,
		Dependencies: deps,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	c := newAnalysisCache(8)

	a := cacheTask("a")
	b := cacheTask("b",
		types.DependencyRef{TaskID: "a", Kind: types.DependencyPrerequisite},
		types.DependencyRef{TaskID: "c", Kind: types.DependencyPrerequisite},
	)
	cc := cacheTask("c")

	forward := c.Fingerprint([]*types.Task{a, b, cc})
	backward := c.Fingerprint([]*types.Task{cc, b, a})
	assert.Equal(t, forward, backward, "task order must not change the fingerprint")

	swapped := cacheTask("b",
		types.DependencyRef{TaskID: "c", Kind: types.DependencyPrerequisite},
		types.DependencyRef{TaskID: "a", Kind: types.DependencyPrerequisite},
	)
	assert.Equal(t, forward, c.Fingerprint([]*types.Task{a, swapped, cc}),
		"dependency order must not change the fingerprint")
}

func TestFingerprintSensitivity(t *testing.T) {
	c := newAnalysisCache(8)

	base := c.Fingerprint([]*types.Task{cacheTask("a")})

	bumped := cacheTask("a")
	bumped.Priority = types.PriorityCritical
	assert.NotEqual(t, base, c.Fingerprint([]*types.Task{bumped}), "priority feeds the fingerprint")

	withDep := cacheTask("a", types.DependencyRef{TaskID: "b", Kind: types.DependencyPrerequisite})
	assert.NotEqual(t, base, c.Fingerprint([]*types.Task{withDep}), "dependencies feed the fingerprint")
}

func TestCacheHitReturnsSameAnalysis(t *testing.T) {
	c := newAnalysisCache(8)
	analysis := &dag.Analysis{Nodes: []string{"a"}}

	key := c.Fingerprint([]*types.Task{cacheTask("a")})
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, analysis)
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, analysis, got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.Equal(t, 1, stats.Size)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newAnalysisCache(2)

	c.Set("first", &dag.Analysis{})
	c.Set("second", &dag.Analysis{})

	// Touch "first" so "second" becomes the LRU victim.
	_, ok := c.Get("first")
	require.True(t, ok)

	c.Set("third", &dag.Analysis{})

	_, ok = c.Get("second")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("first")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().EvictCount)
}

func TestCacheInvalidateBumpsEpoch(t *testing.T) {
	c := newAnalysisCache(8)
	tasks := []*types.Task{cacheTask("a")}

	before := c.Fingerprint(tasks)
	c.Set(before, &dag.Analysis{})

	c.Invalidate()
	after := c.Fingerprint(tasks)
	assert.NotEqual(t, before, after, "epoch bump must change every fingerprint")

	_, ok := c.Get(before)
	assert.False(t, ok, "invalidation drops stored entries")
	assert.Equal(t, uint64(1), c.Stats().Epoch)
}

func TestCacheClearKeepsEpoch(t *testing.T) {
	c := newAnalysisCache(8)
	tasks := []*types.Task{cacheTask("a")}

	key := c.Fingerprint(tasks)
	c.Set(key, &dag.Analysis{})
	c.Clear()

	assert.Zero(t, c.Stats().Size)
	assert.Equal(t, key, c.Fingerprint(tasks), "clear keeps fingerprints stable")
}
