package cache

import (
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/orneryd/graphlite/pkg/gql/plan"
)

// planEntry is one cached physical plan plus the catalog DDL version it
// was built against. GraphVersion is the graph's Version counter (set at
// CREATE GRAPH and not bumped by any operation), not DataVersion — the plan shape
// only depends on schema/graph structure, not on the data currently in
// it (spec §4.7: plan cache entries "invalidated when any referenced
// schema/graph version changes").
type planEntry struct {
	plan         plan.Physical
	graphID      uint32
	graphVersion uint64
}

// PlanCache maps a query's canonical signature to its compiled physical
// plan, sharded across runtime.GOMAXPROCS(0) independent LRU shards.
type PlanCache struct {
	stats  *Stats
	shards []*planShard
}

type planShard struct {
	mu    sync.Mutex
	items *lru.Cache
}

// NewPlanCache builds a plan cache with capacity entries spread evenly
// across the shards.
func NewPlanCache(capacity int, stats *Stats) *PlanCache {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	perShard := capacity / n
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]*planShard, n)
	for i := range shards {
		c, _ := lru.New(perShard)
		shards[i] = &planShard{items: c}
	}
	return &PlanCache{stats: stats, shards: shards}
}

func (c *PlanCache) shardFor(sig plan.Signature) *planShard {
	return c.shards[uint64(sig)%uint64(len(c.shards))]
}

// Get looks up sig's plan, validating it against the live graphVersion.
// A version mismatch is treated as a miss and evicts the stale entry.
func (c *PlanCache) Get(sig plan.Signature, graphID uint32, graphVersion uint64) (plan.Physical, bool) {
	sh := c.shardFor(sig)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.items.Get(sig)
	if !ok {
		c.stats.recordPlan(false)
		return nil, false
	}
	entry := v.(planEntry)
	if entry.graphID != graphID || entry.graphVersion != graphVersion {
		sh.items.Remove(sig)
		c.stats.recordPlan(false)
		return nil, false
	}
	c.stats.recordPlan(true)
	return entry.plan, true
}

// Put installs p under sig, tagged with the graph version it was built
// against.
func (c *PlanCache) Put(sig plan.Signature, graphID uint32, graphVersion uint64, p plan.Physical) {
	sh := c.shardFor(sig)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.items.Add(sig, planEntry{plan: p, graphID: graphID, graphVersion: graphVersion})
}
