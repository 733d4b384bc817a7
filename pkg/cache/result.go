package cache

import (
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/orneryd/graphlite/pkg/gql/exec"
	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/types"
)

// resultKey identifies one materialized result: a plan signature plus a
// hash of the parameter bindings it ran with (spec §4.7: "keyed by
// (plan, parameter bindings, graph versions)").
type resultKey struct {
	sig       plan.Signature
	paramHash uint64
}

// resultEntry is one cached row set, tagged with the graph DataVersion
// it was computed against — unlike the plan cache's structural
// GraphVersion, this is the write counter, since a result depends on the
// data present, not just the schema shape (spec §4.7: "invalidated on
// any write to the graph(s) the plan reads").
type resultEntry struct {
	rows        []exec.Row
	columns     []string
	graphID     uint32
	dataVersion uint64
}

// ResultCache caches materialized query results, sharded the same way
// as PlanCache.
type ResultCache struct {
	stats  *Stats
	shards []*resultShard
}

type resultShard struct {
	mu    sync.Mutex
	items *lru.Cache
}

// NewResultCache builds a result cache with capacity entries spread
// across runtime.GOMAXPROCS(0) shards.
func NewResultCache(capacity int, stats *Stats) *ResultCache {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	perShard := capacity / n
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]*resultShard, n)
	for i := range shards {
		c, _ := lru.New(perShard)
		shards[i] = &resultShard{items: c}
	}
	return &ResultCache{stats: stats, shards: shards}
}

// HashParams renders params into a deterministic hash for use as a
// cache key component: parameter names only need to sort by name since
// GQL parameter identifiers are unique within one query.
func HashParams(params map[string]types.Value) uint64 {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name].String())
		b.WriteByte(';')
	}
	return xxhash.Sum64String(b.String())
}

func (c *ResultCache) shardFor(k resultKey) *resultShard {
	h := uint64(k.sig) ^ k.paramHash
	return c.shards[h%uint64(len(c.shards))]
}

// Get looks up (sig, paramHash)'s cached rows, validating against the
// live DataVersion. A mismatch evicts the entry and reports a miss.
func (c *ResultCache) Get(sig plan.Signature, paramHash uint64, graphID uint32, dataVersion uint64) ([]string, []exec.Row, bool) {
	k := resultKey{sig: sig, paramHash: paramHash}
	sh := c.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.items.Get(k)
	if !ok {
		c.stats.recordResult(false)
		return nil, nil, false
	}
	entry := v.(resultEntry)
	if entry.graphID != graphID || entry.dataVersion != dataVersion {
		sh.items.Remove(k)
		c.stats.recordResult(false)
		return nil, nil, false
	}
	c.stats.recordResult(true)
	return entry.columns, entry.rows, true
}

// Put installs rows under (sig, paramHash), tagged with the DataVersion
// they were computed against.
func (c *ResultCache) Put(sig plan.Signature, paramHash uint64, graphID uint32, dataVersion uint64, columns []string, rows []exec.Row) {
	k := resultKey{sig: sig, paramHash: paramHash}
	sh := c.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.items.Add(k, resultEntry{rows: rows, columns: columns, graphID: graphID, dataVersion: dataVersion})
}
