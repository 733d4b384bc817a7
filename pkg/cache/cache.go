// Package cache implements the plan cache and result cache of
// SPEC_FULL.md §4.7: both are backed by github.com/hashicorp/golang-lru
// (the same LRU implementation the pack already carries), sharded across
// runtime.GOMAXPROCS shards per spec §5's "fine-grained sharding ... at
// least one shard per CPU", and version-invalidated rather than
// message-invalidated — a lookup that finds its entry's captured
// schema/graph version stale treats it as a miss and evicts it.
//
// The teacher has no separate plan/result cache at all: StorageExecutor
// re-parses and re-walks its regex AST on every call
// (pkg/cypher/executor.go). This package is new, grounded instead on the
// spec's explicit cache design and on the pack's own use of
// hashicorp/golang-lru in andevellicus-stats-agent for signature-keyed
// memoization (agent/action_cache.go, though that file hand-rolls its
// map rather than reaching for the LRU package — this one does reach
// for it, since unlike that one-off cache, GraphLite's needs a real
// bounded eviction policy).
package cache

import "sync/atomic"

// Stats holds the hit/miss counters CALL gql.cache_stats() reads (spec
// §4.7: "hit/miss counters are atomic.Int64 pairs"). It implements
// pkg/gql/exec's CacheStats interface without exec importing this
// package, keeping the dependency one-directional.
type Stats struct {
	planHits     atomic.Int64
	planMisses   atomic.Int64
	resultHits   atomic.Int64
	resultMisses atomic.Int64
}

func (s *Stats) PlanHits() uint64     { return uint64(s.planHits.Load()) }
func (s *Stats) PlanMisses() uint64   { return uint64(s.planMisses.Load()) }
func (s *Stats) ResultHits() uint64   { return uint64(s.resultHits.Load()) }
func (s *Stats) ResultMisses() uint64 { return uint64(s.resultMisses.Load()) }

func (s *Stats) recordPlan(hit bool) {
	if hit {
		s.planHits.Add(1)
	} else {
		s.planMisses.Add(1)
	}
}

func (s *Stats) recordResult(hit bool) {
	if hit {
		s.resultHits.Add(1)
	} else {
		s.resultMisses.Add(1)
	}
}
