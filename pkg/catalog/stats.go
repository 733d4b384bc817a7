package catalog

import (
	"sync"
	"sync/atomic"

	"github.com/orneryd/graphlite/pkg/storage"
	"github.com/orneryd/graphlite/pkg/types"
)

// GraphStats is a version-checked cache of per-label node counts and
// per-(label, property) index-stripe cardinalities for one graph,
// recomputed by a single full scan whenever the graph's DataVersion has
// moved past what was last captured here (spec §4.4: "cardinality
// estimates come from catalog-maintained counts per label and per
// (label, property, value) index stripe"). This mirrors pkg/session's
// catalogCache: self-heal lazily on next access rather than maintain a
// running tally on every write.
//
// GraphStats deliberately does not import pkg/gql/plan; its NodeCount and
// IndexCardinality methods satisfy plan.Stats structurally so pkg/catalog
// never has to depend on the planner.
type GraphStats struct {
	engine *storage.Engine
	graph  *Graph

	mu      sync.Mutex
	version uint64
	counts  map[string]int64            // label -> node count; "" key holds the all-labels total
	stripes map[string]map[string]int64 // label -> property -> distinct value count
}

// Stats returns the version-checked stats provider for graphID, or nil if
// no such graph is loaded.
func (c *Catalog) Stats(graphID uint32) *GraphStats {
	c.mu.RLock()
	g := c.graphs[graphID]
	c.mu.RUnlock()
	if g == nil {
		return nil
	}
	return &GraphStats{engine: c.engine, graph: g}
}

// refresh rescans the graph if its DataVersion has moved past the
// version this cache last captured.
func (s *GraphStats) refresh() {
	v := atomic.LoadUint64(&s.graph.DataVersion)
	if s.counts != nil && v == s.version {
		return
	}

	counts := map[string]int64{}
	stripes := map[string]map[string]int64{}
	seen := map[string]map[string]map[string]struct{}{} // label -> property -> distinct value keys

	gp := graphPrefixOf(s.graph)
	txn := s.engine.Begin()
	_ = txn.ScanNodes(gp, "", func(n *types.Node) error {
		counts[""]++
		for _, label := range n.Labels {
			counts[label]++
			if seen[label] == nil {
				seen[label] = map[string]map[string]struct{}{}
			}
			for prop, val := range n.Properties {
				if seen[label][prop] == nil {
					seen[label][prop] = map[string]struct{}{}
				}
				seen[label][prop][string(types.OrderedKeyBytes(val))] = struct{}{}
			}
		}
		return nil
	})
	txn.Rollback()

	for label, byProp := range seen {
		m := make(map[string]int64, len(byProp))
		for prop, vals := range byProp {
			m[prop] = int64(len(vals))
		}
		stripes[label] = m
	}

	s.counts = counts
	s.stripes = stripes
	s.version = v
}

// NodeCount estimates the number of nodes carrying label ("" for every
// node in the graph), refreshing first if stale.
func (s *GraphStats) NodeCount(label string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	return float64(s.counts[label])
}

// IndexCardinality estimates the number of distinct values in the
// (label, property) index stripe, refreshing first if stale.
func (s *GraphStats) IndexCardinality(label, property string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	if byProp, ok := s.stripes[label]; ok {
		return float64(byProp[property])
	}
	return 0
}
