package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/types"
)

// scanIter is the physical leaf of spec §4.5.1's anchor step: it reads
// every node id satisfying the chosen access path and binds n.Var to the
// corresponding node, once per input row from its (possibly empty) outer
// stream — supporting a Scan nested inside a larger pattern's join.
type scanIter struct {
	n   *plan.PScan
	env *Env

	outer  Iterator // nil for a top-level anchor scan
	ids    []types.NodeID
	cur    int
	outerRow Row
}

func newScanIter(n *plan.PScan, env *Env) *scanIter {
	var outer Iterator
	if kids := n.Children(); len(kids) == 1 {
		o, err := Build(kids[0], env)
		_ = err // Build only errors on unknown node types, never reachable here
		outer = o
	}
	return &scanIter{n: n, env: env, outer: outer}
}

func (s *scanIter) Open(ctx context.Context) error {
	if s.outer != nil {
		return s.outer.Open(ctx)
	}
	return s.loadIDs()
}

func (s *scanIter) loadIDs() error {
	s.ids = nil
	s.cur = 0
	switch s.n.Path {
	case plan.IndexScan:
		val, err := eval(s.n.Value, s.outerRow, s.env)
		if err != nil {
			return err
		}
		return s.env.Txn.ScanIndexEquality(s.env.Graph, s.n.Label, s.n.Property, val, func(id types.NodeID) error {
			s.ids = append(s.ids, id)
			return nil
		})
	default:
		return s.env.Txn.ScanNodes(s.env.Graph, s.n.Label, func(node *types.Node) error {
			s.ids = append(s.ids, node.ID)
			return nil
		})
	}
}

func (s *scanIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if s.cur >= len(s.ids) {
			if s.outer == nil {
				return nil, false, nil
			}
			outerRow, ok, err := s.outer.Next(ctx)
			if err != nil || !ok {
				return nil, false, err
			}
			s.outerRow = outerRow
			if err := s.loadIDs(); err != nil {
				return nil, false, err
			}
			continue
		}
		id := s.ids[s.cur]
		s.cur++
		node, found, err := s.env.Txn.GetNode(s.env.Graph, id)
		if err != nil {
			return nil, false, err
		}
		if !found {
			continue // concurrently deleted since the scan snapshot was taken
		}
		row := s.outerRow.Clone()
		if s.n.Var != "" {
			row[s.n.Var] = types.NodeValue(node)
		}
		return row, true, nil
	}
}

func (s *scanIter) Close() error {
	if s.outer != nil {
		return s.outer.Close()
	}
	return nil
}
