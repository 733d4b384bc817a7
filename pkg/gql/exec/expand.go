package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/types"
)

// expandIter implements the adjacency-scan step of spec §4.5.1: for each
// input row, follow the source variable's adjacency (adj_out, adj_in, or
// both for an undirected pattern) and emit one row per neighbor, binding
// both the relationship and destination variables. Edge-uniqueness
// within a single pattern (spec §4.5.1's "an edge variable must not bind
// the same edge twice within one row") is enforced by tracking the set of
// edge ids already bound earlier in the same row.
type expandIter struct {
	n     *plan.PExpand
	env   *Env
	input Iterator

	curRow  Row
	pending []*types.Edge
	pendIdx int
}

func newExpandIter(n *plan.PExpand, env *Env, input Iterator) *expandIter {
	return &expandIter{n: n, env: env, input: input}
}

func (e *expandIter) Open(ctx context.Context) error { return e.input.Open(ctx) }

func (e *expandIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if e.pendIdx >= len(e.pending) {
			row, ok, err := e.input.Next(ctx)
			if err != nil || !ok {
				return nil, false, err
			}
			e.curRow = row
			edges, err := e.loadEdges(row)
			if err != nil {
				return nil, false, err
			}
			if len(edges) == 0 && e.n.Optional {
				out := row.Clone()
				if e.n.RelVar != "" {
					out[e.n.RelVar] = types.Null()
				}
				out[e.n.ToVar] = types.Null()
				e.pending = nil
				e.pendIdx = 0
				return out, true, nil
			}
			e.pending = edges
			e.pendIdx = 0
			continue
		}

		edge := e.pending[e.pendIdx]
		e.pendIdx++
		if boundEdges(e.curRow)[edge.ID] {
			continue // path-uniqueness: already bound earlier in this row
		}
		dst := otherEnd(edge, e.curRow[e.n.Var])
		neighbor, found, err := e.env.Txn.GetNode(e.env.Graph, dst)
		if err != nil {
			return nil, false, err
		}
		if !found {
			if e.n.Optional {
				out := e.curRow.Clone()
				if e.n.RelVar != "" {
					out[e.n.RelVar] = types.Null()
				}
				out[e.n.ToVar] = types.Null()
				return out, true, nil
			}
			continue
		}
		out := e.curRow.Clone()
		if e.n.RelVar != "" {
			out[e.n.RelVar] = types.EdgeValue(edge)
		}
		out[e.n.ToVar] = types.NodeValue(neighbor)
		return out, true, nil
	}
}

// loadEdges gathers the candidate edges to expand from row's source
// binding, choosing adj_out, adj_in, or the union of both for an
// undirected pattern (spec §4.4's "both-direction expansions are encoded
// as two physical reads and a tagged union").
func (e *expandIter) loadEdges(row Row) ([]*types.Edge, error) {
	src := row[e.n.Var]
	if src.Kind != types.KindNode {
		if e.n.Optional {
			return nil, nil
		}
		return nil, nil
	}
	id := src.NodeRef.ID
	var out []*types.Edge
	visit := func(edge *types.Edge) error {
		out = append(out, edge)
		return nil
	}
	switch e.n.Direction {
	case ast.RelRight:
		if err := e.env.Txn.ScanAdjOut(e.env.Graph, id, e.n.RelType, visit); err != nil {
			return nil, err
		}
	case ast.RelLeft:
		if err := e.env.Txn.ScanAdjIn(e.env.Graph, id, e.n.RelType, visit); err != nil {
			return nil, err
		}
	case ast.RelEither:
		if err := e.env.Txn.ScanAdjOut(e.env.Graph, id, e.n.RelType, visit); err != nil {
			return nil, err
		}
		if err := e.env.Txn.ScanAdjIn(e.env.Graph, id, e.n.RelType, visit); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 && e.n.Optional {
		return nil, nil
	}
	return out, nil
}

func otherEnd(edge *types.Edge, src types.Value) types.NodeID {
	if src.Kind == types.KindNode && edge.Src == src.NodeRef.ID {
		return edge.Dst
	}
	return edge.Src
}

// boundEdges collects the ids of every edge already bound in row, for
// the edge-uniqueness check.
func boundEdges(row Row) map[types.EdgeID]bool {
	out := map[types.EdgeID]bool{}
	for _, v := range row {
		if v.Kind == types.KindEdge && v.EdgeRef != nil {
			out[v.EdgeRef.ID] = true
		}
	}
	return out
}

func (e *expandIter) Close() error { return e.input.Close() }
