package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// insertIter implements INSERT: for every input row, stages the new
// node/relationship patterns into the active transaction's write batch
// and binds their variables for any later clause in the same query, but
// yields no rows of its own output beyond passing the (possibly
// variable-extended) input row through — spec §4.5.5's "produce no rows
// by default".
type insertIter struct {
	env   *Env
	paths []*ast.PatternPath
	input Iterator
}

func (n *insertIter) Open(ctx context.Context) error { return n.input.Open(ctx) }

func (n *insertIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	row, ok, err := n.input.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	out := row.Clone()
	for _, path := range n.paths {
		if err := n.insertPath(path, out); err != nil {
			return nil, false, err
		}
	}
	return out, true, nil
}

func (n *insertIter) insertPath(path *ast.PatternPath, row Row) error {
	boundNodes := make([]types.NodeID, len(path.Nodes))
	for i, np := range path.Nodes {
		if np.Var != "" {
			if existing, ok := row[np.Var]; ok && existing.Kind == types.KindNode {
				boundNodes[i] = existing.NodeRef.ID
				continue
			}
		}
		props, err := propsOf(np.Props, row, n.env)
		if err != nil {
			return err
		}
		node := &types.Node{ID: types.NewNodeID(), Labels: np.Labels, Properties: props}
		if err := n.env.Txn.PutNode(n.env.Graph, node); err != nil {
			return err
		}
		boundNodes[i] = node.ID
		if np.Var != "" {
			row[np.Var] = types.NodeValue(node)
		}
	}
	for i, rp := range path.Rels {
		props, err := propsOf(rp.Props, row, n.env)
		if err != nil {
			return err
		}
		src, dst := boundNodes[i], boundNodes[i+1]
		if rp.Direction == ast.RelLeft {
			src, dst = dst, src
		}
		relType := "RELATED"
		if len(rp.Types) > 0 {
			relType = rp.Types[0]
		}
		edge := &types.Edge{ID: types.NewEdgeID(), Type: relType, Src: src, Dst: dst, Properties: props}
		if err := n.env.Txn.PutEdge(n.env.Graph, edge); err != nil {
			return err
		}
		if rp.Var != "" {
			row[rp.Var] = types.EdgeValue(edge)
		}
	}
	return nil
}

func propsOf(m *ast.MapLiteral, row Row, env *Env) (map[string]types.Value, error) {
	if m == nil {
		return map[string]types.Value{}, nil
	}
	return evalMap(m, row, env)
}

func (n *insertIter) Close() error { return n.input.Close() }

// setPropIter implements SET: assigns properties or labels on already
// bound variables.
type setPropIter struct {
	env   *Env
	items []*ast.SetItem
	input Iterator
}

func (s *setPropIter) Open(ctx context.Context) error { return s.input.Open(ctx) }

func (s *setPropIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	row, ok, err := s.input.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	for _, item := range s.items {
		if err := s.applySet(item, row); err != nil {
			return nil, false, err
		}
	}
	return row, true, nil
}

func (s *setPropIter) applySet(item *ast.SetItem, row Row) error {
	bound, ok := row[item.Var]
	if !ok {
		return gqlerr.Internal(nil, "SET: %q is not bound", item.Var)
	}
	switch item.Kind {
	case ast.SetProperty:
		v, err := eval(item.Value, row, s.env)
		if err != nil {
			return err
		}
		return s.writeProp(bound, item.Property, v)
	case ast.SetAllProps:
		v, err := eval(item.Value, row, s.env)
		if err != nil {
			return err
		}
		if v.Kind != types.KindMap {
			return gqlerr.TypeErr("SET %s = requires a map, got %s", item.Var, v.Kind.TypeName())
		}
		return s.replaceProps(bound, v.Map)
	case ast.SetLabel:
		return s.addLabel(bound, item.Label)
	default:
		return gqlerr.Internal(nil, "SET: unhandled item kind %v", item.Kind)
	}
}

func (s *setPropIter) writeProp(bound types.Value, property string, v types.Value) error {
	switch bound.Kind {
	case types.KindNode:
		bound.NodeRef.Properties[property] = v
		return s.env.Txn.PutNode(s.env.Graph, bound.NodeRef)
	case types.KindEdge:
		bound.EdgeRef.Properties[property] = v
		return s.env.Txn.PutEdge(s.env.Graph, bound.EdgeRef)
	default:
		return gqlerr.TypeErr("SET requires a node or relationship, got %s", bound.Kind.TypeName())
	}
}

func (s *setPropIter) replaceProps(bound types.Value, props map[string]types.Value) error {
	switch bound.Kind {
	case types.KindNode:
		bound.NodeRef.Properties = props
		return s.env.Txn.PutNode(s.env.Graph, bound.NodeRef)
	case types.KindEdge:
		bound.EdgeRef.Properties = props
		return s.env.Txn.PutEdge(s.env.Graph, bound.EdgeRef)
	default:
		return gqlerr.TypeErr("SET requires a node or relationship, got %s", bound.Kind.TypeName())
	}
}

func (s *setPropIter) addLabel(bound types.Value, label string) error {
	if bound.Kind != types.KindNode {
		return gqlerr.TypeErr("SET :Label requires a node, got %s", bound.Kind.TypeName())
	}
	if !bound.NodeRef.HasLabel(label) {
		bound.NodeRef.Labels = append(bound.NodeRef.Labels, label)
	}
	return s.env.Txn.PutNode(s.env.Graph, bound.NodeRef)
}

func (s *setPropIter) Close() error { return s.input.Close() }

// removePropIter implements REMOVE: clears properties or drops labels.
type removePropIter struct {
	env   *Env
	items []*ast.RemoveItem
	input Iterator
}

func (r *removePropIter) Open(ctx context.Context) error { return r.input.Open(ctx) }

func (r *removePropIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	row, ok, err := r.input.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	for _, item := range r.items {
		if err := r.applyRemove(item, row); err != nil {
			return nil, false, err
		}
	}
	return row, true, nil
}

func (r *removePropIter) applyRemove(item *ast.RemoveItem, row Row) error {
	bound, ok := row[item.Var]
	if !ok {
		return gqlerr.Internal(nil, "REMOVE: %q is not bound", item.Var)
	}
	if item.Label != "" {
		if bound.Kind != types.KindNode {
			return gqlerr.TypeErr("REMOVE :Label requires a node, got %s", bound.Kind.TypeName())
		}
		bound.NodeRef.Labels = dropLabel(bound.NodeRef.Labels, item.Label)
		return r.env.Txn.PutNode(r.env.Graph, bound.NodeRef)
	}
	switch bound.Kind {
	case types.KindNode:
		delete(bound.NodeRef.Properties, item.Property)
		return r.env.Txn.PutNode(r.env.Graph, bound.NodeRef)
	case types.KindEdge:
		delete(bound.EdgeRef.Properties, item.Property)
		return r.env.Txn.PutEdge(r.env.Graph, bound.EdgeRef)
	default:
		return gqlerr.TypeErr("REMOVE requires a node or relationship, got %s", bound.Kind.TypeName())
	}
}

func dropLabel(labels []string, label string) []string {
	out := labels[:0]
	for _, l := range labels {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}

func (r *removePropIter) Close() error { return r.input.Close() }

// deleteIter implements DELETE / DETACH DELETE. A plain DELETE of a node
// with remaining incident edges fails with Conflict (referential
// integrity, spec §4.5.5); DETACH DELETE removes incident edges first.
type deleteIter struct {
	env    *Env
	vars   []string
	detach bool
	input  Iterator
}

func (d *deleteIter) Open(ctx context.Context) error { return d.input.Open(ctx) }

func (d *deleteIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	row, ok, err := d.input.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	// Delete edges before nodes within this row so a pattern like
	// MATCH (a)-[r]->(b) DELETE r, a, b never trips its own
	// referential-integrity check.
	for _, v := range d.vars {
		if bound, ok := row[v]; ok && bound.Kind == types.KindEdge {
			if err := d.env.Txn.DeleteEdge(d.env.Graph, bound.EdgeRef.ID); err != nil {
				return nil, false, err
			}
		}
	}
	for _, v := range d.vars {
		bound, ok := row[v]
		if !ok || bound.Kind != types.KindNode {
			continue
		}
		if err := d.deleteNode(bound.NodeRef.ID); err != nil {
			return nil, false, err
		}
	}
	return row, true, nil
}

func (d *deleteIter) deleteNode(id types.NodeID) error {
	if d.detach {
		if err := d.detachEdges(id); err != nil {
			return err
		}
	} else if blocking, found := d.firstIncidentEdge(id); found {
		return gqlerr.Conflict("cannot delete node %s: edge %s still references it", id, blocking)
	}
	return d.env.Txn.DeleteNode(d.env.Graph, id)
}

func (d *deleteIter) firstIncidentEdge(id types.NodeID) (types.EdgeID, bool) {
	var blocking types.EdgeID
	found := false
	stop := gqlerr.Internal(nil, "stop")
	visit := func(e *types.Edge) error {
		blocking, found = e.ID, true
		return stop
	}
	if err := d.env.Txn.ScanAdjOut(d.env.Graph, id, "", visit); err != nil && err != stop {
		return blocking, found
	}
	if found {
		return blocking, found
	}
	if err := d.env.Txn.ScanAdjIn(d.env.Graph, id, "", visit); err != nil && err != stop {
		return blocking, found
	}
	return blocking, found
}

func (d *deleteIter) detachEdges(id types.NodeID) error {
	var ids []types.EdgeID
	collect := func(e *types.Edge) error { ids = append(ids, e.ID); return nil }
	if err := d.env.Txn.ScanAdjOut(d.env.Graph, id, "", collect); err != nil {
		return err
	}
	if err := d.env.Txn.ScanAdjIn(d.env.Graph, id, "", collect); err != nil {
		return err
	}
	for _, eid := range ids {
		if err := d.env.Txn.DeleteEdge(d.env.Graph, eid); err != nil {
			return err
		}
	}
	return nil
}

func (d *deleteIter) Close() error { return d.input.Close() }
