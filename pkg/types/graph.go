package types

import "fmt"

// Node is a graph vertex: an identity, an order-insensitive set of labels,
// and a property map (spec §3). A Node is owned by exactly one (schema,
// graph) pair, tracked by the storage manager rather than the struct
// itself.
type Node struct {
	ID         NodeID
	Labels     []string
	Properties map[string]Value
}

// HasLabel reports whether n carries label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Prop looks up a property, returning null if absent.
func (n *Node) Prop(name string) Value {
	if n.Properties == nil {
		return Null()
	}
	if v, ok := n.Properties[name]; ok {
		return v
	}
	return Null()
}

// Direction selects which side of an edge a traversal follows.
type Direction uint8

const (
	DirOutgoing Direction = iota
	DirIncoming
	DirBoth
)

// Edge is a directed, typed graph relationship (spec §3).
type Edge struct {
	ID         EdgeID
	Type       string
	Src        NodeID
	Dst        NodeID
	Properties map[string]Value
}

// Prop looks up a property, returning null if absent.
func (e *Edge) Prop(name string) Value {
	if e.Properties == nil {
		return Null()
	}
	if v, ok := e.Properties[name]; ok {
		return v
	}
	return Null()
}

// Other returns the node at the far end of the edge from at, used when a
// traversal already knows which endpoint it arrived from.
func (e *Edge) Other(at NodeID) NodeID {
	if e.Src == at {
		return e.Dst
	}
	return e.Src
}

// Path is an alternating sequence Node, Edge, Node, ... of length >= 0
// (spec §3). Nodes[i] and Nodes[i+1] are the endpoints of Edges[i], with
// Edges[i] connecting them in its declared direction.
type Path struct {
	Nodes []*Node
	Edges []*Edge
}

// Len returns the number of edges (hops) in the path.
func (p *Path) Len() int { return len(p.Edges) }

// Equal compares paths by identity of their node/edge sequence.
func (p *Path) Equal(o *Path) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.Nodes) != len(o.Nodes) || len(p.Edges) != len(o.Edges) {
		return false
	}
	for i := range p.Nodes {
		if p.Nodes[i].ID != o.Nodes[i].ID {
			return false
		}
	}
	for i := range p.Edges {
		if p.Edges[i].ID != o.Edges[i].ID {
			return false
		}
	}
	return true
}

func (p *Path) String() string {
	s := ""
	for i, n := range p.Nodes {
		s += fmt.Sprintf("(%s)", n.ID)
		if i < len(p.Edges) {
			s += fmt.Sprintf("-[%s]->", p.Edges[i].ID)
		}
	}
	return s
}
