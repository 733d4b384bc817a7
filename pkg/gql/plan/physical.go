package plan

import "github.com/orneryd/graphlite/pkg/gql/ast"

// Physical is a lowered operator ready for pkg/gql/exec's Volcano
// iterators: every logical node has a concrete access-path decision
// attached (spec §4.4's "physical lowering").
type Physical interface {
	physicalNode()
	Children() []Physical
	Cost() Cost
}

type physicalBase struct {
	kids []Physical
	cost Cost
}

func (b *physicalBase) Children() []Physical { return b.kids }
func (b *physicalBase) Cost() Cost            { return b.cost }

// AccessPath names the concrete way a PScan reads its rows.
type AccessPath int

const (
	FullScan AccessPath = iota
	LabelScan
	IndexScan
)

// PScan is the physical form of Scan: a FullScan, LabelScan or IndexScan
// depending on which access path the optimizer found cheapest.
type PScan struct {
	physicalBase
	Var      string
	Label    string
	Path     AccessPath
	Property string      // set when Path == IndexScan
	Value    ast.Expr    // equality value when Path == IndexScan
}

func (*PScan) physicalNode() {}

// PExpand is the physical form of Expand: an adjacency scan over adj_out
// or adj_in, per spec §4.4's "chooses adj_out/adj_in expansion
// direction".
type PExpand struct {
	physicalBase
	Var       string
	RelVar    string
	RelType   string
	ToVar     string
	Direction ast.RelDirection
	Optional  bool
}

func (*PExpand) physicalNode() {}

// PFilter, PProject, PAggregate, PSort, PSkipLimit, PSetOp, POptional,
// PUnwind, PInsert, PSetProp, PRemoveProp, PDelete and PCall mirror their
// logical counterparts one-to-one; physical lowering does not change
// their shape, only the shape of Scan/Expand beneath them.
type PFilter struct {
	physicalBase
	Predicate ast.Expr
}

func (*PFilter) physicalNode() {}

type PProject struct {
	physicalBase
	Columns  []Column
	Distinct bool
}

func (*PProject) physicalNode() {}

type PAggregate struct {
	physicalBase
	Groups []Column
	Aggs   []Column
}

func (*PAggregate) physicalNode() {}

type PSort struct {
	physicalBase
	Keys []SortKey
}

func (*PSort) physicalNode() {}

type PSkipLimit struct {
	physicalBase
	Skip  ast.Expr
	Limit ast.Expr
}

func (*PSkipLimit) physicalNode() {}

type PSetOp struct {
	physicalBase
	Kind SetOpKind
}

func (*PSetOp) physicalNode() {}

type POptional struct {
	physicalBase
}

func (*POptional) physicalNode() {}

type PUnwind struct {
	physicalBase
	Expr ast.Expr
	As   string
}

func (*PUnwind) physicalNode() {}

type PInsert struct {
	physicalBase
	Paths []*ast.PatternPath
}

func (*PInsert) physicalNode() {}

type PSetProp struct {
	physicalBase
	Items []*ast.SetItem
}

func (*PSetProp) physicalNode() {}

type PRemoveProp struct {
	physicalBase
	Items []*ast.RemoveItem
}

func (*PRemoveProp) physicalNode() {}

type PDelete struct {
	physicalBase
	Vars   []string
	Detach bool
}

func (*PDelete) physicalNode() {}

type PCall struct {
	physicalBase
	Procedure string
	Args      []ast.Expr
	Yield     []string
}

func (*PCall) physicalNode() {}

func punary(child Physical, cost Cost) physicalBase {
	if child == nil {
		return physicalBase{cost: cost}
	}
	return physicalBase{kids: []Physical{child}, cost: cost}
}

func pbinary(left, right Physical, cost Cost) physicalBase {
	return physicalBase{kids: []Physical{left, right}, cost: cost}
}

// Lower chooses a physical operator tree for root, picking IndexScan over
// LabelScan/FullScan whenever an immediately-applied equality Filter can
// drive one (spec §4.4: "decides: IndexScan(label, property, value) vs
// LabelScan vs FullScan, based on available indexes and predicate
// selectivity"), and attaches a Cost to every node.
func Lower(root Logical, stats Stats) Physical {
	p, _ := lower(root, stats)
	return p
}

func lower(n Logical, stats Stats) (Physical, Cost) {
	switch node := n.(type) {
	case nil:
		return nil, Cost{}

	case *Scan:
		childP, childC := lowerOne(node, stats)
		leaf := estimateScan(stats, node.Label)
		c := leaf
		if childP != nil {
			// Chained off a prior clause's rows (e.g. a Scan following
			// WITH): every outer row re-runs the scan, so cost scales
			// with the outer row count.
			c = Cost{Rows: childC.Rows * leaf.Rows, Total: childC.Total + childC.Rows*leaf.Total}
		}
		return &PScan{physicalBase: punary(childP, c), Var: node.Var, Label: node.Label, Path: scanPath(node.Label)}, c

	case *Expand:
		childP, childC := lowerOne(node, stats)
		c := estimateExpand(childC)
		return &PExpand{
			physicalBase: punary(childP, c),
			Var:          node.Var, RelVar: node.RelVar, RelType: node.RelType,
			ToVar: node.ToVar, Direction: node.Direction, Optional: node.Optional,
		}, c

	case *Filter:
		childP, childC := lowerOne(node, stats)
		// An equality filter directly above a FullScan/LabelScan becomes
		// an IndexScan: drop the Filter and push the predicate into the
		// PScan's access path.
		if scan, ok := childP.(*PScan); ok && scan.Path != IndexScan {
			if prop, val, ok := equalityOn(node.Predicate, scan.Var); ok {
				ic := estimateIndexEquality(stats, scan.Label, prop)
				scan.Path, scan.Property, scan.Value = IndexScan, prop, val
				scan.cost = ic
				return scan, ic
			}
		}
		c := filterCost(childC, selectivityOf(node.Predicate))
		return &PFilter{physicalBase: punary(childP, c), Predicate: node.Predicate}, c

	case *Project:
		childP, childC := lowerOne(node, stats)
		c := chainCost(childC, childC.Rows)
		return &PProject{physicalBase: punary(childP, c), Columns: node.Columns, Distinct: node.Distinct}, c

	case *Aggregate:
		childP, childC := lowerOne(node, stats)
		outRows := childC.Rows
		if len(node.Groups) > 0 {
			outRows = childC.Rows * 0.2 // assume moderate grouping fan-in
		} else {
			outRows = 1
		}
		c := chainCost(childC, outRows)
		return &PAggregate{physicalBase: punary(childP, c), Groups: node.Groups, Aggs: node.Aggs}, c

	case *Sort:
		childP, childC := lowerOne(node, stats)
		c := chainCost(childC, childC.Rows)
		return &PSort{physicalBase: punary(childP, c), Keys: node.Keys}, c

	case *SkipLimit:
		childP, childC := lowerOne(node, stats)
		c := chainCost(childC, childC.Rows)
		return &PSkipLimit{physicalBase: punary(childP, c), Skip: node.Skip, Limit: node.Limit}, c

	case *SetOp:
		kids := node.Children()
		leftP, leftC := lower(kids[0], stats)
		rightP, rightC := lower(kids[1], stats)
		c := Cost{Rows: leftC.Rows + rightC.Rows, Total: leftC.Total + rightC.Total}
		return &PSetOp{physicalBase: pbinary(leftP, rightP, c), Kind: node.Kind}, c

	case *Optional:
		childP, childC := lowerOne(node, stats)
		return &POptional{physicalBase: punary(childP, childC)}, childC

	case *Unwind:
		childP, childC := lowerOne(node, stats)
		c := chainCost(childC, childC.Rows*avgFanout)
		return &PUnwind{physicalBase: punary(childP, c), Expr: node.Expr, As: node.As}, c

	case *Insert:
		childP, childC := lowerOne(node, stats)
		return &PInsert{physicalBase: punary(childP, childC), Paths: node.Paths}, childC

	case *SetProp:
		childP, childC := lowerOne(node, stats)
		return &PSetProp{physicalBase: punary(childP, childC), Items: node.Items}, childC

	case *RemoveProp:
		childP, childC := lowerOne(node, stats)
		return &PRemoveProp{physicalBase: punary(childP, childC), Items: node.Items}, childC

	case *Delete:
		childP, childC := lowerOne(node, stats)
		return &PDelete{physicalBase: punary(childP, childC), Vars: node.Vars, Detach: node.Detach}, childC

	case *Call:
		childP, childC := lowerOne(node, stats)
		return &PCall{physicalBase: punary(childP, childC), Procedure: node.Procedure, Args: node.Args, Yield: node.Yield}, childC

	default:
		return nil, Cost{}
	}
}

func lowerOne(n Logical, stats Stats) (Physical, Cost) {
	kids := n.Children()
	if len(kids) != 1 {
		return nil, Cost{}
	}
	return lower(kids[0], stats)
}

func scanPath(label string) AccessPath {
	if label == "" {
		return FullScan
	}
	return LabelScan
}

// equalityOn reports whether pred is (or contains, conjoined with AND) an
// equality comparison var.property = literal, returning the first such
// term found — the one the physical planner will use to drive an
// IndexScan.
func equalityOn(pred ast.Expr, v string) (string, ast.Expr, bool) {
	switch n := pred.(type) {
	case *ast.BinaryOp:
		if n.Op == "AND" {
			if prop, val, ok := equalityOn(n.Left, v); ok {
				return prop, val, true
			}
			return equalityOn(n.Right, v)
		}
		if n.Op == "=" {
			if prop, ok := propOf(n.Left, v); ok {
				return prop, n.Right, true
			}
			if prop, ok := propOf(n.Right, v); ok {
				return prop, n.Left, true
			}
		}
	}
	return "", nil, false
}

func propOf(e ast.Expr, v string) (string, bool) {
	pa, ok := e.(*ast.PropertyAccess)
	if !ok {
		return "", false
	}
	id, ok := pa.Target.(*ast.Ident)
	if !ok || id.Name != v {
		return "", false
	}
	return pa.Property, true
}

// selectivityOf picks the default equality or range selectivity for a
// predicate's comparison operator (spec §4.4).
func selectivityOf(pred ast.Expr) float64 {
	bin, ok := pred.(*ast.BinaryOp)
	if !ok {
		return 1.0
	}
	switch bin.Op {
	case "=":
		return equalitySelectivity
	case "<", ">", "<=", ">=":
		return rangeSelectivity
	case "AND":
		return selectivityOf(bin.Left) * selectivityOf(bin.Right)
	case "OR":
		l, r := selectivityOf(bin.Left), selectivityOf(bin.Right)
		return l + r - l*r
	default:
		return 1.0
	}
}
