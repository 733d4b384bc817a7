package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// unwindIter implements UNWIND: expands expr's list value into one row
// per element, binding as. UNWIND of null or an empty list produces no
// rows for that input row.
type unwindIter struct {
	env   *Env
	expr  ast.Expr
	as    string
	input Iterator

	curRow Row
	items  []types.Value
	idx    int
}

func (u *unwindIter) Open(ctx context.Context) error { return u.input.Open(ctx) }

func (u *unwindIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if u.idx >= len(u.items) {
			row, ok, err := u.input.Next(ctx)
			if err != nil || !ok {
				return nil, false, err
			}
			v, err := eval(u.expr, row, u.env)
			if err != nil {
				return nil, false, err
			}
			if v.IsNull() {
				u.curRow, u.items, u.idx = row, nil, 0
				continue
			}
			if v.Kind != types.KindList {
				return nil, false, gqlerr.TypeErr("UNWIND requires a list, got %s", v.Kind.TypeName())
			}
			u.curRow, u.items, u.idx = row, v.List, 0
			continue
		}
		item := u.items[u.idx]
		u.idx++
		out := u.curRow.Clone()
		out[u.as] = item
		return out, true, nil
	}
}

func (u *unwindIter) Close() error { return u.input.Close() }
