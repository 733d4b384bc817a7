package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/ast"
)

// filterIter implements Filter: yields only rows for which pred
// evaluates to boolean true (null and false are both rejected, per
// GQL's three-valued WHERE semantics).
type filterIter struct {
	env   *Env
	pred  ast.Expr
	input Iterator
}

func (f *filterIter) Open(ctx context.Context) error { return f.input.Open(ctx) }

func (f *filterIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		row, ok, err := f.input.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		keep, err := matchPropsFilter(f.pred, row, f.env)
		if err != nil {
			return nil, false, err
		}
		if keep {
			return row, true, nil
		}
	}
}

func (f *filterIter) Close() error { return f.input.Close() }
