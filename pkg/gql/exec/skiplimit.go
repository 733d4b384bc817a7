package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// skipLimitIter implements SKIP/LIMIT, both evaluated after ORDER BY
// (spec §4.5.3). Skip/Limit are evaluated once against an empty row
// since they may only reference parameters and literals, never pattern
// variables.
type skipLimitIter struct {
	env   *Env
	skip  ast.Expr
	limit ast.Expr
	input Iterator

	skipped  int64
	toSkip   int64
	hasLimit bool
	limitN   int64
	emitted  int64
	init     bool
}

func (s *skipLimitIter) Open(ctx context.Context) error {
	if err := s.input.Open(ctx); err != nil {
		return err
	}
	if s.skip != nil {
		v, err := eval(s.skip, Row{}, s.env)
		if err != nil {
			return err
		}
		if v.Kind != types.KindInt {
			return gqlerr.TypeErr("SKIP requires an INTEGER")
		}
		s.toSkip = v.Int
	}
	if s.limit != nil {
		v, err := eval(s.limit, Row{}, s.env)
		if err != nil {
			return err
		}
		if v.Kind != types.KindInt {
			return gqlerr.TypeErr("LIMIT requires an INTEGER")
		}
		s.hasLimit = true
		s.limitN = v.Int
	}
	s.init = true
	return nil
}

func (s *skipLimitIter) Next(ctx context.Context) (Row, bool, error) {
	if !s.init {
		return nil, false, gqlerr.Internal(nil, "exec: Next called before Open")
	}
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if s.hasLimit && s.emitted >= s.limitN {
			return nil, false, nil
		}
		row, ok, err := s.input.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		if s.skipped < s.toSkip {
			s.skipped++
			continue
		}
		s.emitted++
		return row, true, nil
	}
}

func (s *skipLimitIter) Close() error { return s.input.Close() }
