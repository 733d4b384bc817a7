package exec

import (
	"context"
	"sort"

	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/types"
)

// sortIter implements Sort: materializes the full input stream and
// orders it by keys, with nulls last for ASC and nulls first for DESC
// (spec §4.5.3).
type sortIter struct {
	env   *Env
	keys  []plan.SortKey
	input Iterator

	rows []Row
	idx  int
	err  error
}

func (s *sortIter) Open(ctx context.Context) error {
	if err := s.input.Open(ctx); err != nil {
		return err
	}
	s.rows = nil
	for {
		if err := checkDeadline(ctx); err != nil {
			return err
		}
		row, ok, err := s.input.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.rows = append(s.rows, row)
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		if s.err != nil {
			return false
		}
		less, err := s.less(s.rows[i], s.rows[j])
		if err != nil {
			s.err = err
		}
		return less
	})
	return s.err
}

func (s *sortIter) less(a, b Row) (bool, error) {
	for _, k := range s.keys {
		va, err := eval(k.Expr, a, s.env)
		if err != nil {
			return false, err
		}
		vb, err := eval(k.Expr, b, s.env)
		if err != nil {
			return false, err
		}
		cmp, ok := compareForSort(va, vb, k.Descending)
		if !ok {
			continue
		}
		if cmp != 0 {
			return cmp < 0, nil
		}
	}
	return false, nil
}

// compareForSort orders va against vb, placing null last for ASC / first
// for DESC (spec §4.5.3). ok is false when both sides are null (no
// ordering information, move on to the next key).
func compareForSort(va, vb types.Value, descending bool) (int, bool) {
	if va.IsNull() && vb.IsNull() {
		return 0, false
	}
	if va.IsNull() {
		if descending {
			return -1, true
		}
		return 1, true
	}
	if vb.IsNull() {
		if descending {
			return 1, true
		}
		return -1, true
	}
	cmp, ok := types.Compare(va, vb)
	if !ok {
		return 0, false
	}
	if descending {
		cmp = -cmp
	}
	return cmp, true
}

func (s *sortIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	return row, true, nil
}

func (s *sortIter) Close() error { return s.input.Close() }
