package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/plan"
)

// setOpIter implements UNION/UNION ALL/INTERSECT/EXCEPT (spec §4.5.4).
// Like Sort and Aggregate, set operations other than UNION ALL require
// seeing both sides in full before any row can be emitted.
type setOpIter struct {
	kind  plan.SetOpKind
	left  Iterator
	right Iterator

	rows []Row
	idx  int
}

func newSetOpIter(kind plan.SetOpKind, left, right Iterator) *setOpIter {
	return &setOpIter{kind: kind, left: left, right: right}
}

func (s *setOpIter) Open(ctx context.Context) error {
	if err := s.left.Open(ctx); err != nil {
		return err
	}
	if err := s.right.Open(ctx); err != nil {
		return err
	}
	leftRows, err := drain(ctx, s.left)
	if err != nil {
		return err
	}
	rightRows, err := drain(ctx, s.right)
	if err != nil {
		return err
	}
	switch s.kind {
	case plan.SetOpUnionAll:
		s.rows = append(leftRows, rightRows...)
	case plan.SetOpUnion:
		s.rows = dedup(append(leftRows, rightRows...))
	case plan.SetOpIntersect:
		s.rows = dedup(filterByKeys(leftRows, rightRows, true))
	case plan.SetOpExcept:
		s.rows = dedup(filterByKeys(leftRows, rightRows, false))
	}
	return nil
}

func drain(ctx context.Context, it Iterator) ([]Row, error) {
	var out []Row
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, err
		}
		row, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}

// rowEqual implements spec §4.5.4's row-equality rule for set operations:
// structural value-equality per column, with null never equal to null
// (SQL semantics) — unlike DISTINCT's rowKey helper, which treats a
// row's own repeated nulls as identical for practical deduplication of a
// single projection. Identity-based comparison for node/edge columns
// (spec's "identity-based variants") falls out of Value.Equal comparing
// entity ids rather than full property sets.
func rowEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if av.IsNull() || bv.IsNull() {
			return false
		}
		if !av.Equal(bv) {
			return false
		}
	}
	return true
}

// dedup removes rows structurally equal (by rowEqual) to an
// earlier-seen row, preserving first-occurrence order. O(n^2) in the
// number of distinct rows, acceptable given GraphLite's target scale for
// UNION/INTERSECT/EXCEPT result sets.
func dedup(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		dup := false
		for _, o := range out {
			if rowEqual(r, o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

func filterByKeys(rows, other []Row, keep bool) []Row {
	var out []Row
	for _, r := range rows {
		found := false
		for _, o := range other {
			if rowEqual(r, o) {
				found = true
				break
			}
		}
		if found == keep {
			out = append(out, r)
		}
	}
	return out
}

func (s *setOpIter) Next(ctx context.Context) (Row, bool, error) {
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

func (s *setOpIter) Close() error {
	errL := s.left.Close()
	errR := s.right.Close()
	if errL != nil {
		return errL
	}
	return errR
}
