package exec

import "context"

// optionalIter is a transparent pass-through: the null-binding behavior
// of OPTIONAL MATCH is implemented directly by expandIter (and by
// scanIter's anchor, which never produces zero rows for an empty label
// scan the way Expand does for a dead-end neighbor set). Optional exists
// as its own logical/physical node purely to mark that subtree's
// boundary for the rewrite passes — it does nothing extra at execution
// time.
type optionalIter struct {
	input Iterator
}

func (o *optionalIter) Open(ctx context.Context) error              { return o.input.Open(ctx) }
func (o *optionalIter) Next(ctx context.Context) (Row, bool, error) { return o.input.Next(ctx) }
func (o *optionalIter) Close() error                                { return o.input.Close() }
