package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/gql/exec"
	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/types"
)

func TestHashParamsStableRegardlessOfMapOrder(t *testing.T) {
	a := map[string]types.Value{"name": types.String("neo"), "age": types.Int(30)}
	b := map[string]types.Value{"age": types.Int(30), "name": types.String("neo")}
	assert.Equal(t, HashParams(a), HashParams(b))

	c := map[string]types.Value{"name": types.String("trinity"), "age": types.Int(30)}
	assert.NotEqual(t, HashParams(a), HashParams(c))
}

func TestResultCacheHitAndDataVersionInvalidation(t *testing.T) {
	stats := &Stats{}
	c := NewResultCache(64, stats)

	sig := plan.Sign(&plan.PScan{Var: "n", Label: "Person"})
	ph := HashParams(nil)
	rows := []exec.Row{{"n": types.Int(1)}, {"n": types.Int(2)}}

	_, _, ok := c.Get(sig, ph, 1, 1)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), stats.ResultMisses())

	c.Put(sig, ph, 1, 1, []string{"n"}, rows)
	cols, got, ok := c.Get(sig, ph, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []string{"n"}, cols)
	assert.Equal(t, rows, got)
	assert.Equal(t, uint64(1), stats.ResultHits())

	_, _, ok = c.Get(sig, ph, 1, 2)
	assert.False(t, ok, "a DataVersion bump must invalidate the cached result")
}
