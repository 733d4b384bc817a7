package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsRecordPlanAndResult(t *testing.T) {
	s := &Stats{}
	s.recordPlan(true)
	s.recordPlan(false)
	s.recordPlan(false)
	s.recordResult(true)
	s.recordResult(true)

	assert.Equal(t, uint64(1), s.PlanHits())
	assert.Equal(t, uint64(2), s.PlanMisses())
	assert.Equal(t, uint64(2), s.ResultHits())
	assert.Equal(t, uint64(0), s.ResultMisses())
}
