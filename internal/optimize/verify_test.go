package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solvedCrowded(t *testing.T) (*Problem, *Solution) {
	t.Helper()
	p := crowded()
	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	return p, sol
}

func TestVerify_DetectsViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Problem, s *Solution)
		msg    string
	}{
		{"missing connection", func(_ *Problem, s *Solution) { s.Connections = s.Connections[:1] }, "1 connections for 2 sites"},
		{"site twice", func(_ *Problem, s *Solution) { s.Connections[1].Site = s.Connections[0].Site }, "connected twice"},
		{"unknown substation", func(_ *Problem, s *Solution) { s.Connections[0].Substation = 7 }, "unknown substation"},
		{"undersized cable", func(_ *Problem, s *Solution) { s.Connections[0].Cable = 0 }, "rated"},
		{"dearer cable", func(_ *Problem, s *Solution) {
			s.Connections[0].Cable = 2
			s.Connections[0].Cost = s.Connections[0].Distance * 300000
		}, "is cheaper"},
		{"wrong cost", func(_ *Problem, s *Solution) { s.Connections[0].Cost++ }, "cost"},
		{"wrong total", func(_ *Problem, s *Solution) { s.TotalCost *= 2 }, "total cost"},
		{"overloaded substation", func(p *Problem, _ *Solution) { p.SubstationCapacityMW = 50 }, "over its"},
		{"bound above cost", func(_ *Problem, s *Solution) { s.LowerBound = s.TotalCost * 2 }, "lower bound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, sol := solvedCrowded(t)
			require.NoError(t, sol.Verify(p))
			tt.mutate(p, sol)
			err := sol.Verify(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestVerify_Nil(t *testing.T) {
	var sol *Solution
	assert.Error(t, sol.Verify(crowded()))
}

func TestSummarize(t *testing.T) {
	p := &Problem{
		Sites: []Site{
			{Name: "a", Location: pt(40.1, -77), CapacityMW: 30},
			{Name: "b", Location: pt(40.2, -77), CapacityMW: 80},
			{Name: "c", Location: pt(40.9, -77), CapacityMW: 150},
		},
		Substations: twoSubstations(),
		Cables:      DefaultCables(),
	}
	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)

	sum := Summarize(p, sol, 1)
	assert.Equal(t, 3, sum.Sites)
	assert.Equal(t, 2, sum.SubstationsUsed)
	assert.InDelta(t, 260, sum.TotalMW, 1e-9)
	assert.InDelta(t, sol.TotalCost, sum.TotalCost, 1e-6)

	require.Len(t, sum.ByCable, 3)
	assert.Equal(t, CableUsage{Name: "small", Connections: 1, CapacityMW: 30, Cost: sol.Connections[0].Cost}, sum.ByCable[0])
	assert.Equal(t, 1, sum.ByCable[1].Connections)
	assert.Equal(t, 1, sum.ByCable[2].Connections)

	require.Len(t, sum.Busiest, 1)
	assert.Equal(t, "North", sum.Busiest[0].Name)
	assert.InDelta(t, 150, sum.Busiest[0].LoadMW, 1e-9)
	assert.InDelta(t, 0.15, sum.Busiest[0].Utilization, 1e-9)

	all := Summarize(p, sol, 0)
	require.Len(t, all.Busiest, 2)
	assert.Equal(t, "South", all.Busiest[1].Name)
	assert.Equal(t, 2, all.Busiest[1].Sites)
}

func TestSummarize_NilSolution(t *testing.T) {
	sum := Summarize(crowded(), nil, 5)
	assert.Len(t, sum.ByCable, 3)
	assert.Zero(t, sum.Sites)
}
