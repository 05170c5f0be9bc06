package optimize

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gridlink/internal/geo"
)

func pt(lat, lon float64) geo.Point { return geo.Point{Lat: lat, Lon: lon} }

func twoSubstations() []Node {
	return []Node{
		{ID: "s0", Name: "South", Location: pt(40, -77)},
		{ID: "s1", Name: "North", Location: pt(41, -77)},
	}
}

func TestSolve_NearestWithCheapestCable(t *testing.T) {
	p := &Problem{
		Sites: []Site{
			{ID: "a", Name: "Solar A", Location: pt(40.1, -77), CapacityMW: 30},
			{ID: "b", Name: "Wind B", Location: pt(40.9, -77), CapacityMW: 150},
		},
		Substations: twoSubstations(),
		Cables:      DefaultCables(),
	}

	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	require.NoError(t, sol.Verify(p))

	assert.Equal(t, StatusOptimal, sol.Status)
	require.Len(t, sol.Connections, 2)
	assert.Equal(t, 0, sol.Connections[0].Substation)
	assert.Equal(t, 0, sol.Connections[0].Cable)
	assert.InDelta(t, 0.1, sol.Connections[0].Distance, 1e-9)
	assert.InDelta(t, 10000, sol.Connections[0].Cost, 1e-6)
	assert.Equal(t, 1, sol.Connections[1].Substation)
	assert.Equal(t, 2, sol.Connections[1].Cable)
	assert.InDelta(t, 30000, sol.Connections[1].Cost, 1e-6)
	assert.InDelta(t, 40000, sol.TotalCost, 1e-6)
	assert.InDelta(t, sol.TotalCost, sol.LowerBound, 1e-9)
	assert.Zero(t, sol.Gap)
	assert.Empty(t, sol.StopReason)
}

// crowded has two 60 MW sites next to a 100 MW substation: only one fits.
func crowded() *Problem {
	return &Problem{
		Sites: []Site{
			{ID: "w", Name: "West", Location: pt(40, -77.1), CapacityMW: 60},
			{ID: "e", Name: "East", Location: pt(40, -76.9), CapacityMW: 60},
		},
		Substations:          twoSubstations(),
		Cables:               DefaultCables(),
		SubstationCapacityMW: 100,
	}
}

func TestSolve_SubstationCapacityBinds(t *testing.T) {
	p := crowded()
	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	require.NoError(t, sol.Verify(p))

	far := math.Hypot(1, 0.1) * 200000
	assert.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 20000+far, sol.TotalCost, 1e-6)
	assert.NotEqual(t, sol.Connections[0].Substation, sol.Connections[1].Substation)
	for _, c := range sol.Connections {
		assert.Equal(t, 1, c.Cable, "60 MW sites use the medium cable")
	}
}

func TestSolve_NodeLimitUsesLPBound(t *testing.T) {
	p := crowded()
	sol, err := Solve(context.Background(), p, Options{NodeLimit: 1})
	require.NoError(t, err)
	require.NoError(t, sol.Verify(p))

	far := math.Hypot(1, 0.1) * 200000
	assert.Equal(t, StatusFeasible, sol.Status)
	assert.Equal(t, StopNodeLimit, sol.StopReason)
	assert.InDelta(t, 20000+far, sol.TotalCost, 1e-6)

	// Relaxation: 100/60 of a site at the near substation, the rest far.
	lpOpt := (100.0/60.0)*20000 + (20.0/60.0)*far
	assert.InDelta(t, lpOpt, sol.LowerBound, 1e-3)
	assert.Greater(t, sol.Gap, 0.0)
	assert.Less(t, sol.Gap, 1.0)
}

func TestSolve_NodeLimitWithoutLP(t *testing.T) {
	p := crowded()
	sol, err := Solve(context.Background(), p, Options{NodeLimit: 1, LPMaxVariables: -1})
	require.NoError(t, err)
	assert.Equal(t, StatusFeasible, sol.Status)
	assert.InDelta(t, 40000, sol.LowerBound, 1e-6)
}

func TestSolve_LPSkippedWhenTooLarge(t *testing.T) {
	p := crowded()
	sol, err := Solve(context.Background(), p, Options{NodeLimit: 1, LPMaxVariables: 3})
	require.NoError(t, err)
	assert.InDelta(t, 40000, sol.LowerBound, 1e-6)
}

func TestSolve_Empty(t *testing.T) {
	sol, err := Solve(context.Background(), &Problem{Cables: DefaultCables()}, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, sol.Status)
	assert.Empty(t, sol.Connections)
	assert.Zero(t, sol.TotalCost)
	require.NoError(t, sol.Verify(&Problem{Cables: DefaultCables()}))
}

func TestSolve_Infeasible(t *testing.T) {
	tests := []struct {
		name    string
		problem *Problem
		msg     string
	}{
		{
			name: "no substations",
			problem: &Problem{
				Sites:  []Site{{Name: "Lonely", Location: pt(40, -77), CapacityMW: 10}},
				Cables: DefaultCables(),
			},
			msg: "Lonely",
		},
		{
			name: "site larger than every cable",
			problem: &Problem{
				Sites:       []Site{{Name: "Huge Hydro", Location: pt(40, -77), CapacityMW: 250}},
				Substations: twoSubstations(),
				Cables:      DefaultCables(),
			},
			msg: "exceeds every cable",
		},
		{
			name: "site larger than every substation",
			problem: &Problem{
				Sites:                []Site{{Name: "Big Wind", Location: pt(40, -77), CapacityMW: 150}},
				Substations:          twoSubstations(),
				Cables:               DefaultCables(),
				SubstationCapacityMW: 100,
			},
			msg: "exceeds every substation",
		},
		{
			name: "capacities cannot absorb all sites",
			problem: &Problem{
				Sites: []Site{
					{Name: "a", Location: pt(40, -77), CapacityMW: 60},
					{Name: "b", Location: pt(40, -77), CapacityMW: 60},
					{Name: "c", Location: pt(40, -77), CapacityMW: 60},
				},
				Substations:          twoSubstations(),
				Cables:               DefaultCables(),
				SubstationCapacityMW: 100,
			},
			msg: "cannot absorb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, err := Solve(context.Background(), tt.problem, Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInfeasible))
			assert.True(t, IsInfeasible(err))
			assert.Contains(t, err.Error(), tt.msg)
			require.NotNil(t, sol)
			assert.Equal(t, StatusInfeasible, sol.Status)
			assert.Empty(t, sol.Connections)
			assert.NoError(t, sol.Verify(tt.problem))
		})
	}
}

func TestSolve_InvalidProblem(t *testing.T) {
	_, err := Solve(context.Background(), &Problem{}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestSolve_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Solve(ctx, crowded(), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSolve_CapacityOverride(t *testing.T) {
	p := &Problem{
		Sites:             []Site{{Name: "a", Location: pt(40.1, -77), CapacityMW: 40}},
		Substations:       twoSubstations(),
		Cables:            DefaultCables(),
		CapacityOverrides: map[int]float64{0: 20},
	}
	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	require.NoError(t, sol.Verify(p))
	assert.Equal(t, 1, sol.Connections[0].Substation)
}

func TestSolve_CandidatePruning(t *testing.T) {
	p := &Problem{
		Sites:             []Site{{Name: "a", Location: pt(40.1, -77), CapacityMW: 40}},
		Substations:       twoSubstations(),
		Cables:            DefaultCables(),
		CandidatesPerSite: 1,
	}
	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.True(t, sol.Pruned)
	assert.Equal(t, 0, sol.Connections[0].Substation)

	// The only nearby candidate is too small, so every substation is considered.
	p.CapacityOverrides = map[int]float64{0: 20}
	sol, err = Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.False(t, sol.Pruned)
	assert.Equal(t, 1, sol.Connections[0].Substation)
	require.NoError(t, sol.Verify(p))
}

func TestSolve_HaversineMetric(t *testing.T) {
	p := &Problem{
		Sites:       []Site{{Name: "a", Location: pt(40.1, -77), CapacityMW: 10}},
		Substations: twoSubstations(),
		Cables:      []CableType{{Name: "km", CapacityMW: 50, CostPerUnit: 1000}},
		Metric:      geo.Haversine,
	}
	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	require.NoError(t, sol.Verify(p))

	want := geo.HaversineKM(pt(40.1, -77), pt(40, -77))
	assert.InDelta(t, 11.12, want, 0.01)
	assert.InDelta(t, want, sol.Connections[0].Distance, 1e-9)
	assert.InDelta(t, want*1000, sol.TotalCost, 1e-6)
}

func TestSolve_ZeroCapacitySite(t *testing.T) {
	p := &Problem{
		Sites:                []Site{{Name: "unknown", Location: pt(40.2, -77), CapacityMW: 0}},
		Substations:          twoSubstations(),
		Cables:               DefaultCables(),
		SubstationCapacityMW: 1,
	}
	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, sol.Connections[0].Cable)
	assert.InDelta(t, 20000, sol.TotalCost, 1e-6)
}

func TestSolve_Deterministic(t *testing.T) {
	p := randomProblem(rand.New(rand.NewPCG(7, 11)), 8, 4)
	first, err1 := Solve(context.Background(), p, Options{})
	second, err2 := Solve(context.Background(), p, Options{})
	require.Equal(t, err1 == nil, err2 == nil)
	if err1 != nil {
		return
	}
	assert.Equal(t, first.Connections, second.Connections)
	assert.Equal(t, first.TotalCost, second.TotalCost)
}

// randomProblem builds a small instance with tight substation capacities.
func randomProblem(r *rand.Rand, sites, subs int) *Problem {
	p := &Problem{Cables: DefaultCables(), CapacityOverrides: map[int]float64{}}
	for i := range sites {
		p.Sites = append(p.Sites, Site{
			Name:       string(rune('a' + i)),
			Location:   pt(39.8+2.6*r.Float64(), -80.4+5.6*r.Float64()),
			CapacityMW: 5 + 110*r.Float64(),
		})
	}
	for j := range subs {
		p.Substations = append(p.Substations, Node{Location: pt(39.8+2.6*r.Float64(), -80.4+5.6*r.Float64())})
		p.CapacityOverrides[j] = 60 + 140*r.Float64()
	}
	return p
}

// bruteForce enumerates every assignment; ok is false when none is feasible.
func bruteForce(p *Problem) (float64, bool) {
	n, m := len(p.Sites), len(p.Substations)
	price := make([]float64, n)
	for i, s := range p.Sites {
		k, ok := CheapestCable(p.Cables, s.CapacityMW)
		if !ok {
			return 0, false
		}
		price[i] = p.Cables[k].CostPerUnit
	}

	best, found := math.Inf(1), false
	assign := make([]int, n)
	var rec func(i int, cost float64, load []float64)
	rec = func(i int, cost float64, load []float64) {
		if i == n {
			if cost < best {
				best, found = cost, true
			}
			return
		}
		for j := 0; j < m; j++ {
			w := p.Sites[i].CapacityMW
			if load[j]+w > p.Capacity(j)+1e-9 {
				continue
			}
			load[j] += w
			assign[i] = j
			rec(i+1, cost+geo.PlanarDegrees(p.Sites[i].Location, p.Substations[j].Location)*price[i], load)
			load[j] -= w
		}
	}
	rec(0, 0, make([]float64, m))
	return best, found
}

func TestSolve_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 2024))
	for trial := range 60 {
		p := randomProblem(r, 2+trial%5, 2+trial%3)
		want, feasible := bruteForce(p)

		sol, err := Solve(context.Background(), p, Options{})
		if !feasible {
			require.Error(t, err, "trial %d", trial)
			assert.True(t, IsInfeasible(err), "trial %d: %v", trial, err)
			continue
		}
		require.NoError(t, err, "trial %d", trial)
		require.NoError(t, sol.Verify(p), "trial %d", trial)
		assert.Equal(t, StatusOptimal, sol.Status, "trial %d", trial)
		assert.InDelta(t, want, sol.TotalCost, 1e-6*math.Max(1, want), "trial %d", trial)
		assert.LessOrEqual(t, sol.LowerBound, sol.TotalCost+1e-6, "trial %d", trial)
	}
}

// Regret greedy commits the 60 MW site to the 100 MW substation first and
// then strands one 50 MW site; only the search finds the assignment.
func TestSolve_GreedyDeadEndStillOptimal(t *testing.T) {
	p := &Problem{
		Sites: []Site{
			{ID: "a", Name: "Ridge A", Location: pt(40.5, -77), CapacityMW: 50},
			{ID: "b", Name: "Ridge B", Location: pt(40.5, -77), CapacityMW: 50},
			{ID: "c", Name: "Valley C", Location: pt(40, -77), CapacityMW: 60},
		},
		Substations:       twoSubstations(),
		Cables:            DefaultCables(),
		CapacityOverrides: map[int]float64{0: 100, 1: 60},
	}
	md, err := newModel(p)
	require.NoError(t, err)
	require.Nil(t, md.greedy())

	sol, err := Solve(context.Background(), p, Options{})
	require.NoError(t, err)
	require.NoError(t, sol.Verify(p))
	assert.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 300000, sol.TotalCost, 1e-6)
	require.Len(t, sol.Connections, 3)
	assert.Equal(t, 0, sol.Connections[0].Substation)
	assert.Equal(t, 0, sol.Connections[1].Substation)
	assert.Equal(t, 1, sol.Connections[2].Substation)
}

func TestSearchCutoff(t *testing.T) {
	s := &search{}
	assert.True(t, math.IsInf(s.cutoff(), 1))
	s.best = &assignment{cost: 1000}
	assert.Less(t, s.cutoff(), 1000.0)
	assert.InDelta(t, 1000, s.cutoff(), 1e-5)
}

func TestSolve_TimeLimitKeepsIncumbent(t *testing.T) {
	p := randomProblem(rand.New(rand.NewPCG(3, 5)), 12, 4)
	for j := range p.Substations {
		p.CapacityOverrides[j] = 400
	}
	sol, err := Solve(context.Background(), p, Options{TimeLimit: time.Nanosecond})
	if err != nil {
		assert.True(t, IsInfeasible(err) || errors.Is(err, ErrNoSolution), "%v", err)
		return
	}
	require.NoError(t, sol.Verify(p))
	assert.Contains(t, []Status{StatusOptimal, StatusFeasible}, sol.Status)
}
