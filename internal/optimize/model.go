package optimize

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gridlink/internal/geo"
)

// option is one admissible substation for a site.
type option struct {
	sub  int
	dist float64
	cost float64
}

// model is the problem reduced to a generalized assignment: every site has
// a fixed cable and a list of substations ordered by connection cost.
type model struct {
	p       *Problem
	n, m    int
	weight  []float64
	cable   []int
	caps    []float64
	options [][]option
	lookup  []map[int]int // site -> substation -> index into options
	pruned  bool
}

// newModel builds the reduced model. Sites that no cable or no substation
// can carry make the problem infeasible.
func newModel(p *Problem) (*model, error) {
	md := &model{
		p:       p,
		n:       len(p.Sites),
		m:       len(p.Substations),
		weight:  make([]float64, len(p.Sites)),
		cable:   make([]int, len(p.Sites)),
		caps:    make([]float64, len(p.Substations)),
		options: make([][]option, len(p.Sites)),
		lookup:  make([]map[int]int, len(p.Sites)),
	}
	maxCap := 0.0
	for j := range p.Substations {
		md.caps[j] = p.Capacity(j)
		maxCap = math.Max(maxCap, md.caps[j])
	}

	metric, _ := geo.ParseMetric(string(p.Metric))
	dist := make([]float64, md.m)
	for i, s := range p.Sites {
		md.weight[i] = s.CapacityMW

		k, ok := CheapestCable(p.Cables, s.CapacityMW)
		if !ok {
			return nil, eris.Wrapf(ErrInfeasible, "site %d (%s): %.2f MW exceeds every cable", i, s.Name, s.CapacityMW)
		}
		md.cable[i] = k

		if md.m == 0 {
			return nil, eris.Wrapf(ErrInfeasible, "site %d (%s): no substations to connect to", i, s.Name)
		}
		if s.CapacityMW > maxCap+tolerance(maxCap) {
			return nil, eris.Wrapf(ErrInfeasible, "site %d (%s): %.2f MW exceeds every substation", i, s.Name, s.CapacityMW)
		}

		for j, sub := range p.Substations {
			dist[j] = geo.Distance(metric, s.Location, sub.Location)
		}
		subs := md.candidates(i, dist)
		price := p.Cables[k].CostPerUnit
		opts := make([]option, 0, len(subs))
		for _, j := range subs {
			opts = append(opts, option{sub: j, dist: dist[j], cost: dist[j] * price})
		}
		sort.SliceStable(opts, func(a, b int) bool {
			if opts[a].cost != opts[b].cost {
				return opts[a].cost < opts[b].cost
			}
			return opts[a].sub < opts[b].sub
		})
		md.options[i] = opts
		md.lookup[i] = make(map[int]int, len(opts))
		for idx, o := range opts {
			md.lookup[i][o.sub] = idx
		}
	}
	return md, nil
}

// candidates returns the substations site i may use: those large enough
// for it, limited to the k nearest when pruning is enabled. If pruning would
// leave nothing, every large-enough substation is kept.
func (md *model) candidates(i int, dist []float64) []int {
	w := md.weight[i]
	fits := func(j int) bool { return md.caps[j]+tolerance(md.caps[j]) >= w }

	k := md.p.CandidatesPerSite
	if k > 0 && k < md.m {
		order := make([]int, md.m)
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })
		var out []int
		for _, j := range order[:k] {
			if fits(j) {
				out = append(out, j)
			}
		}
		if len(out) > 0 {
			md.pruned = true
			return out
		}
	}

	out := make([]int, 0, md.m)
	for j := 0; j < md.m; j++ {
		if fits(j) {
			out = append(out, j)
		}
	}
	return out
}

// CheapestCable returns the index of the lowest-cost cable able to carry mw,
// preferring catalog order on ties.
func CheapestCable(cables []CableType, mw float64) (int, bool) {
	best := -1
	for k, c := range cables {
		if c.CapacityMW+tolerance(c.CapacityMW) < mw {
			continue
		}
		if best < 0 || c.CostPerUnit < cables[best].CostPerUnit {
			best = k
		}
	}
	return best, best >= 0
}

// rootBound is the cost with substation capacities ignored.
func (md *model) rootBound() float64 {
	var sum float64
	for i := range md.options {
		sum += md.options[i][0].cost
	}
	return sum
}

// costOf returns the cost of assigning site i to substation j.
func (md *model) costOf(i, j int) (float64, bool) {
	idx, ok := md.lookup[i][j]
	if !ok {
		return 0, false
	}
	return md.options[i][idx].cost, true
}

func (md *model) fits(i int, resid float64) bool {
	return resid+tolerance(resid) >= md.weight[i]
}

// tolerance absorbs floating point noise in capacity and cost comparisons.
func tolerance(v float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(v))
}
