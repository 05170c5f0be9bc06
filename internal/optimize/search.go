package optimize

import (
	"context"
	"math"
	"sort"
	"time"
)

// Reasons the search may stop before proving optimality.
const (
	StopNodeLimit = "node_limit"
	StopTimeLimit = "time_limit"
	StopCanceled  = "canceled"
)

// checkEvery is how many nodes pass between clock and context checks.
const checkEvery = 1024

// search is a depth-first branch and bound over site assignments. Sites are
// branched in decreasing regret order; each node is bounded by its cost so
// far plus the cheapest still-admissible option of every unassigned site.
type search struct {
	ctx      context.Context
	md       *model
	order    []int
	cur      *assignment
	best     *assignment
	nodes    int64
	limit    int64
	deadline time.Time
	stop     string
}

func newSearch(ctx context.Context, md *model, incumbent *assignment, opts Options) *search {
	s := &search{
		ctx:      ctx,
		md:       md,
		order:    branchOrder(md),
		cur:      md.emptyAssignment(),
		best:     incumbent,
		limit:    opts.NodeLimit,
		deadline: time.Now().Add(opts.TimeLimit),
	}
	return s
}

// branchOrder puts the most constrained sites first: those with the largest
// gap between their two cheapest substations, then the heaviest.
func branchOrder(md *model) []int {
	regret := make([]float64, md.n)
	for i := range regret {
		_, r, _ := md.regret(i, md.caps)
		regret[i] = r
	}
	order := make([]int, md.n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if regret[ia] != regret[ib] {
			return regret[ia] > regret[ib]
		}
		return md.weight[ia] > md.weight[ib]
	})
	return order
}

func (s *search) bestCost() float64 {
	if s.best == nil {
		return math.Inf(1)
	}
	return s.best.cost
}

// cutoff is the cost a partial assignment must stay below to improve on the
// best one. It is +Inf until an assignment is found.
func (s *search) cutoff() float64 {
	best := s.bestCost()
	if math.IsInf(best, 1) {
		return best
	}
	return best - tolerance(best)
}

// run explores the tree and reports whether it was exhausted.
func (s *search) run() bool {
	s.dfs(0)
	return s.stop == ""
}

func (s *search) halted() bool {
	if s.stop != "" {
		return true
	}
	if s.nodes >= s.limit {
		s.stop = StopNodeLimit
		return true
	}
	if s.nodes%checkEvery == 0 {
		if s.ctx.Err() != nil {
			s.stop = StopCanceled
			return true
		}
		if time.Now().After(s.deadline) {
			s.stop = StopTimeLimit
			return true
		}
	}
	return false
}

func (s *search) dfs(depth int) {
	if s.halted() {
		return
	}
	s.nodes++

	md := s.md
	if depth == md.n {
		if s.cur.cost < s.cutoff() {
			s.best = s.cur.clone()
		}
		return
	}

	lb, ok := s.bound(depth)
	if !ok || s.cur.cost+lb >= s.cutoff() {
		return
	}

	i := s.order[depth]
	w := md.weight[i]
	for _, o := range md.options[i] {
		if !md.fits(i, s.cur.resid[o.sub]) {
			continue
		}
		if s.cur.cost+o.cost >= s.cutoff() {
			break
		}
		s.cur.of[i] = o.sub
		s.cur.resid[o.sub] -= w
		s.cur.cost += o.cost

		s.dfs(depth + 1)

		s.cur.cost -= o.cost
		s.cur.resid[o.sub] += w
		s.cur.of[i] = -1
		if s.stop != "" {
			return
		}
	}
}

// bound sums the cheapest admissible option of every site from depth on.
// It reports false when some site has nowhere left to go.
func (s *search) bound(depth int) (float64, bool) {
	var sum float64
	for _, i := range s.order[depth:] {
		found := false
		for _, o := range s.md.options[i] {
			if s.md.fits(i, s.cur.resid[o.sub]) {
				sum += o.cost
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return sum, true
}
