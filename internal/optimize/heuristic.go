package optimize

import "math"

// assignment maps each site to a substation (-1 = unassigned).
type assignment struct {
	of    []int
	resid []float64
	cost  float64
}

func (md *model) emptyAssignment() *assignment {
	a := &assignment{of: make([]int, md.n), resid: make([]float64, md.m)}
	for i := range a.of {
		a.of[i] = -1
	}
	copy(a.resid, md.caps)
	return a
}

func (a *assignment) clone() *assignment {
	return &assignment{
		of:    append([]int(nil), a.of...),
		resid: append([]float64(nil), a.resid...),
		cost:  a.cost,
	}
}

// regret returns the best admissible option of site i given resid, and the
// cost gap to the second best (+Inf when only one option is admissible).
func (md *model) regret(i int, resid []float64) (option, float64, bool) {
	first := -1
	for idx, o := range md.options[i] {
		if !md.fits(i, resid[o.sub]) {
			continue
		}
		if first < 0 {
			first = idx
			continue
		}
		return md.options[i][first], o.cost - md.options[i][first].cost, true
	}
	if first < 0 {
		return option{}, 0, false
	}
	return md.options[i][first], math.Inf(1), true
}

// greedy assigns sites one at a time, always committing the site that would
// lose the most by waiting (largest regret). Heavier sites win ties. It
// returns nil when some site is left without an admissible substation.
func (md *model) greedy() *assignment {
	a := md.emptyAssignment()
	for range md.n {
		best, bestRegret := -1, -1.0
		var bestOpt option
		for i := 0; i < md.n; i++ {
			if a.of[i] >= 0 {
				continue
			}
			o, r, ok := md.regret(i, a.resid)
			if !ok {
				return nil
			}
			if best < 0 || r > bestRegret || (r == bestRegret && md.weight[i] > md.weight[best]) {
				best, bestRegret, bestOpt = i, r, o
			}
		}
		a.of[best] = bestOpt.sub
		a.resid[bestOpt.sub] -= md.weight[best]
		a.cost += bestOpt.cost
	}
	return a
}

// maxImprovePasses bounds local search on large instances.
const maxImprovePasses = 50

// improve runs shift and swap moves until neither lowers the cost.
func (md *model) improve(a *assignment) {
	for pass := 0; pass < maxImprovePasses; pass++ {
		shifted := md.shiftPass(a)
		swapped := md.swapPass(a)
		if !shifted && !swapped {
			return
		}
	}
}

// shiftPass moves single sites to cheaper substations with room.
func (md *model) shiftPass(a *assignment) bool {
	improved := false
	for i := 0; i < md.n; i++ {
		cur := a.of[i]
		curCost, _ := md.costOf(i, cur)
		for _, o := range md.options[i] {
			if o.cost >= curCost-tolerance(curCost) {
				break
			}
			if o.sub == cur || !md.fits(i, a.resid[o.sub]) {
				continue
			}
			a.resid[cur] += md.weight[i]
			a.resid[o.sub] -= md.weight[i]
			a.of[i] = o.sub
			a.cost += o.cost - curCost
			improved = true
			break
		}
	}
	return improved
}

// swapPass exchanges the substations of two sites when that is cheaper and
// both substations stay within capacity.
func (md *model) swapPass(a *assignment) bool {
	improved := false
	for i := 0; i < md.n; i++ {
		for k := i + 1; k < md.n; k++ {
			si, sk := a.of[i], a.of[k]
			if si == sk {
				continue
			}
			cik, ok1 := md.costOf(i, sk)
			cki, ok2 := md.costOf(k, si)
			if !ok1 || !ok2 {
				continue
			}
			cii, _ := md.costOf(i, si)
			ckk, _ := md.costOf(k, sk)
			delta := cik + cki - cii - ckk
			if delta >= -tolerance(a.cost) {
				continue
			}
			wi, wk := md.weight[i], md.weight[k]
			if !md.fits(k, a.resid[si]+wi) || !md.fits(i, a.resid[sk]+wk) {
				continue
			}
			a.resid[si] += wi - wk
			a.resid[sk] += wk - wi
			a.of[i], a.of[k] = sk, si
			a.cost += delta
			improved = true
		}
	}
	return improved
}
