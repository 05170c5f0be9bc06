package optimize

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// lpTolerance is the simplex reduced-cost tolerance.
const lpTolerance = 1e-10

// lpVariables is the column count of the relaxation: one per admissible
// (site, substation) pair plus a slack per substation that appears in one.
func (md *model) lpVariables() (int, []int) {
	cols := 0
	used := make([]int, md.m)
	for j := range used {
		used[j] = -1
	}
	var subs []int
	for i := range md.options {
		cols += len(md.options[i])
		for _, o := range md.options[i] {
			if used[o.sub] < 0 {
				used[o.sub] = len(subs)
				subs = append(subs, o.sub)
			}
		}
	}
	return cols + len(subs), subs
}

// lpBound solves the linear relaxation of the reduced model in standard form:
//
//	minimise  Σ c[i,j]·x[i,j]
//	s.t.      Σ_j x[i,j] = 1                  for every site i
//	          Σ_i w[i]·x[i,j] + s[j] = cap[j]   for every substation j
//	          x, s ≥ 0
//
// Its optimum is a lower bound on every integral assignment.
func (md *model) lpBound() (float64, error) {
	nvars, subs := md.lpVariables()
	rows := md.n + len(subs)
	row := make(map[int]int, len(subs))
	for r, j := range subs {
		row[j] = md.n + r
	}

	A := mat.NewDense(rows, nvars, nil)
	c := make([]float64, nvars)
	b := make([]float64, rows)

	col := 0
	for i := range md.options {
		b[i] = 1
		for _, o := range md.options[i] {
			c[col] = o.cost
			A.Set(i, col, 1)
			A.Set(row[o.sub], col, md.weight[i])
			col++
		}
	}
	for r, j := range subs {
		A.Set(md.n+r, col, 1)
		b[md.n+r] = md.caps[j]
		col++
	}

	opt, _, err := lp.Simplex(c, A, b, lpTolerance, nil)
	if err != nil {
		return 0, eris.Wrap(err, "optimize: LP relaxation")
	}
	return opt, nil
}
