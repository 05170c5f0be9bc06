package optimize

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Solve finds a minimum-cost connection plan. The returned solution is
// optimal unless the node limit, the time limit or ctx stopped the search
// first, in which case it is the best assignment found and LowerBound bounds
// the optimum from below. Infeasible problems return a solution with
// StatusInfeasible together with an error wrapping ErrInfeasible.
func Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error) {
	start := time.Now()
	if err := Validate(p); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "optimize: solve")
	}
	opts = opts.withDefaults()
	log := zap.L().With(
		zap.String("component", "optimize"),
		zap.Int("sites", len(p.Sites)),
		zap.Int("substations", len(p.Substations)),
	)

	if len(p.Sites) == 0 {
		return &Solution{Status: StatusOptimal, Connections: []Connection{}, Duration: time.Since(start)}, nil
	}

	md, err := newModel(p)
	if err != nil {
		return infeasible(start), err
	}

	incumbent := md.greedy()
	if incumbent != nil {
		md.improve(incumbent)
		log.Debug("incumbent found", zap.Float64("cost", incumbent.cost))
	}

	root := md.rootBound()
	sol := &Solution{Pruned: md.pruned}

	s := newSearch(ctx, md, incumbent, opts)
	// An incumbent meeting the capacity-free bound is already optimal.
	if incumbent == nil || incumbent.cost > root+tolerance(root) {
		complete := s.run()
		sol.Nodes = s.nodes
		sol.StopReason = s.stop
		if complete && s.best == nil {
			return infeasible(start), eris.Wrap(ErrInfeasible, "substation capacities cannot absorb every site")
		}
	}
	if s.best == nil {
		if s.stop == StopCanceled {
			return nil, eris.Wrap(ctx.Err(), "optimize: solve")
		}
		return nil, eris.Wrapf(ErrNoSolution, "after %d nodes (%s)", s.nodes, s.stop)
	}

	md.fill(sol, s.best)
	if sol.StopReason == "" {
		sol.Status = StatusOptimal
		sol.LowerBound = sol.TotalCost
	} else {
		sol.Status = StatusFeasible
		sol.LowerBound = md.provenBound(root, opts, log)
		if sol.LowerBound >= sol.TotalCost-tolerance(sol.TotalCost) {
			sol.Status = StatusOptimal
		}
	}
	sol.LowerBound = math.Min(sol.LowerBound, sol.TotalCost)
	if sol.TotalCost > 0 {
		sol.Gap = (sol.TotalCost - sol.LowerBound) / sol.TotalCost
	}
	sol.Duration = time.Since(start)

	log.Info("solve finished",
		zap.String("status", string(sol.Status)),
		zap.Float64("total_cost", sol.TotalCost),
		zap.Float64("lower_bound", sol.LowerBound),
		zap.Int64("nodes", sol.Nodes),
		zap.String("stop_reason", sol.StopReason),
		zap.Duration("duration", sol.Duration),
	)
	return sol, nil
}

// provenBound is the best lower bound available without finishing the
// search: the capacity-free bound, raised by the LP relaxation when the
// model is small enough.
func (md *model) provenBound(root float64, opts Options, log *zap.Logger) float64 {
	bound := root
	if opts.LPMaxVariables < 0 {
		return bound
	}
	if nvars, _ := md.lpVariables(); nvars > opts.LPMaxVariables {
		log.Debug("LP relaxation skipped", zap.Int("variables", nvars), zap.Int("max", opts.LPMaxVariables))
		return bound
	}
	v, err := md.lpBound()
	if err != nil {
		log.Debug("LP relaxation failed", zap.Error(err))
		return bound
	}
	return math.Max(bound, v)
}

// fill writes an assignment into sol as connections ordered by site.
func (md *model) fill(sol *Solution, a *assignment) {
	sol.Connections = make([]Connection, 0, md.n)
	sol.TotalCost = 0
	for i, j := range a.of {
		o := md.options[i][md.lookup[i][j]]
		sol.Connections = append(sol.Connections, Connection{
			Site:       i,
			Substation: j,
			Cable:      md.cable[i],
			Distance:   o.dist,
			Cost:       o.cost,
		})
		sol.TotalCost += o.cost
	}
	sort.SliceStable(sol.Connections, func(a, b int) bool { return sol.Connections[a].Site < sol.Connections[b].Site })
}

func infeasible(start time.Time) *Solution {
	return &Solution{Status: StatusInfeasible, Connections: []Connection{}, Duration: time.Since(start)}
}

// IsInfeasible reports whether err means no assignment exists.
func IsInfeasible(err error) bool {
	return errors.Is(err, ErrInfeasible)
}
