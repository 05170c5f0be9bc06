// Package planner turns datasets, configuration and scenario overrides into
// solved and stored connection plans.
package planner

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gridlink/internal/boundary"
	"github.com/sells-group/gridlink/internal/config"
	"github.com/sells-group/gridlink/internal/dataset"
	"github.com/sells-group/gridlink/internal/fetcher"
	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/metrics"
	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/optimize"
	"github.com/sells-group/gridlink/internal/resilience"
	"github.com/sells-group/gridlink/internal/store"
)

// busiestSubstations is how many loaded substations a plan summary lists.
const busiestSubstations = 5

// Planner loads inputs, solves connection plans and persists them.
type Planner struct {
	cfg      *config.Config
	store    store.Store
	resolver *fetcher.Resolver
	counties *boundary.Client
}

// New creates a Planner. A nil store disables persistence; a nil resolver
// or boundary client is built from cfg.
func New(cfg *config.Config, st store.Store, resolver *fetcher.Resolver, counties *boundary.Client) *Planner {
	if resolver == nil {
		resolver = NewResolver(cfg.Fetch)
	}
	if counties == nil {
		retry, breaker := resilience.FromFetchConfig(cfg.Fetch)
		counties = boundary.NewClient(resolver,
			resilience.NewBreaker("boundary", breaker), retry,
			filepath.Join(cfg.Datasets.TempDir, "boundaries"))
	}
	return &Planner{cfg: cfg, store: st, resolver: resolver, counties: counties}
}

// NewResolver builds the source resolver described by the fetch config.
func NewResolver(cfg config.FetchConfig) *fetcher.Resolver {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return fetcher.NewResolver(
		fetcher.HTTPOptions{UserAgent: cfg.UserAgent, Timeout: timeout, MaxRetries: cfg.MaxRetries},
		fetcher.FTPOptions{Timeout: timeout},
	)
}

// Store returns the planner's store, nil when persistence is off.
func (p *Planner) Store() store.Store {
	return p.store
}

// InputOptions selects what LoadInputs reads.
type InputOptions struct {
	Counties         bool // fetch county outlines
	KnownVoltageOnly bool // drop substations without MAX_VOLT
}

// Inputs are the filtered records of the study region.
type Inputs struct {
	Substations []dataset.Substation
	Plants      []dataset.Plant
	Counties    []boundary.County
	Stats       model.InputStats
}

// LoadInputs reads substations, plants and optionally county outlines
// concurrently, then applies the region filters. A county fetch failure is
// logged and leaves Counties empty.
func (p *Planner) LoadInputs(ctx context.Context, opts InputOptions) (*Inputs, error) {
	log := zap.L().With(zap.String("component", "planner"))
	dopts := dataset.Options{
		Resolver: p.resolver,
		TempDir:  p.cfg.Datasets.TempDir,
		Encoding: p.cfg.Datasets.Encoding,
	}

	var (
		in        Inputs
		subs      []dataset.Substation
		plants    []dataset.Plant
		subStats  dataset.Stats
		plantStat dataset.Stats
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subs, subStats, err = dataset.LoadSubstations(gCtx, p.cfg.Datasets.Substations, dopts)
		return eris.Wrap(err, "planner: load substations")
	})
	g.Go(func() error {
		var err error
		plants, plantStat, err = dataset.LoadPlants(gCtx, p.cfg.Datasets.Plants, dopts)
		return eris.Wrap(err, "planner: load plants")
	})
	if opts.Counties {
		g.Go(func() error {
			counties, err := p.Counties(gCtx)
			in.Counties = counties
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	filter := p.regionFilter()
	filter.KnownVoltageOnly = opts.KnownVoltageOnly
	in.Substations = dataset.FilterSubstations(subs, filter)
	in.Plants = dataset.FilterPlants(plants, filter)
	in.Stats = model.InputStats{
		Substations:     subStats,
		Plants:          plantStat,
		SubstationsKept: len(in.Substations),
		PlantsKept:      len(in.Plants),
		Counties:        len(in.Counties),
	}

	log.Info("planner: inputs loaded",
		zap.Int("substations", len(in.Substations)),
		zap.Int("plants", len(in.Plants)),
		zap.Int("counties", len(in.Counties)),
	)
	return &in, nil
}

// Counties fetches the configured county outlines. A failed fetch is logged
// and yields none; only cancellation is returned as an error.
func (p *Planner) Counties(ctx context.Context) ([]boundary.County, error) {
	if p.cfg.Map.BoundaryURL == "" {
		return nil, nil
	}
	counties, err := p.counties.FetchCounties(ctx, p.cfg.Map.BoundaryURL, p.cfg.Map.StateFIPS)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "planner: load counties")
		}
		zap.L().Warn("planner: county outlines unavailable",
			zap.String("component", "planner"), zap.Error(err))
		return nil, nil
	}
	return counties, nil
}

func (p *Planner) regionFilter() dataset.Filter {
	f := dataset.Filter{
		State:   p.cfg.Region.State,
		Country: p.cfg.Region.Country,
	}
	b := p.cfg.Region.BBox
	if b != (config.BBoxValue{}) {
		f.BBox = &geo.BBox{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon}
	}
	return f
}

// Request describes one plan run.
type Request struct {
	Scenario Scenario
	Counties bool // attach county outlines for maps
	Persist  bool // save through the store when one is configured
}

// Plan loads the inputs, solves the connection problem under the request's
// scenario and returns the plan. An infeasible plan is still returned (and
// persisted) together with an error matching optimize.ErrInfeasible.
func (p *Planner) Plan(ctx context.Context, req Request) (*model.Plan, error) {
	if err := req.Scenario.Validate(); err != nil {
		return nil, err
	}
	in, err := p.LoadInputs(ctx, InputOptions{Counties: req.Counties})
	if err != nil {
		return nil, err
	}

	network, err := p.Network(req.Scenario, in.Substations)
	if err != nil {
		return nil, err
	}

	plan := &model.Plan{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		Network:     network,
		Inputs:      in.Stats,
		Sites:       Sites(in.Plants),
		Substations: Nodes(in.Substations),
		Counties:    in.Counties,
	}
	log := zap.L().With(zap.String("component", "planner"), zap.String("plan_id", plan.ID))

	problem := plan.Problem()
	sol, solveErr := optimize.Solve(ctx, problem, p.solverOptions())
	switch {
	case solveErr == nil:
		plan.Solution = sol
		plan.Summary = optimize.Summarize(problem, sol, busiestSubstations)
		metrics.RecordSolve(string(sol.Status), sol.Duration)
	case optimize.IsInfeasible(solveErr):
		plan.Error = solveErr.Error()
		if sol != nil {
			metrics.RecordSolve(string(sol.Status), sol.Duration)
		}
		log.Warn("planner: no feasible connection plan", zap.Error(solveErr))
	default:
		return nil, eris.Wrap(solveErr, "planner: solve")
	}

	if req.Persist && p.store != nil {
		if err := p.store.SavePlan(ctx, plan); err != nil {
			return nil, eris.Wrap(err, "planner: save plan")
		}
	}

	if solveErr != nil {
		return plan, solveErr
	}
	log.Info("planner: plan complete",
		zap.String("status", string(sol.Status)),
		zap.Float64("total_cost", sol.TotalCost),
		zap.Int("sites", len(plan.Sites)),
	)
	return plan, nil
}

func (p *Planner) solverOptions() optimize.Options {
	return optimize.Options{
		NodeLimit:      int64(p.cfg.Solver.NodeLimit),
		TimeLimit:      time.Duration(p.cfg.Solver.TimeLimitSecs) * time.Second,
		LPMaxVariables: p.cfg.Solver.LPMaxVariables,
	}
}

// Network resolves the configured network with the scenario's overrides.
// Capacity overrides naming unknown substations are logged and ignored.
func (p *Planner) Network(sc Scenario, subs []dataset.Substation) (model.Network, error) {
	n := model.Network{
		Scenario:             sc.Name,
		SubstationCapacityMW: p.cfg.Network.SubstationCapacityMW,
		CandidatesPerSite:    p.cfg.Network.CandidatesPerSite,
	}

	metricName := p.cfg.Network.DistanceMetric
	if sc.Metric != "" {
		metricName = sc.Metric
	}
	metric, err := geo.ParseMetric(metricName)
	if err != nil {
		return n, eris.Wrap(err, "planner: metric")
	}
	n.Metric = metric

	if sc.SubstationCapacityMW != nil {
		n.SubstationCapacityMW = *sc.SubstationCapacityMW
	}
	if sc.CandidatesPerSite != nil {
		n.CandidatesPerSite = *sc.CandidatesPerSite
	}

	if len(sc.Cables) > 0 {
		n.Cables = append([]optimize.CableType(nil), sc.Cables...)
	} else {
		n.Cables = Cables(p.cfg.Network.Cables)
	}

	if len(sc.CapacityOverrides) > 0 {
		index := make(map[string]int, len(subs))
		for j, s := range subs {
			if _, dup := index[s.ID]; !dup {
				index[s.ID] = j
			}
		}
		ids := make([]string, 0, len(sc.CapacityOverrides))
		for id := range sc.CapacityOverrides {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		n.CapacityOverrides = make(map[int]float64, len(ids))
		for _, id := range ids {
			j, ok := index[id]
			if !ok {
				zap.L().Warn("planner: capacity override for unknown substation", zap.String("substation_id", id))
				continue
			}
			n.CapacityOverrides[j] = sc.CapacityOverrides[id]
		}
	}
	return n, nil
}

// Cables converts the configured catalog.
func Cables(cfg []config.CableConfig) []optimize.CableType {
	out := make([]optimize.CableType, len(cfg))
	for i, c := range cfg {
		out[i] = optimize.CableType{Name: c.Name, CapacityMW: c.CapacityMW, CostPerUnit: c.CostPerUnit}
	}
	return out
}

// Sites converts plants to solver sites, keeping their order.
func Sites(plants []dataset.Plant) []optimize.Site {
	out := make([]optimize.Site, len(plants))
	for i, pl := range plants {
		out[i] = optimize.Site{ID: pl.ID, Name: pl.Name, Location: pl.Location, CapacityMW: pl.CapacityMW}
	}
	return out
}

// Nodes converts substations to solver nodes, keeping their order.
func Nodes(subs []dataset.Substation) []optimize.Node {
	out := make([]optimize.Node, len(subs))
	for i, s := range subs {
		out[i] = optimize.Node{ID: s.ID, Name: s.Name, Location: s.Location}
	}
	return out
}
