// Package optimize assigns renewable sites to substations at minimum cable
// cost. Each site is connected to exactly one substation through one cable
// type whose capacity covers the site, and the MW connected to a substation
// may not exceed its capacity.
package optimize

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gridlink/internal/geo"
)

// Sentinel errors.
var (
	ErrInfeasible = eris.New("optimize: infeasible")
	ErrInvalid    = eris.New("optimize: invalid problem")
	ErrNoSolution = eris.New("optimize: search stopped before a feasible assignment was found")
)

// DefaultSubstationCapacityMW is the per-substation limit when none is given.
const DefaultSubstationCapacityMW = 1000

// CableType is one connection size in the catalog.
type CableType struct {
	Name        string  `json:"name" yaml:"name"`
	CapacityMW  float64 `json:"capacity_mw" yaml:"capacity_mw"`
	CostPerUnit float64 `json:"cost_per_unit" yaml:"cost_per_unit"`
}

// DefaultCables returns the small/medium/large catalog.
func DefaultCables() []CableType {
	return []CableType{
		{Name: "small", CapacityMW: 50, CostPerUnit: 100000},
		{Name: "medium", CapacityMW: 100, CostPerUnit: 200000},
		{Name: "large", CapacityMW: 200, CostPerUnit: 300000},
	}
}

// Site is a generator that must be connected.
type Site struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Location   geo.Point `json:"location"`
	CapacityMW float64   `json:"capacity_mw"`
}

// Node is a substation a site can connect to.
type Node struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
}

// Problem is one connection planning instance.
type Problem struct {
	Sites                []Site
	Substations          []Node
	Cables               []CableType
	SubstationCapacityMW float64         // 0 = DefaultSubstationCapacityMW
	CapacityOverrides    map[int]float64 // substation index -> MW
	Metric               geo.Metric
	CandidatesPerSite    int // k nearest substations per site, 0 = all
}

// Capacity returns the MW limit of substation j.
func (p *Problem) Capacity(j int) float64 {
	if c, ok := p.CapacityOverrides[j]; ok {
		return c
	}
	if p.SubstationCapacityMW > 0 {
		return p.SubstationCapacityMW
	}
	return DefaultSubstationCapacityMW
}

// Validate checks the problem's numbers before solving.
func Validate(p *Problem) error {
	if p == nil {
		return eris.Wrap(ErrInvalid, "nil problem")
	}
	if len(p.Cables) == 0 {
		return eris.Wrap(ErrInvalid, "no cable types")
	}
	for k, c := range p.Cables {
		if !finite(c.CapacityMW) || c.CapacityMW <= 0 {
			return eris.Wrapf(ErrInvalid, "cable %d (%s): capacity must be positive", k, c.Name)
		}
		if !finite(c.CostPerUnit) || c.CostPerUnit < 0 {
			return eris.Wrapf(ErrInvalid, "cable %d (%s): cost must be non-negative", k, c.Name)
		}
	}
	if !finite(p.SubstationCapacityMW) || p.SubstationCapacityMW < 0 {
		return eris.Wrap(ErrInvalid, "substation capacity must be non-negative")
	}
	for j, c := range p.CapacityOverrides {
		if j < 0 || j >= len(p.Substations) {
			return eris.Wrapf(ErrInvalid, "capacity override for unknown substation %d", j)
		}
		if !finite(c) || c < 0 {
			return eris.Wrapf(ErrInvalid, "substation %d: capacity override must be non-negative", j)
		}
	}
	if _, err := geo.ParseMetric(string(p.Metric)); err != nil {
		return eris.Wrap(ErrInvalid, err.Error())
	}
	if p.CandidatesPerSite < 0 {
		return eris.Wrap(ErrInvalid, "candidates per site must be non-negative")
	}
	for i, s := range p.Sites {
		if !s.Location.Valid() {
			return eris.Wrapf(ErrInvalid, "site %d (%s): invalid coordinates", i, s.Name)
		}
		if !finite(s.CapacityMW) || s.CapacityMW < 0 {
			return eris.Wrapf(ErrInvalid, "site %d (%s): capacity must be non-negative", i, s.Name)
		}
	}
	for j, n := range p.Substations {
		if !n.Location.Valid() {
			return eris.Wrapf(ErrInvalid, "substation %d (%s): invalid coordinates", j, n.Name)
		}
	}
	return nil
}

// Status describes how far the solver got.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
)

// Connection links site Site to substation Substation with cable Cable.
// Indices refer to the Problem's slices.
type Connection struct {
	Site       int     `json:"site"`
	Substation int     `json:"substation"`
	Cable      int     `json:"cable"`
	Distance   float64 `json:"distance"`
	Cost       float64 `json:"cost"`
}

// Solution is the result of Solve. Connections are ordered by site.
type Solution struct {
	Status      Status        `json:"status"`
	Connections []Connection  `json:"connections"`
	TotalCost   float64       `json:"total_cost"`
	LowerBound  float64       `json:"lower_bound"`
	Gap         float64       `json:"gap"` // (TotalCost-LowerBound)/TotalCost
	Nodes       int64         `json:"nodes"`
	Duration    time.Duration `json:"duration_ns"`
	StopReason  string        `json:"stop_reason,omitempty"`
	Pruned      bool          `json:"pruned,omitempty"` // candidate pruning was applied
}

// Options bounds the search.
type Options struct {
	NodeLimit      int64         // 0 = DefaultNodeLimit
	TimeLimit      time.Duration // 0 = DefaultTimeLimit
	LPMaxVariables int           // 0 = DefaultLPMaxVariables, < 0 disables the LP bound
}

// Search defaults.
const (
	DefaultNodeLimit      = 200000
	DefaultTimeLimit      = 60 * time.Second
	DefaultLPMaxVariables = 4000
)

func (o Options) withDefaults() Options {
	if o.NodeLimit <= 0 {
		o.NodeLimit = DefaultNodeLimit
	}
	if o.TimeLimit <= 0 {
		o.TimeLimit = DefaultTimeLimit
	}
	if o.LPMaxVariables == 0 {
		o.LPMaxVariables = DefaultLPMaxVariables
	}
	return o
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
