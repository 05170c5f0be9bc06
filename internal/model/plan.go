// Package model holds the connection plan records shared by the planner,
// store and server.
package model

import (
	"time"

	"github.com/sells-group/gridlink/internal/boundary"
	"github.com/sells-group/gridlink/internal/dataset"
	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/optimize"
)

// InputStats records what the dataset loaders read and what survived the
// region filters.
type InputStats struct {
	Substations     dataset.Stats `json:"substations"`
	Plants          dataset.Stats `json:"plants"`
	SubstationsKept int           `json:"substations_kept"`
	PlantsKept      int           `json:"plants_kept"`
	Counties        int           `json:"counties"`
}

// Network is the connection model a plan was solved under.
type Network struct {
	Scenario             string               `json:"scenario,omitempty"`
	Cables               []optimize.CableType `json:"cables"`
	SubstationCapacityMW float64              `json:"substation_capacity_mw"`
	CapacityOverrides    map[int]float64      `json:"capacity_overrides,omitempty"`
	Metric               geo.Metric           `json:"metric"`
	CandidatesPerSite    int                  `json:"candidates_per_site"`
}

// Plan is one optimisation run: its inputs, model and result.
type Plan struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	Network     Network            `json:"network"`
	Inputs      InputStats         `json:"inputs"`
	Sites       []optimize.Site    `json:"sites"`
	Substations []optimize.Node    `json:"substations"`
	Solution    *optimize.Solution `json:"solution"`
	Summary     optimize.Summary   `json:"summary"`
	Error       string             `json:"error,omitempty"`

	// Counties are the outlines drawn under the plan; not persisted.
	Counties []boundary.County `json:"-"`
}

// Problem rebuilds the optimisation problem the plan was solved from.
func (p *Plan) Problem() *optimize.Problem {
	return &optimize.Problem{
		Sites:                p.Sites,
		Substations:          p.Substations,
		Cables:               p.Network.Cables,
		SubstationCapacityMW: p.Network.SubstationCapacityMW,
		CapacityOverrides:    p.Network.CapacityOverrides,
		Metric:               p.Network.Metric,
		CandidatesPerSite:    p.Network.CandidatesPerSite,
	}
}

// Status returns the solver status, or infeasible when no solution exists.
func (p *Plan) Status() optimize.Status {
	if p.Solution == nil {
		return optimize.StatusInfeasible
	}
	return p.Solution.Status
}

// TotalCost returns the plan's cost, zero when unsolved.
func (p *Plan) TotalCost() float64 {
	if p.Solution == nil {
		return 0
	}
	return p.Solution.TotalCost
}

// PlanSummary is the list view of a stored plan.
type PlanSummary struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Scenario    string          `json:"scenario,omitempty"`
	Status      optimize.Status `json:"status"`
	Metric      geo.Metric      `json:"metric"`
	TotalCost   float64         `json:"total_cost"`
	Sites       int             `json:"sites"`
	Substations int             `json:"substations"`
}

// Summarize returns the list view of p.
func (p *Plan) Summarize() PlanSummary {
	return PlanSummary{
		ID:          p.ID,
		CreatedAt:   p.CreatedAt,
		Scenario:    p.Network.Scenario,
		Status:      p.Status(),
		Metric:      p.Network.Metric,
		TotalCost:   p.TotalCost(),
		Sites:       len(p.Sites),
		Substations: len(p.Substations),
	}
}
