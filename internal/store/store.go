// Package store persists optimisation plans in SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gridlink/internal/config"
	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/model"
)

// ErrNotFound is returned when a plan ID does not exist.
var ErrNotFound = eris.New("store: plan not found")

// DefaultListLimit caps ListPlans when no limit is given.
const DefaultListLimit = 50

// Store defines the persistence interface for optimisation plans.
type Store interface {
	SavePlan(ctx context.Context, plan *model.Plan) error
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	ListPlans(ctx context.Context, limit int) ([]model.PlanSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the backend named by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "gridlink.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// prepare fills in the ID and creation time of a new plan.
func prepare(plan *model.Plan) error {
	if plan == nil {
		return eris.New("store: nil plan")
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	return nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// connectionRow is one chosen link, denormalised for querying.
type connectionRow struct {
	SiteIndex      int
	SiteID         string
	SiteName       string
	SubstationID   string
	SubstationName string
	Cable          string
	CapacityMW     float64
	Distance       float64
	Cost           float64
	From           geo.Point
	To             geo.Point
}

func connectionRows(plan *model.Plan) ([]connectionRow, error) {
	if plan.Solution == nil {
		return nil, nil
	}
	cables := plan.Network.Cables
	rows := make([]connectionRow, 0, len(plan.Solution.Connections))
	for i, c := range plan.Solution.Connections {
		if c.Site < 0 || c.Site >= len(plan.Sites) ||
			c.Substation < 0 || c.Substation >= len(plan.Substations) ||
			c.Cable < 0 || c.Cable >= len(cables) {
			return nil, eris.Errorf("store: connection %d references an unknown site, substation or cable", i)
		}
		site := plan.Sites[c.Site]
		sub := plan.Substations[c.Substation]
		rows = append(rows, connectionRow{
			SiteIndex:      c.Site,
			SiteID:         site.ID,
			SiteName:       site.Name,
			SubstationID:   sub.ID,
			SubstationName: sub.Name,
			Cable:          cables[c.Cable].Name,
			CapacityMW:     site.CapacityMW,
			Distance:       c.Distance,
			Cost:           c.Cost,
			From:           site.Location,
			To:             sub.Location,
		})
	}
	return rows, nil
}
