package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/gridlink/internal/db"
	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/optimize"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const connectionTable = "plan_connections"

var connectionColumns = []string{
	"plan_id", "site_index", "site_id", "site_name", "substation_id", "substation_name",
	"cable", "capacity_mw", "distance", "cost", "geom",
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_plan":   `SELECT payload FROM plans WHERE id = $1`,
	"list_plans": `SELECT id, created_at, scenario, status, metric, total_cost, sites, substations FROM plans ORDER BY created_at DESC, id LIMIT $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = min(minConns, maxConns)
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// The tables may not exist before the first migrate.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that load
// reference tables, such as the TIGER subdivision loader.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS plans (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	scenario    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	metric      TEXT NOT NULL,
	total_cost  DOUBLE PRECISION NOT NULL DEFAULT 0,
	sites       INTEGER NOT NULL DEFAULT 0,
	substations INTEGER NOT NULL DEFAULT 0,
	payload     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS plan_connections (
	plan_id         TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
	site_index      INTEGER NOT NULL,
	site_id         TEXT NOT NULL,
	site_name       TEXT NOT NULL,
	substation_id   TEXT NOT NULL,
	substation_name TEXT NOT NULL,
	cable           TEXT NOT NULL,
	capacity_mw     DOUBLE PRECISION NOT NULL,
	distance        DOUBLE PRECISION NOT NULL,
	cost            DOUBLE PRECISION NOT NULL,
	geom            BYTEA NOT NULL,
	PRIMARY KEY (plan_id, site_index)
);

CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_plan_connections_substation ON plan_connections(substation_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SavePlan upserts the plan row and replaces its connections using COPY.
func (s *PostgresStore) SavePlan(ctx context.Context, plan *model.Plan) error {
	if err := prepare(plan); err != nil {
		return err
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal plan")
	}
	conns, err := connectionRows(plan)
	if err != nil {
		return err
	}
	rows, err := copyRows(plan.ID, conns)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sum := plan.Summarize()
	_, err = tx.Exec(ctx,
		`INSERT INTO plans (id, created_at, scenario, status, metric, total_cost, sites, substations, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			scenario = EXCLUDED.scenario,
			status = EXCLUDED.status,
			metric = EXCLUDED.metric,
			total_cost = EXCLUDED.total_cost,
			sites = EXCLUDED.sites,
			substations = EXCLUDED.substations,
			payload = EXCLUDED.payload`,
		sum.ID, sum.CreatedAt, sum.Scenario, string(sum.Status), string(sum.Metric),
		sum.TotalCost, sum.Sites, sum.Substations, payload,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert plan %s", plan.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM plan_connections WHERE plan_id = $1`, plan.ID); err != nil {
		return eris.Wrapf(err, "postgres: clear connections %s", plan.ID)
	}

	if _, err := db.CopyFrom(ctx, tx, connectionTable, connectionColumns, rows, 0); err != nil {
		return eris.Wrapf(err, "postgres: copy connections %s", plan.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit plan")
	}
	return nil
}

// copyRows encodes connections for COPY, each with an EWKB line from the
// site to its substation.
func copyRows(planID string, conns []connectionRow) ([][]any, error) {
	rows := make([][]any, 0, len(conns))
	for _, c := range conns {
		line := geom.NewLineStringFlat(geom.XY, []float64{
			c.From.Lon, c.From.Lat, c.To.Lon, c.To.Lat,
		}).SetSRID(4326)
		wkb, err := ewkb.Marshal(line, ewkb.NDR)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: encode connection for site %s", c.SiteID)
		}
		rows = append(rows, []any{
			planID, c.SiteIndex, c.SiteID, c.SiteName, c.SubstationID, c.SubstationName,
			c.Cable, c.CapacityMW, c.Distance, c.Cost, wkb,
		})
	}
	return rows, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM plans WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get plan %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get plan %s", id)
	}

	var plan model.Plan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal plan")
	}
	return &plan, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, limit int) ([]model.PlanSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, scenario, status, metric, total_cost, sites, substations
		 FROM plans ORDER BY created_at DESC, id LIMIT $1`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list plans")
	}
	defer rows.Close()

	var out []model.PlanSummary
	for rows.Next() {
		var p model.PlanSummary
		var status, metric string
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.Scenario, &status, &metric,
			&p.TotalCost, &p.Sites, &p.Substations); err != nil {
			return nil, eris.Wrap(err, "postgres: scan plan")
		}
		p.Status = optimize.Status(status)
		p.Metric = geo.Metric(metric)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate plans")
}
