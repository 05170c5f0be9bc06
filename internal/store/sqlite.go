package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/gridlink/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS plans (
	id          TEXT PRIMARY KEY,
	created_at  DATETIME NOT NULL,
	scenario    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	metric      TEXT NOT NULL,
	total_cost  REAL NOT NULL DEFAULT 0,
	sites       INTEGER NOT NULL DEFAULT 0,
	substations INTEGER NOT NULL DEFAULT 0,
	payload     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plan_connections (
	plan_id         TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
	site_index      INTEGER NOT NULL,
	site_id         TEXT NOT NULL,
	site_name       TEXT NOT NULL,
	substation_id   TEXT NOT NULL,
	substation_name TEXT NOT NULL,
	cable           TEXT NOT NULL,
	capacity_mw     REAL NOT NULL,
	distance        REAL NOT NULL,
	cost            REAL NOT NULL,
	site_lat        REAL NOT NULL,
	site_lon        REAL NOT NULL,
	substation_lat  REAL NOT NULL,
	substation_lon  REAL NOT NULL,
	PRIMARY KEY (plan_id, site_index)
);

CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at);
CREATE INDEX IF NOT EXISTS idx_plan_connections_substation ON plan_connections(substation_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SavePlan writes the plan and its connections, replacing any earlier
// version with the same ID.
func (s *SQLiteStore) SavePlan(ctx context.Context, plan *model.Plan) error {
	if err := prepare(plan); err != nil {
		return err
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal plan")
	}
	conns, err := connectionRows(plan)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	sum := plan.Summarize()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO plans (id, created_at, scenario, status, metric, total_cost, sites, substations, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			scenario = excluded.scenario,
			status = excluded.status,
			metric = excluded.metric,
			total_cost = excluded.total_cost,
			sites = excluded.sites,
			substations = excluded.substations,
			payload = excluded.payload`,
		sum.ID, sum.CreatedAt, sum.Scenario, string(sum.Status), string(sum.Metric),
		sum.TotalCost, sum.Sites, sum.Substations, string(payload),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert plan %s", plan.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_connections WHERE plan_id = ?`, plan.ID); err != nil {
		return eris.Wrapf(err, "sqlite: clear connections %s", plan.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO plan_connections (plan_id, site_index, site_id, site_name, substation_id, substation_name,
			cable, capacity_mw, distance, cost, site_lat, site_lon, substation_lat, substation_lon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare connection insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range conns {
		_, err := stmt.ExecContext(ctx,
			plan.ID, c.SiteIndex, c.SiteID, c.SiteName, c.SubstationID, c.SubstationName,
			c.Cable, c.CapacityMW, c.Distance, c.Cost, c.From.Lat, c.From.Lon, c.To.Lat, c.To.Lon,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert connection for site %s", c.SiteID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit plan")
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM plans WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get plan %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get plan %s", id)
	}

	var plan model.Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal plan")
	}
	return &plan, nil
}

func (s *SQLiteStore) ListPlans(ctx context.Context, limit int) ([]model.PlanSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, scenario, status, metric, total_cost, sites, substations
		 FROM plans ORDER BY created_at DESC, id LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list plans")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PlanSummary
	for rows.Next() {
		var p model.PlanSummary
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.Scenario, &p.Status, &p.Metric,
			&p.TotalCost, &p.Sites, &p.Substations); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan plan")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate plans")
}
