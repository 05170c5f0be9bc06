package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/gridlink/internal/optimize"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS plans`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnError(errors.New("connection refused"))

	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: ping")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePlan(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO plans`).
		WithArgs("plan-1", created, "base", "optimal", "planar", 460122.14, 2, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM plan_connections WHERE plan_id = \$1`).
		WithArgs("plan-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"plan_connections"}, connectionColumns).
		WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, s.SavePlan(context.Background(), samplePlan("plan-1", created)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePlan_CopyErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO plans`).WithArgs(anyArgs(9)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM plan_connections`).WithArgs("plan-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"plan_connections"}, connectionColumns).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SavePlan(context.Background(), samplePlan("plan-1", time.Now().UTC()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy connections plan-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePlan_InsertError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO plans`).WithArgs(anyArgs(9)...).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := s.SavePlan(context.Background(), samplePlan("plan-1", time.Now().UTC()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert plan plan-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPlan(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM plans WHERE id = \$1`).
		WithArgs("plan-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).
			AddRow([]byte(`{"id":"plan-1","network":{"scenario":"base","metric":"haversine"},"solution":{"status":"feasible","total_cost":42}}`)))

	plan, err := s.GetPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.ID)
	assert.Equal(t, "base", plan.Network.Scenario)
	assert.Equal(t, optimize.StatusFeasible, plan.Status())
	assert.InDelta(t, 42.0, plan.TotalCost(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPlan_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM plans WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPlan(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPlans(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, created_at, scenario, status, metric, total_cost, sites, substations\s+FROM plans`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "created_at", "scenario", "status", "metric", "total_cost", "sites", "substations",
		}).
			AddRow("b", now, "", "feasible", "haversine", 10.5, 3, 2).
			AddRow("a", now.Add(-time.Hour), "base", "optimal", "planar", 7.25, 1, 1))

	list, err := s.ListPlans(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, optimize.StatusFeasible, list[0].Status)
	assert.Equal(t, "haversine", string(list[0].Metric))
	assert.Equal(t, 3, list[0].Sites)
	assert.Equal(t, "base", list[1].Scenario)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPlans_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM plans`).WithArgs(5).WillReturnError(errors.New("timeout"))

	_, err := s.ListPlans(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list plans")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyRows_EncodesLine(t *testing.T) {
	conns, err := connectionRows(samplePlan("plan-1", time.Now()))
	require.NoError(t, err)

	rows, err := copyRows("plan-1", conns)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(connectionColumns))
	assert.Equal(t, "plan-1", rows[0][0])
	assert.Equal(t, "small", rows[0][6])

	wkb, ok := rows[0][10].([]byte)
	require.True(t, ok)
	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)
	line, ok := g.(*geom.LineString)
	require.True(t, ok)
	assert.Equal(t, 4326, line.SRID())
	assert.Equal(t, []float64{-77.5, 40.5, -77.4, 40.6}, line.FlatCoords())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
