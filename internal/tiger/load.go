package tiger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/db"
)

// SubdivisionTable is the Postgres table subdivisions are loaded into.
const SubdivisionTable = "gridlink.subdivisions"

var subdivisionColumns = []string{
	"geoid", "statefp", "countyfp", "cousubfp", "name", "namelsad",
	"aland", "awater", "year", "the_geom",
}

// EnsureSchema creates the subdivision table and its spatial index.
func EnsureSchema(ctx context.Context, pool db.Pool) error {
	table := db.Identifier(SubdivisionTable).Sanitize()
	stmts := []string{
		"CREATE SCHEMA IF NOT EXISTS gridlink",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			geoid TEXT PRIMARY KEY,
			statefp TEXT NOT NULL,
			countyfp TEXT NOT NULL,
			cousubfp TEXT NOT NULL,
			name TEXT NOT NULL,
			namelsad TEXT,
			aland BIGINT,
			awater BIGINT,
			year INTEGER NOT NULL,
			the_geom BYTEA NOT NULL
		)`, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (statefp, countyfp)",
			pgx.Identifier{"idx_subdivisions_county"}.Sanitize(), table),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "tiger: ensure schema")
		}
	}
	return nil
}

// Load upserts subdivisions keyed by GEOID and returns the affected row count.
func Load(ctx context.Context, pool db.Pool, subs []Subdivision, year int) (int64, error) {
	log := zap.L().With(
		zap.String("component", "tiger.load"),
		zap.Int("year", year),
	)

	rows := make([][]any, 0, len(subs))
	for _, s := range subs {
		if s.GEOID == "" || s.Geometry == nil {
			continue
		}
		wkb, err := EncodeGeometry(s.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "tiger: encode %s", s.GEOID)
		}
		if wkb == nil {
			continue
		}
		rows = append(rows, []any{
			s.GEOID, s.StateFP, s.CountyFP, s.CousubFP, s.Name, s.NameLSAD,
			s.ALand, s.AWater, year, wkb,
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        SubdivisionTable,
		Columns:      subdivisionColumns,
		ConflictKeys: []string{"geoid"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "tiger: load subdivisions")
	}
	log.Info("subdivisions loaded", zap.Int64("rows", n), zap.Int("skipped", len(subs)-len(rows)))
	return n, nil
}
