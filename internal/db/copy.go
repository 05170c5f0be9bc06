package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// DefaultBatchSize bounds the rows sent in a single COPY.
const DefaultBatchSize = 50000

// CopyFrom bulk-inserts rows into table (optionally schema-qualified) with the
// COPY protocol, batchSize rows at a time (0 = DefaultBatchSize).
func CopyFrom(ctx context.Context, c Copier, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ident := Identifier(table)
	var total int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		n, err := c.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows[start:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s (rows %d-%d)", table, start, end)
		}
		total += n
	}
	return total, nil
}

// Identifier splits "schema.table" into a pgx.Identifier.
func Identifier(table string) pgx.Identifier {
	for i := 0; i < len(table); i++ {
		if table[i] == '.' {
			return pgx.Identifier{table[:i], table[i+1:]}
		}
	}
	return pgx.Identifier{table}
}
