package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Copier is implemented by pools, connections and transactions.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyFrom bulk-inserts rows into a table using the COPY protocol.
func CopyFrom(ctx context.Context, conn Copier, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := conn.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}
