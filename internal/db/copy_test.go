package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "job_records", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"job_records"}, []string{"a", "b"}).WillReturnResult(3)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := CopyFrom(context.Background(), mock, "job_records", []string{"a", "b"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"job_records"}, []string{"a", "b"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "job_records", []string{"a", "b"}, [][]any{{1, "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO job_records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", PoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: parse config")
}

var _ Pool = pgxmock.PgxPoolIface(nil)
