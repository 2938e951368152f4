package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRows_Invalid(t *testing.T) {
	tests := []struct {
		name string
		m    merge
	}{
		{"no columns", merge{table: "runs", keys: []string{"id"}}},
		{"no keys", merge{table: "runs", columns: []string{"id"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mergeRows(context.Background(), nil, tt.m, [][]any{{"a"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "columns and keys are required")
		})
	}
}

func TestMergeRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_merge_runs" (LIKE "flo2d"."runs" INCLUDING DEFAULTS) ON COMMIT DROP`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_merge_runs"}, []string{"id", "kind"}).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("id") DO UPDATE SET "kind" = EXCLUDED."kind"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	n, err := mergeRows(ctx, tx, merge{schema: "flo2d", table: "runs", columns: []string{"id", "kind"}, keys: []string{"id"}},
		[][]any{{"a", "channel"}, {"b", "levee"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRows_Empty(t *testing.T) {
	n, err := mergeRows(context.Background(), nil, merge{table: "runs", columns: []string{"id"}, keys: []string{"id"}}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMergeUpdates(t *testing.T) {
	m := merge{columns: []string{"id", "kind", "ok"}, keys: []string{"id"}}
	assert.Equal(t, []string{"kind", "ok"}, m.updates())
	assert.Empty(t, merge{columns: []string{"id"}, keys: []string{"id"}}.updates())
}

func TestQuoteAll(t *testing.T) {
	assert.Equal(t, `"a", "b"`, quoteAll([]string{"a", "b"}))
}
