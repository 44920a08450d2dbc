package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql/vector"
)

func TestQueryExecute(t *testing.T) {
	t.Run("single_call", func(t *testing.T) {
		var (
			calls int
			query string
			args  []any
		)
		want := &dialect.Result{RowCount: 4}
		exec := dialect.ExecuteFunc(func(_ context.Context, q string, a []any) (*dialect.Result, error) {
			calls++
			query, args = q, a
			return want, nil
		})
		res, err := Update("users", Set("active", false)).Where("id", "=", 7).Execute(context.Background(), exec)
		require.NoError(t, err)
		assert.Same(t, want, res)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "UPDATE users SET active = $1 WHERE id = $2", query)
		assert.Equal(t, []any{false, 7}, args)
	})

	t.Run("adapter_error_unchanged", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		exec := dialect.ExecuteFunc(func(context.Context, string, []any) (*dialect.Result, error) {
			return nil, dbErr
		})
		_, err := Select().From("users").Execute(context.Background(), exec)
		assert.Same(t, dbErr, err)
		assert.False(t, veloq.IsConfigError(err))
	})

	t.Run("config_error_skips_adapter", func(t *testing.T) {
		exec := dialect.ExecuteFunc(func(context.Context, string, []any) (*dialect.Result, error) {
			t.Fatal("adapter must not be called")
			return nil, nil
		})
		_, err := Select().From("users").Limit(-1).Execute(context.Background(), exec)
		require.ErrorIs(t, err, veloq.ErrNegativeLimit)
		assert.True(t, veloq.IsConfigError(err))
	})
}

func TestGolden(t *testing.T) {
	reg := newTestRegistry(t, vector.NamePGVector)
	pg := Dialect(dialect.Postgres, WithVectorRegistry(reg))
	tests := []struct {
		name  string
		query *Query
	}{
		{"select_users", pg.Select("id", "name").From("users").Where("age", ">", 18).Limit(10)},
		{"insert_mysql", Dialect(dialect.MySQL).Insert("users", Set("name", "Bob"), Set("age", 30))},
		{"knn_pgvector", pg.Select("id").From("documents").KNNSearch("embedding", embedding, 5)},
		{"hybrid_pgvector", pg.Select("id").From("docs").
			KNNSearch("embedding", embedding, 10).
			TextSearch([]string{"body"}, "go").
			HybridRanking(Weights{SignalVector: 0.7, SignalText: 0.3})},
		{"knn_sqlite_vec0", Dialect(dialect.SQLite, WithVectorRegistry(reg)).
			Select("rowid", "distance").From("vec_items").
			KNNSearch("embedding", embedding, 3).
			UseVectorDB(vector.NameSQLiteVec0)},
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.query.ToSQL()
			require.NoError(t, err)
			params, err := json.Marshal(s.Params)
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(fmt.Sprintf("%s\n%s\n", s.Query, params)))
		})
	}
}

func TestConcurrentCompile(t *testing.T) {
	reg := newTestRegistry(t, vector.NamePGVector)
	d := Dialect(dialect.Postgres, WithVectorRegistry(reg))
	var g errgroup.Group
	results := make([]Statement, 64)
	for i := range results {
		g.Go(func() error {
			q := d.Select("id").From("documents").Where("tenant", "=", i)
			if i%2 == 0 {
				q.UseVectorDB(vector.NameDuckDB)
			}
			s, err := q.KNNSearch("embedding", embedding, 5).ToSQL()
			results[i] = s
			return err
		})
	}
	require.NoError(t, g.Wait())
	for i, s := range results {
		if i%2 == 0 {
			assert.Equal(t, "SELECT id FROM documents WHERE tenant = $1 ORDER BY array_cosine_distance(embedding, [0.1,0.2,0.3]::FLOAT[3]) ASC LIMIT 5", s.Query)
			assert.Equal(t, []any{i}, s.Params)
		} else {
			assert.Equal(t, "SELECT id FROM documents WHERE tenant = $1 ORDER BY embedding <=> $2::vector ASC LIMIT 5", s.Query)
			assert.Equal(t, []any{i, embeddingText}, s.Params)
		}
	}
	assert.Equal(t, vector.NamePGVector, reg.Active())
}

func TestExecuteSQLite(t *testing.T) {
	drv, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection of an in-memory database sees its own database.
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	require.Equal(t, dialect.SQLite, drv.Dialect())

	ctx := context.Background()
	a := NewAdapter(drv, WithDebug())
	_, err = a.Execute(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER, deleted_at TEXT)", nil)
	require.NoError(t, err)

	d := Dialect(drv.Dialect())
	res, err := d.Insert("users", Set("name", "Alice"), Set("age", 30)).Returning("id").Execute(ctx, a)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, map[string]any{"id": int64(1)}, res.Rows[0].Map())
	assert.Equal(t, "INSERT INTO users (name, age) VALUES (?, ?) RETURNING id", res.Debug.Query)

	insert := d.Insert("users", Set("name", nil), Set("age", nil)).MustSQL()
	res, err = a.ExecuteMany(ctx, insert.Query, [][]any{{"Bob", 17}, {"Carol", 45}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowCount)

	names := func(q *Query) []any {
		t.Helper()
		res, err := q.Execute(ctx, a)
		require.NoError(t, err)
		out := make([]any, 0, len(res.Rows))
		for _, r := range res.Rows {
			v, ok := r.Get("name")
			require.True(t, ok)
			out = append(out, v)
		}
		return out
	}
	assert.Equal(t, []any{"Alice", "Carol"}, names(d.Select("name").From("users").Where("age", ">", 18).OrderBy("name")))
	assert.Equal(t, []any{"Carol"}, names(d.Select("name").From("users").OrderBy("name").Offset(2)))
	assert.Equal(t, []any{"Alice"}, names(d.Select("name").From("users").WhereCond(ContainsFold("name", "LIC"))))
	assert.Empty(t, names(d.Select("name").From("users").WhereCond(Contains("name", "_"))))
	assert.Empty(t, names(d.Select("name").From("users").WhereIn("id")))
	assert.Equal(t, []any{"Bob", "Carol"}, names(d.Select("name").From("users").WhereIn("id", 2, 3).OrderBy("id")))

	res, err = d.Update("users", Set("deleted_at", "2024-01-01")).Where("age", "<", 18).Execute(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, []any{"Alice", "Carol"}, names(d.Select("name").From("users").Where("deleted_at", "=", nil).OrderBy("name")))

	err = a.Transaction(ctx, func(ctx context.Context, tx dialect.Adapter) error {
		if _, err := d.Delete("users").Execute(ctx, tx); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	res, err = d.Select("COUNT(*) AS n").From("users").Execute(ctx, a)
	require.NoError(t, err)
	v, _ := res.Rows[0].Get("n")
	assert.Equal(t, int64(3), v)

	res, err = d.Delete("users").Where("deleted_at", "!=", nil).Returning("name").Execute(ctx, a)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []any{"Bob"}, res.Rows[0].Values)
}
