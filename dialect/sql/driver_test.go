package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/syssam/veloq/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverDialect(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{dialect.Postgres, dialect.Postgres},
		{"pgx", dialect.Postgres},
		{dialect.MySQL, dialect.MySQL},
		{dialect.SQLite, dialect.SQLite},
		{"sqlite3", dialect.SQLite},
		{"duckdb", "duckdb"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.driver, db)
			assert.Equal(t, tt.want, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()

	t.Run("records", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name FROM users WHERE age > \\$1").
			WithArgs(18).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), []byte("Alice")).AddRow(int64(2), nil))

		records, err := drv.Query(ctx, "SELECT id, name FROM users WHERE age > $1", []any{18})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, []string{"id", "name"}, records[0].Columns)
		assert.Equal(t, []any{int64(1), "Alice"}, records[0].Values)
		assert.Equal(t, []any{int64(2), nil}, records[1].Values)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		records, err := drv.Query(ctx, "SELECT id FROM users", nil)
		require.NoError(t, err)
		assert.Empty(t, records)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		dbErr := errors.New("database error")
		mock.ExpectQuery("SELECT").WillReturnError(dbErr)

		_, err := drv.Query(ctx, "SELECT", []any{})
		require.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "dialect/sql: query: database error")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row_error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).RowError(0, errors.New("broken row")))

		_, err := drv.Query(ctx, "SELECT id FROM users", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken row")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()

	t.Run("rows_affected", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET name = \\$1 WHERE id = \\$2").
			WithArgs("Alice", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := drv.Exec(ctx, "UPDATE users SET name = $1 WHERE id = $2", []any{"Alice", 1})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_error", func(t *testing.T) {
		mock.ExpectExec("DELETE").WillReturnError(errors.New("constraint violation"))

		_, err := drv.Exec(ctx, "DELETE FROM users", []any{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: exec: constraint violation")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rows_affected_error", func(t *testing.T) {
		mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewErrorResult(errors.New("unsupported")))

		_, err := drv.Exec(ctx, "DELETE FROM users", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: rows affected")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLite, db)
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		n, err := tx.Exec(ctx, "INSERT INTO users (name) VALUES (?)", []any{"a"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		_, err = tx.Exec(ctx, "INSERT INTO users (name) VALUES (?)", []any{"a"})
		require.Error(t, err)
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin_error", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("no connection"))

		_, err := drv.Tx(ctx)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestIsValidIdentifier tests SQL identifier validation.
func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid_simple", "foo", true},
		{"valid_with_underscore", "foo_bar", true},
		{"valid_with_dot", "schema.table", true},
		{"valid_starting_underscore", "_private", true},
		{"invalid_empty", "", false},
		{"invalid_starting_number", "123foo", false},
		{"invalid_with_space", "foo bar", false},
		{"invalid_with_quote", "foo'bar", false},
		{"invalid_with_semicolon", "foo;DROP TABLE", false},
		{"invalid_too_long", string(make([]byte, 129)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isValidIdentifier(tt.input))
		})
	}
}
