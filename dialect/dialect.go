package dialect

import (
	"context"
	"fmt"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier runs statements on a database connection.
type ExecQuerier interface {
	// Exec executes a statement that returns no records, such as an UPDATE,
	// and reports the number of affected rows.
	Exec(ctx context.Context, query string, args []any) (int64, error)
	// Query executes a statement that returns records, such as a SELECT or
	// a statement with a RETURNING clause.
	Query(ctx context.Context, query string, args []any) ([]Record, error)
}

// Driver is the interface that wraps all necessary operations for database connections.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Executor executes a compiled statement. It is the single boundary between
// query compilation and the outside world.
type Executor interface {
	Execute(ctx context.Context, query string, args []any) (*Result, error)
}

// The ExecuteFunc type is an adapter to allow the use of ordinary functions as Executor.
type ExecuteFunc func(ctx context.Context, query string, args []any) (*Result, error)

// Execute calls f(ctx, query, args).
func (f ExecuteFunc) Execute(ctx context.Context, query string, args []any) (*Result, error) {
	return f(ctx, query, args)
}

// Interceptor wraps an Executor with cross-cutting behavior, such as logging
// or statistics, invoked around every adapter call.
type Interceptor interface {
	Intercept(Executor) Executor
}

// The InterceptFunc type is an adapter to allow the use of ordinary functions as Interceptor.
type InterceptFunc func(Executor) Executor

// Intercept calls f(next).
func (f InterceptFunc) Intercept(next Executor) Executor {
	return f(next)
}

// Chain wraps exec with the given interceptors. The first interceptor is the
// outermost one, and is the first to observe a call.
func Chain(exec Executor, interceptors ...Interceptor) Executor {
	for i := len(interceptors) - 1; i >= 0; i-- {
		exec = interceptors[i].Intercept(exec)
	}
	return exec
}

// Adapter is the database adapter contract consumed by query execution.
// Only Execute is used by the query layer, the rest serves collaborators
// such as batch writers.
type Adapter interface {
	Executor
	// ExecuteMany executes the query once per argument set.
	ExecuteMany(ctx context.Context, query string, argSets [][]any) (*Result, error)
	// BeginTx starts a transaction.
	BeginTx(ctx context.Context) (TxAdapter, error)
	// Transaction runs fn inside a transaction, committing if fn returns nil
	// and rolling back otherwise.
	Transaction(ctx context.Context, fn func(context.Context, Adapter) error) error
}

// TxAdapter is an Adapter bound to a transaction.
type TxAdapter interface {
	Adapter
	Commit() error
	Rollback() error
}

// Result is the structured response of an adapter call.
type Result struct {
	// Rows holds the returned records in server order.
	Rows []Record
	// RowCount is the number of returned rows, or the number of rows
	// affected for statements that return none.
	RowCount int64
	// Debug echoes the executed statement when the adapter runs in debug mode.
	Debug *Debug
}

// Debug is the compiled statement as it was sent to the database.
type Debug struct {
	Query  string
	Params []any
}

// Record is a single returned row. Columns and Values are index aligned.
type Record struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Record) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the record as a column-keyed map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// String implements the fmt.Stringer interface.
func (r Record) String() string {
	return fmt.Sprint(r.Map())
}
