package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
)

// Adapter is a dialect.Adapter executing compiled statements on a
// dialect.Driver. Statements that return rows are scanned into records,
// others report the number of affected rows.
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	adapter := sql.NewAdapter(drv, sql.WithInterceptors(sql.Logging(nil)))
//	res, err := q.Execute(ctx, adapter)
type Adapter struct {
	drv          dialect.Driver
	conn         dialect.ExecQuerier
	tx           dialect.Tx
	debug        bool
	interceptors []dialect.Interceptor
	exec         dialect.Executor
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDebug echoes every executed statement in Result.Debug.
func WithDebug() AdapterOption {
	return func(a *Adapter) {
		a.debug = true
	}
}

// WithInterceptors wraps every statement execution with the given
// interceptors. The first one is the outermost.
func WithInterceptors(interceptors ...dialect.Interceptor) AdapterOption {
	return func(a *Adapter) {
		a.interceptors = append(a.interceptors, interceptors...)
	}
}

// NewAdapter returns an Adapter over drv.
func NewAdapter(drv dialect.Driver, opts ...AdapterOption) *Adapter {
	a := &Adapter{drv: drv, conn: drv}
	for _, opt := range opts {
		opt(a)
	}
	a.exec = dialect.Chain(dialect.ExecuteFunc(a.execute), a.interceptors...)
	return a
}

// Dialect returns the dialect of the underlying driver.
func (a *Adapter) Dialect() string {
	return a.drv.Dialect()
}

// Execute executes a single statement.
func (a *Adapter) Execute(ctx context.Context, query string, args []any) (*dialect.Result, error) {
	return a.exec.Execute(ctx, query, args)
}

func (a *Adapter) execute(ctx context.Context, query string, args []any) (*dialect.Result, error) {
	res := &dialect.Result{}
	if a.debug {
		res.Debug = &dialect.Debug{Query: query, Params: args}
	}
	if args == nil {
		args = []any{}
	}
	if !returnsRows(query) {
		n, err := a.conn.Exec(ctx, query, args)
		if err != nil {
			return nil, err
		}
		res.RowCount = n
		return res, nil
	}
	records, err := a.conn.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	res.Rows = records
	res.RowCount = int64(len(records))
	return res, nil
}

// ExecuteMany executes the statement once per argument set. Unless the
// adapter is already bound to a transaction, all executions run in a new
// one. The results are merged.
func (a *Adapter) ExecuteMany(ctx context.Context, query string, argSets [][]any) (*dialect.Result, error) {
	if a.tx == nil {
		var res *dialect.Result
		err := a.Transaction(ctx, func(ctx context.Context, tx dialect.Adapter) error {
			var err error
			res, err = tx.ExecuteMany(ctx, query, argSets)
			return err
		})
		return res, err
	}
	merged := &dialect.Result{}
	for _, args := range argSets {
		res, err := a.Execute(ctx, query, args)
		if err != nil {
			return nil, err
		}
		merged.Rows = append(merged.Rows, res.Rows...)
		merged.RowCount += res.RowCount
		merged.Debug = res.Debug
	}
	return merged, nil
}

// BeginTx starts a transaction. The returned adapter shares the
// interceptors of a.
func (a *Adapter) BeginTx(ctx context.Context) (dialect.TxAdapter, error) {
	if a.tx != nil {
		return nil, errors.New("dialect/sql: nested transactions are not supported")
	}
	tx, err := a.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin transaction: %w", err)
	}
	t := &TxAdapter{Adapter: &Adapter{
		drv:          a.drv,
		conn:         tx,
		tx:           tx,
		debug:        a.debug,
		interceptors: a.interceptors,
	}}
	t.exec = dialect.Chain(dialect.ExecuteFunc(t.execute), t.interceptors...)
	return t, nil
}

// Transaction runs fn in a transaction. It commits if fn returns nil and
// rolls back otherwise. A failed rollback is reported as a
// *veloq.RollbackError joined with the error of fn. Inside a transaction,
// fn runs on a itself.
func (a *Adapter) Transaction(ctx context.Context, fn func(context.Context, dialect.Adapter) error) (err error) {
	if a.tx != nil {
		return fn(ctx, a)
	}
	tx, err := a.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, &veloq.RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dialect/sql: commit transaction: %w", err)
	}
	return nil
}

// TxAdapter is an Adapter bound to a transaction.
type TxAdapter struct {
	*Adapter
}

// Commit commits the transaction.
func (t *TxAdapter) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *TxAdapter) Rollback() error { return t.tx.Rollback() }

var (
	_ dialect.Adapter   = (*Adapter)(nil)
	_ dialect.TxAdapter = (*TxAdapter)(nil)
)

// rowKeywords are the leading keywords of statements returning rows.
var rowKeywords = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "VALUES": {}, "PRAGMA": {}, "SHOW": {}, "EXPLAIN": {}, "DESCRIBE": {},
}

// returnsRows reports whether the statement returns a result set.
func returnsRows(query string) bool {
	fields := strings.Fields(strings.TrimLeft(query, "( \t\n"))
	if len(fields) == 0 {
		return false
	}
	if _, ok := rowKeywords[strings.ToUpper(fields[0])]; ok {
		return true
	}
	for _, f := range fields[1:] {
		if strings.EqualFold(f, "RETURNING") {
			return true
		}
	}
	return false
}
