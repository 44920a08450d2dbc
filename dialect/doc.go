// Package dialect holds the contract between compiled queries and the
// databases that run them.
//
// Queries built by dialect/sql compile to a statement and its parameters,
// and never execute anything themselves. Execution goes through an
// Executor, usually an Adapter provided by the application:
//
//	res, err := q.Execute(ctx, adapter)
//	for _, r := range res.Rows {
//	    name, _ := r.Get("name")
//	    ...
//	}
//
// The Result of a call is returned as the adapter produced it. Rows keep
// the server order, and RowCount is the number of rows returned or, for
// statements without a result set, the number of rows affected.
//
// # Dialects
//
// The placeholder style of a statement follows its dialect: "$1, $2, ..."
// for Postgres, and "?" for MySQL and SQLite.
//
// # Interceptors
//
// Logging, statistics, and rate limiting are applied by wrapping an
// Executor. Chain composes them, the first interceptor being the outermost:
//
//	exec := dialect.Chain(adapter, logging, stats)
//
// # Drivers
//
// Driver and Tx are the low-level connection types an Adapter is built on.
// dialect/sql implements them over database/sql.
package dialect
