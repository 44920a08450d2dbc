// Package sql provides the query descriptor of veloq, its compiler to
// parameterized SQL, and a database/sql based adapter.
//
// A Query accumulates clauses through chainable methods and compiles them
// with ToSQL into a Statement: the SQL text and its parameters, in
// placeholder order. Values never appear in the SQL text.
//
// # Dialect Support
//
// Placeholders follow the dialect, "$1" for PostgreSQL and "?" for MySQL
// and SQLite:
//
//	import "github.com/syssam/veloq/dialect"
//
//	// PostgreSQL
//	s, err := sql.Select("id", "name").From("users").Where("age", ">", 18).Limit(10).ToSQL()
//	// SELECT id, name FROM users WHERE age > $1 LIMIT 10 [18]
//
//	// MySQL
//	b := sql.Dialect(dialect.MySQL)
//	s, err = b.Insert("users", sql.Set("name", "Bob"), sql.Set("age", 30)).ToSQL()
//	// INSERT INTO users (name, age) VALUES (?, ?) [Bob 30]
//
// # Predicates
//
// Where accepts an operator string, WhereCond a condition built by the
// predicate functions or by typed fields:
//
//	sql.EQ("name", "john")           // name = $1
//	sql.Contains("name", "john")     // name LIKE $1, with "%john%"
//	sql.IsNull("deleted_at")         // deleted_at IS NULL
//	sql.In("status", "a", "b")       // status IN ($1, $2)
//
//	var Age = sql.Int("age")
//	q.WhereCond(Age.GTE(18))
//
// # Subqueries
//
// A *Query may be used as a FROM source, a join target or the right side of
// IN. Its placeholders are renumbered to continue the outer sequence:
//
//	active := sql.Select("user_id").From("sessions").Where("active", "=", true)
//	sql.Select("*").From("users").Where("age", ">", 18).WhereInQuery("id", active)
//	// SELECT * FROM users WHERE age > $1 AND id IN (SELECT user_id FROM sessions WHERE active = $2)
//
// # Vector Search
//
// KNNSearch, SimilaritySearch, TextSearch and HybridRanking render through
// the vector dialect resolved from the registry passed with
// WithVectorRegistry:
//
//	reg := vector.NewRegistry(vector.WithBuiltins(), vector.WithActive(vector.NamePGVector))
//	q := sql.New(sql.WithVectorRegistry(reg)).
//	    Select("id").
//	    From("documents").
//	    KNNSearch("embedding", []float32{0.1, 0.2}, 5)
//	// SELECT id FROM documents ORDER BY embedding <=> $1::vector ASC LIMIT 5
//
// # Execution
//
// Execute compiles the query and hands it to a dialect.Executor once:
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	adapter := sql.NewAdapter(drv, sql.WithInterceptors(sql.Logging(logger)))
//	res, err := q.Execute(ctx, adapter)
package sql
