package sql

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql/vector"
	"github.com/syssam/veloq/schema"
)

// Kind is the statement kind of a query.
type Kind int

// Query kinds.
const (
	KindUnset Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNSET"
	}
}

// OrderDirection is the direction of an ORDER BY term.
type OrderDirection string

// Order directions.
const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// Clause identifies where a raw fragment is spliced.
type Clause int

const (
	// ClauseEnd appends the fragment at the end of the statement, before RETURNING.
	ClauseEnd Clause = iota
	// ClauseSelect writes the fragment right after the SELECT keyword.
	ClauseSelect
	// ClauseFrom writes the fragment after the FROM target and its joins.
	ClauseFrom
	// ClauseWhere appends the fragment as an AND-ed predicate.
	ClauseWhere
	// ClauseOrderBy appends the fragment as the last ORDER BY term.
	ClauseOrderBy
)

// Assignment is a column and the value assigned to it by INSERT or UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// Set returns the assignment of v to column.
func Set(column string, v any) Assignment {
	return Assignment{Column: column, Value: v}
}

type (
	// tableRef is a table or subquery with an optional alias.
	tableRef struct {
		name  string
		alias string
		sub   *Query
	}
	join struct {
		kind  string
		table tableRef
		on    string
	}
	predicate struct {
		or   bool
		cond Cond
	}
	having struct {
		expr string
		args []any
	}
	order struct {
		expr string
		dir  OrderDirection
	}
	fragment struct {
		clause Clause
		text   string
	}
)

// config holds the settings shared by the queries of a DialectBuilder.
type config struct {
	dialect  string
	registry *vector.Registry
	schema   *schema.Schema
}

// Option configures the queries created by Dialect and New.
type Option func(*config)

// WithDialect sets the SQL dialect. The default is dialect.Postgres.
func WithDialect(name string) Option {
	return func(c *config) {
		c.dialect = name
	}
}

// WithVectorRegistry sets the registry resolving vector dialects.
func WithVectorRegistry(r *vector.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithSchema enables validation of tables and columns against s.
func WithSchema(s *schema.Schema) Option {
	return func(c *config) {
		c.schema = s
	}
}

func newConfig(opts []Option) config {
	c := config{dialect: dialect.Postgres}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// DialectBuilder creates queries sharing a dialect, a vector registry and
// an optional schema.
type DialectBuilder struct {
	config
}

// Dialect returns a DialectBuilder for the given dialect.
//
//	b := sql.Dialect(dialect.MySQL, sql.WithVectorRegistry(reg))
//	q := b.Select("id", "name").From("users")
func Dialect(name string, opts ...Option) *DialectBuilder {
	c := newConfig(opts)
	c.dialect = name
	return &DialectBuilder{config: c}
}

// Query returns a new query with no kind.
func (d *DialectBuilder) Query() *Query {
	return &Query{config: d.config}
}

// Select returns a new SELECT query.
func (d *DialectBuilder) Select(columns ...string) *Query {
	return d.Query().Select(columns...)
}

// Insert returns a new INSERT query.
func (d *DialectBuilder) Insert(table string, payload ...Assignment) *Query {
	return d.Query().Insert(table, payload...)
}

// Update returns a new UPDATE query.
func (d *DialectBuilder) Update(table string, payload ...Assignment) *Query {
	return d.Query().Update(table, payload...)
}

// Delete returns a new DELETE query.
func (d *DialectBuilder) Delete(table string) *Query {
	return d.Query().Delete(table)
}

// New returns a new query with no kind. The dialect defaults to PostgreSQL.
func New(opts ...Option) *Query {
	return &Query{config: newConfig(opts)}
}

// Select returns a new PostgreSQL SELECT query.
func Select(columns ...string) *Query { return New().Select(columns...) }

// Insert returns a new PostgreSQL INSERT query.
func Insert(table string, payload ...Assignment) *Query { return New().Insert(table, payload...) }

// Update returns a new PostgreSQL UPDATE query.
func Update(table string, payload ...Assignment) *Query { return New().Update(table, payload...) }

// Delete returns a new PostgreSQL DELETE query.
func Delete(table string) *Query { return New().Delete(table) }

// Query accumulates the clauses of a single statement. It is mutated only
// through its chainable methods and compiled by ToSQL or Execute. Errors
// raised while chaining are recorded and returned at compile time. A Query
// must not be mutated once compiled, and is not safe for concurrent use.
type Query struct {
	config
	kind      Kind
	table     tableRef
	columns   []string
	joins     []join
	preds     []predicate
	groupBy   []string
	having    []having
	orderBy   []order
	limit     *int
	offset    *int
	payload   []Assignment
	vectorOps []*vectorOp
	raw       []fragment
	returning []string
	vectorDB  string
	compiled  bool
	errs      []error
}

// Kind returns the query kind.
func (q *Query) Kind() Kind { return q.kind }

// Dialect returns the SQL dialect of the query.
func (q *Query) Dialect() string { return q.dialect }

// VectorDB returns the per-query vector dialect override, or "".
func (q *Query) VectorDB() string { return q.vectorDB }

// Err returns the errors recorded while building the query.
func (q *Query) Err() error {
	return veloq.NewAggregateError(q.errs...)
}

// AddError records a configuration error raised by op.
func (q *Query) AddError(op string, err error) *Query {
	if err == nil {
		return q
	}
	if !veloq.IsConfigError(err) {
		err = veloq.NewConfigError(op, err)
	}
	q.errs = append(q.errs, err)
	return q
}

// mutable reports whether the query may still be changed, and records an
// error if it was already compiled.
func (q *Query) mutable(op string) bool {
	if q.compiled {
		q.AddError(op, veloq.ErrCompiled)
		return false
	}
	return true
}

func (q *Query) setKind(op string, k Kind) bool {
	if !q.mutable(op) {
		return false
	}
	if q.kind != KindUnset {
		q.AddError(op, veloq.ConfigErrorf(op, veloq.ErrKindFixed, "query is %s", q.kind))
		return false
	}
	q.kind = k
	return true
}

// Select sets the query kind to SELECT with the given output expressions.
// No columns selects "*".
func (q *Query) Select(columns ...string) *Query {
	if q.setKind("Select", KindSelect) {
		q.columns = append(q.columns, columns...)
	}
	return q
}

// Insert sets the query kind to INSERT. The payload order fixes both the
// column list and the parameter order.
func (q *Query) Insert(table string, payload ...Assignment) *Query {
	if q.setKind("Insert", KindInsert) {
		q.setTable("Insert", table, "")
		q.setPayload("Insert", payload)
	}
	return q
}

// Update sets the query kind to UPDATE. The SET values occupy the first
// parameter slots, in payload order, followed by the WHERE values.
func (q *Query) Update(table string, payload ...Assignment) *Query {
	if q.setKind("Update", KindUpdate) {
		q.setTable("Update", table, "")
		q.setPayload("Update", payload)
	}
	return q
}

// Delete sets the query kind to DELETE.
func (q *Query) Delete(table string) *Query {
	if q.setKind("Delete", KindDelete) {
		q.setTable("Delete", table, "")
	}
	return q
}

func (q *Query) setPayload(op string, payload []Assignment) {
	for _, a := range payload {
		if !isValidIdentifier(a.Column) {
			q.AddError(op, veloq.ConfigErrorf(op, veloq.ErrInvalidIdentifier, "column %q", a.Column))
			return
		}
	}
	q.payload = append(q.payload, payload...)
}

// parseTable splits "name alias" and "name AS alias" forms.
func parseTable(s string) (name, alias string) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 2:
		return fields[0], fields[1]
	case len(fields) == 3 && strings.EqualFold(fields[1], "AS"):
		return fields[0], fields[2]
	default:
		return strings.TrimSpace(s), ""
	}
}

func (q *Query) tableRef(op, table, alias string) (tableRef, bool) {
	name, a := parseTable(table)
	if alias == "" {
		alias = a
	}
	if !isValidIdentifier(name) {
		q.AddError(op, veloq.ConfigErrorf(op, veloq.ErrInvalidIdentifier, "table %q", table))
		return tableRef{}, false
	}
	if alias != "" && !isValidIdentifier(alias) {
		q.AddError(op, veloq.ConfigErrorf(op, veloq.ErrInvalidIdentifier, "alias %q", alias))
		return tableRef{}, false
	}
	return tableRef{name: name, alias: alias}, true
}

func (q *Query) setTable(op, table, alias string) {
	if t, ok := q.tableRef(op, table, alias); ok {
		q.table = t
	}
}

// From sets the target table, with an optional alias. The alias may also be
// given inline, as in "users u".
func (q *Query) From(table string, alias ...string) *Query {
	if q.mutable("From") {
		q.setTable("From", table, strings.Join(alias, ""))
	}
	return q
}

// FromQuery sets a subquery as the target, under the given alias.
func (q *Query) FromQuery(sub *Query, alias string) *Query {
	if !q.mutable("FromQuery") {
		return q
	}
	if sub == nil {
		return q.AddError("FromQuery", veloq.NewConfigError("FromQuery", veloq.ErrNilSubquery))
	}
	if !isValidIdentifier(alias) {
		return q.AddError("FromQuery", veloq.ConfigErrorf("FromQuery", veloq.ErrInvalidIdentifier, "alias %q", alias))
	}
	q.table = tableRef{sub: sub, alias: alias}
	return q
}

func (q *Query) addJoin(op, kind, table, on string) *Query {
	if !q.mutable(op) {
		return q
	}
	if t, ok := q.tableRef(op, table, ""); ok {
		q.joins = append(q.joins, join{kind: kind, table: t, on: on})
	}
	return q
}

func (q *Query) addJoinQuery(op, kind string, sub *Query, alias, on string) *Query {
	if !q.mutable(op) {
		return q
	}
	if sub == nil {
		return q.AddError(op, veloq.NewConfigError(op, veloq.ErrNilSubquery))
	}
	if !isValidIdentifier(alias) {
		return q.AddError(op, veloq.ConfigErrorf(op, veloq.ErrInvalidIdentifier, "alias %q", alias))
	}
	q.joins = append(q.joins, join{kind: kind, table: tableRef{sub: sub, alias: alias}, on: on})
	return q
}

// Join appends an INNER JOIN. The on condition is written verbatim.
func (q *Query) Join(table, on string) *Query {
	return q.addJoin("Join", "INNER JOIN", table, on)
}

// LeftJoin appends a LEFT JOIN. The on condition is written verbatim.
func (q *Query) LeftJoin(table, on string) *Query {
	return q.addJoin("LeftJoin", "LEFT JOIN", table, on)
}

// JoinQuery appends an INNER JOIN on a subquery.
func (q *Query) JoinQuery(sub *Query, alias, on string) *Query {
	return q.addJoinQuery("JoinQuery", "INNER JOIN", sub, alias, on)
}

// LeftJoinQuery appends a LEFT JOIN on a subquery.
func (q *Query) LeftJoinQuery(sub *Query, alias, on string) *Query {
	return q.addJoinQuery("LeftJoinQuery", "LEFT JOIN", sub, alias, on)
}

func (q *Query) addCond(op string, or bool, c Cond) *Query {
	if !q.mutable(op) {
		return q
	}
	if c.err != nil {
		return q.AddError(op, c.err)
	}
	if or && len(q.preds) == 0 {
		return q.AddError(op, veloq.NewConfigError(op, veloq.ErrLeadingOr))
	}
	q.preds = append(q.preds, predicate{or: or, cond: c})
	return q
}

// Where appends an AND-ed "column op value" predicate. Values are always
// bound as parameters. A nil value with "=" or "IS" compiles to IS NULL,
// and with "!=", "<>" or "IS NOT" to IS NOT NULL.
func (q *Query) Where(column, op string, v any) *Query {
	return q.addCond("Where", false, Compare(column, op, v))
}

// AndWhere is an alias of Where.
func (q *Query) AndWhere(column, op string, v any) *Query {
	return q.addCond("AndWhere", false, Compare(column, op, v))
}

// OrWhere appends an OR-ed predicate. It cannot be the first predicate.
func (q *Query) OrWhere(column, op string, v any) *Query {
	return q.addCond("OrWhere", true, Compare(column, op, v))
}

// WhereCond appends an AND-ed condition.
func (q *Query) WhereCond(c Cond) *Query {
	return q.addCond("WhereCond", false, c)
}

// OrWhereCond appends an OR-ed condition.
func (q *Query) OrWhereCond(c Cond) *Query {
	return q.addCond("OrWhereCond", true, c)
}

// WhereIn appends a "column IN (...)" predicate. An empty list compiles to
// a predicate matching no rows.
func (q *Query) WhereIn(column string, vs ...any) *Query {
	return q.addCond("WhereIn", false, In(column, vs...))
}

// WhereNotIn appends a "column NOT IN (...)" predicate. An empty list
// compiles to a predicate matching every row.
func (q *Query) WhereNotIn(column string, vs ...any) *Query {
	return q.addCond("WhereNotIn", false, NotIn(column, vs...))
}

// WhereInQuery appends a "column IN (subquery)" predicate.
func (q *Query) WhereInQuery(column string, sub *Query) *Query {
	return q.addCond("WhereInQuery", false, InQuery(column, sub))
}

// WhereBetween appends a "column BETWEEN lo AND hi" predicate.
func (q *Query) WhereBetween(column string, lo, hi any) *Query {
	return q.addCond("WhereBetween", false, Between(column, lo, hi))
}

// WhereRaw appends an AND-ed raw predicate. Every '?' in expr is bound to
// the next argument.
func (q *Query) WhereRaw(expr string, args ...any) *Query {
	return q.addCond("WhereRaw", false, Expr(expr, args...))
}

// GroupBy appends GROUP BY expressions.
func (q *Query) GroupBy(columns ...string) *Query {
	if q.mutable("GroupBy") {
		q.groupBy = append(q.groupBy, columns...)
	}
	return q
}

// Having appends an AND-ed HAVING expression. Every '?' in expr is bound to
// the next argument.
func (q *Query) Having(expr string, args ...any) *Query {
	if q.mutable("Having") {
		q.having = append(q.having, having{expr: expr, args: args})
	}
	return q
}

// OrderBy appends an ORDER BY term. The direction defaults to ascending.
// Terms keep their declaration order.
func (q *Query) OrderBy(expr string, dir ...OrderDirection) *Query {
	if !q.mutable("OrderBy") {
		return q
	}
	d := OrderAsc
	if len(dir) > 0 {
		d = dir[0]
	}
	if d != OrderAsc && d != OrderDesc {
		return q.AddError("OrderBy", veloq.ConfigErrorf("OrderBy", veloq.ErrInvalidOperator, "direction %q", d))
	}
	q.orderBy = append(q.orderBy, order{expr: expr, dir: d})
	return q
}

// Limit sets the LIMIT. n must be non-negative.
func (q *Query) Limit(n int) *Query {
	if !q.mutable("Limit") {
		return q
	}
	if n < 0 {
		return q.AddError("Limit", veloq.ConfigErrorf("Limit", veloq.ErrNegativeLimit, "got %d", n))
	}
	q.limit = &n
	return q
}

// Offset sets the OFFSET. n must be non-negative.
func (q *Query) Offset(n int) *Query {
	if !q.mutable("Offset") {
		return q
	}
	if n < 0 {
		return q.AddError("Offset", veloq.ConfigErrorf("Offset", veloq.ErrNegativeOffset, "got %d", n))
	}
	q.offset = &n
	return q
}

// RawSQL appends a verbatim fragment at the end of the statement. The
// fragment is not parameterized.
func (q *Query) RawSQL(fragment string) *Query {
	return q.RawSQLAt(ClauseEnd, fragment)
}

// RawSQLAt splices a verbatim fragment at the given clause.
func (q *Query) RawSQLAt(clause Clause, text string) *Query {
	if !q.mutable("RawSQL") {
		return q
	}
	if clause == ClauseWhere {
		q.preds = append(q.preds, predicate{cond: Cond{op: opRaw, expr: text, raw: true}})
		return q
	}
	q.raw = append(q.raw, fragment{clause: clause, text: text})
	return q
}

// Returning appends RETURNING columns to an INSERT, UPDATE or DELETE.
func (q *Query) Returning(columns ...string) *Query {
	if !q.mutable("Returning") {
		return q
	}
	for _, c := range columns {
		if c != "*" && !isValidIdentifier(c) {
			return q.AddError("Returning", veloq.ConfigErrorf("Returning", veloq.ErrInvalidIdentifier, "column %q", c))
		}
	}
	q.returning = append(q.returning, columns...)
	return q
}

// UseVectorDB sets the vector dialect for this query only. The registry's
// active default is not changed.
func (q *Query) UseVectorDB(name string) *Query {
	if q.mutable("UseVectorDB") {
		q.vectorDB = name
	}
	return q
}

// KNNSearch ranks rows by ascending distance between column and v. Unless a
// limit is set, the query returns k rows, or the dialect default k if k is 0.
func (q *Query) KNNSearch(column string, v []float32, k int, opts ...SearchOption) *Query {
	if !q.mutable("KNNSearch") {
		return q
	}
	if k < 0 {
		return q.AddError("KNNSearch", veloq.ConfigErrorf("KNNSearch", veloq.ErrNegativeLimit, "k = %d", k))
	}
	return q.addVectorOp("KNNSearch", &vectorOp{kind: OpKNN, columns: []string{column}, vec: v, k: k}, opts)
}

// SimilaritySearch ranks rows by descending similarity between column and v.
// With WithThreshold, rows below the threshold are filtered out.
func (q *Query) SimilaritySearch(column string, v []float32, opts ...SearchOption) *Query {
	if !q.mutable("SimilaritySearch") {
		return q
	}
	return q.addVectorOp("SimilaritySearch", &vectorOp{kind: OpSimilarity, columns: []string{column}, vec: v}, opts)
}

// TextSearch keeps rows where every column matches terms. Terms are NFC
// normalized and bound as parameters.
func (q *Query) TextSearch(columns []string, terms string) *Query {
	if !q.mutable("TextSearch") {
		return q
	}
	if len(columns) == 0 {
		return q.AddError("TextSearch", veloq.ConfigErrorf("TextSearch", veloq.ErrInvalidIdentifier, "no columns"))
	}
	return q.addVectorOp("TextSearch", &vectorOp{kind: OpText, columns: columns, terms: norm.NFC.String(terms)}, nil)
}

// HybridRanking orders rows by a weighted sum of ranking signals: "vector"
// (similarity of the latest vector search), "text" (relevance of the latest
// text search), "recency" (age of the created_at column, see
// WithRecencyColumn), and any other key naming a numeric column.
func (q *Query) HybridRanking(weights Weights, opts ...SearchOption) *Query {
	if !q.mutable("HybridRanking") {
		return q
	}
	if err := weights.validate(); err != nil {
		return q.AddError("HybridRanking", err)
	}
	return q.addVectorOp("HybridRanking", &vectorOp{kind: OpHybrid, weights: weights.clone(), recency: "created_at"}, opts)
}

func (q *Query) addVectorOp(op string, v *vectorOp, opts []SearchOption) *Query {
	for _, opt := range opts {
		opt(v)
	}
	if err := v.check(); err != nil {
		return q.AddError(op, err)
	}
	q.vectorOps = append(q.vectorOps, v)
	return q
}
