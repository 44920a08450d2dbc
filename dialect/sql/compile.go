package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
)

// ToSQL compiles the query into its SQL text and ordered parameters. It
// returns the configuration errors recorded while building, or raised while
// compiling, as *veloq.ConfigError values. Calling ToSQL again returns the
// same statement. The query cannot be changed afterwards.
func (q *Query) ToSQL() (Statement, error) {
	b := NewBuilder(q.dialect)
	if err := q.compile(b); err != nil {
		return Statement{}, err
	}
	return b.Statement(), nil
}

// MustSQL is like ToSQL, but panics on error.
func (q *Query) MustSQL() Statement {
	s, err := q.ToSQL()
	if err != nil {
		panic(err)
	}
	return s
}

// compile writes the query into b. Subqueries are compiled into the builder
// of their parent, so their placeholders continue the parent sequence.
func (q *Query) compile(b *Builder) error {
	q.compiled = true
	if len(q.errs) > 0 {
		return veloq.NewAggregateError(q.errs...)
	}
	if err := q.checkSchema(); err != nil {
		return err
	}
	switch q.kind {
	case KindSelect:
		return q.compileSelect(b)
	case KindInsert:
		return q.compileInsert(b)
	case KindUpdate:
		return q.compileUpdate(b)
	case KindDelete:
		return q.compileDelete(b)
	default:
		return veloq.NewConfigError("ToSQL", veloq.ErrNoKind)
	}
}

func (q *Query) compileSelect(b *Builder) error {
	if q.table.name == "" && q.table.sub == nil {
		return veloq.NewConfigError("ToSQL", veloq.ErrNoTarget)
	}
	if len(q.returning) > 0 {
		return veloq.ConfigErrorf("ToSQL", veloq.ErrUnsupported, "RETURNING in SELECT")
	}
	p, err := q.plan(b)
	if err != nil {
		return err
	}
	b.WriteString("SELECT ")
	q.writeRaw(b, ClauseSelect)
	columns := q.columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	b.WriteString(strings.Join(columns, ", "))
	for _, s := range p.scores {
		b.Comma().WriteTemplate(s)
	}
	b.WriteString(" FROM ")
	if err := q.writeTable(b, q.table); err != nil {
		return err
	}
	for _, j := range q.joins {
		b.Pad().WriteString(j.kind).Pad()
		if err := q.writeTable(b, j.table); err != nil {
			return err
		}
		b.WriteString(" ON ").WriteString(j.on)
	}
	q.writeRaw(b, ClauseFrom)
	if err := q.writeWhere(b, p.where); err != nil {
		return err
	}
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ").WriteString(strings.Join(q.groupBy, ", "))
	}
	for i, h := range q.having {
		if i == 0 {
			b.WriteString(" HAVING ")
		} else {
			b.WriteString(" AND ")
		}
		if err := b.WriteExpr(h.expr, h.args); err != nil {
			return err
		}
	}
	q.writeOrder(b, p.order)
	switch {
	case q.limit != nil:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*q.limit))
	case p.k > 0:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(p.k))
	}
	if q.offset != nil {
		// MySQL and SQLite do not accept OFFSET without LIMIT.
		if q.limit == nil && p.k == 0 {
			switch b.Dialect() {
			case dialect.SQLite:
				b.WriteString(" LIMIT -1")
			case dialect.MySQL:
				b.WriteString(" LIMIT 18446744073709551615")
			}
		}
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*q.offset))
	}
	q.writeRaw(b, ClauseEnd)
	return nil
}

func (q *Query) compileInsert(b *Builder) error {
	if err := q.checkDML(); err != nil {
		return err
	}
	if len(q.payload) == 0 {
		return veloq.ConfigErrorf("ToSQL", veloq.ErrEmptyPayload, "INSERT INTO %s", q.table.name)
	}
	b.WriteString("INSERT INTO ").WriteString(q.table.name).WriteString(" (")
	for i, a := range q.payload {
		if i > 0 {
			b.Comma()
		}
		b.WriteString(a.Column)
	}
	b.WriteString(") VALUES (")
	for i, a := range q.payload {
		if i > 0 {
			b.Comma()
		}
		b.Arg(a.Value)
	}
	b.WriteString(")")
	q.writeRaw(b, ClauseEnd)
	return q.writeReturning(b)
}

func (q *Query) compileUpdate(b *Builder) error {
	if err := q.checkDML(); err != nil {
		return err
	}
	if len(q.payload) == 0 {
		return veloq.ConfigErrorf("ToSQL", veloq.ErrEmptyPayload, "UPDATE %s", q.table.name)
	}
	b.WriteString("UPDATE ").WriteString(q.table.name).WriteString(" SET ")
	// SET values take the first parameter slots.
	for i, a := range q.payload {
		if i > 0 {
			b.Comma()
		}
		b.WriteString(a.Column).WriteString(" = ").Arg(a.Value)
	}
	if err := q.writeWhere(b, nil); err != nil {
		return err
	}
	q.writeRaw(b, ClauseEnd)
	return q.writeReturning(b)
}

func (q *Query) compileDelete(b *Builder) error {
	if err := q.checkDML(); err != nil {
		return err
	}
	b.WriteString("DELETE FROM ").WriteString(q.table.name)
	if err := q.writeWhere(b, nil); err != nil {
		return err
	}
	q.writeRaw(b, ClauseEnd)
	return q.writeReturning(b)
}

// checkDML reports clauses that INSERT, UPDATE and DELETE do not accept.
func (q *Query) checkDML() error {
	var clause string
	switch {
	case q.table.name == "":
		return veloq.NewConfigError("ToSQL", veloq.ErrNoTarget)
	case len(q.payload) > 0 && q.kind == KindDelete:
		clause = "payload"
	case len(q.preds) > 0 && q.kind == KindInsert:
		clause = "WHERE"
	case len(q.columns) > 0:
		clause = "columns"
	case len(q.joins) > 0:
		clause = "JOIN"
	case len(q.groupBy) > 0 || len(q.having) > 0:
		clause = "GROUP BY"
	case len(q.orderBy) > 0:
		clause = "ORDER BY"
	case q.limit != nil || q.offset != nil:
		clause = "LIMIT"
	case len(q.vectorOps) > 0:
		clause = q.vectorOps[0].kind.String()
	case len(q.returning) > 0 && q.dialect == dialect.MySQL:
		return veloq.ConfigErrorf("Returning", veloq.ErrUnsupported, "RETURNING on %s", q.dialect)
	}
	for _, f := range q.raw {
		if f.clause != ClauseEnd {
			clause = "raw fragment"
		}
	}
	if clause != "" {
		return veloq.ConfigErrorf("ToSQL", veloq.ErrUnsupported, "%s in %s", clause, q.kind)
	}
	return nil
}

// writeTable writes a table reference or a parenthesized subquery.
func (q *Query) writeTable(b *Builder, t tableRef) error {
	if t.sub != nil {
		b.WriteString("(")
		if err := t.sub.compile(b); err != nil {
			return err
		}
		b.WriteString(")")
	} else {
		b.WriteString(t.name)
	}
	if t.alias != "" {
		b.WriteString(" AS ").WriteString(t.alias)
	}
	return nil
}

// writeWhere writes the declared predicates, followed by the predicates of
// the vector operations. Declared predicates are grouped when they contain
// an OR, so the vector predicates apply to all of them.
func (q *Query) writeWhere(b *Builder, extra []string) error {
	if len(q.preds) == 0 && len(extra) == 0 {
		return nil
	}
	b.WriteString(" WHERE ")
	group := len(extra) > 0 && q.hasOr()
	if group {
		b.WriteString("(")
	}
	for i, p := range q.preds {
		if i > 0 {
			if p.or {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		if err := q.writeCond(b, p.cond); err != nil {
			return err
		}
	}
	if group {
		b.WriteString(")")
	}
	for i, s := range extra {
		if i > 0 || len(q.preds) > 0 {
			b.WriteString(" AND ")
		}
		b.WriteTemplate(s)
	}
	return nil
}

func (q *Query) hasOr() bool {
	for _, p := range q.preds[min(1, len(q.preds)):] {
		if p.or {
			return true
		}
	}
	return false
}

// writeCond writes a single condition. Every value reaches the builder as a
// parameter.
func (q *Query) writeCond(b *Builder, c Cond) error {
	if isSubquery(c.value) && c.op != opIn && c.op != opNotIn {
		if c.op == opIs || c.op == opIsNot {
			return veloq.ConfigErrorf("Where", veloq.ErrInvalidOperator, "%s requires a nil value", c.op)
		}
		b.WriteString(c.column).Pad().WriteString(c.op).WriteString(" (")
		if err := writeSubquery(b, c.value); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	}
	switch c.op {
	case opRaw:
		if c.raw {
			b.WriteString(c.expr)
			return nil
		}
		return b.WriteExpr(c.expr, c.values)
	case opIn, opNotIn:
		if c.value == nil && len(c.values) == 0 {
			if c.op == opIn {
				b.WriteString("1 = 0")
			} else {
				b.WriteString("1 = 1")
			}
			return nil
		}
		b.WriteString(c.column).Pad().WriteString(c.op).WriteString(" (")
		if isSubquery(c.value) {
			if err := writeSubquery(b, c.value); err != nil {
				return err
			}
		} else {
			b.Args(c.values...)
		}
		b.WriteString(")")
	case opBetween:
		b.WriteString(c.column).WriteString(" BETWEEN ").Arg(c.values[0]).WriteString(" AND ").Arg(c.values[1])
	case opIs, "=":
		if c.value == nil {
			b.WriteString(c.column).WriteString(" IS NULL")
			return nil
		}
		if c.op == opIs {
			return veloq.ConfigErrorf("Where", veloq.ErrInvalidOperator, "IS requires a nil value")
		}
		b.WriteString(c.column).WriteString(" = ").Arg(c.value)
	case opIsNot, "!=", "<>":
		if c.value == nil {
			b.WriteString(c.column).WriteString(" IS NOT NULL")
			return nil
		}
		if c.op == opIsNot {
			return veloq.ConfigErrorf("Where", veloq.ErrInvalidOperator, "IS NOT requires a nil value")
		}
		b.WriteString(c.column).Pad().WriteString(c.op).Pad().Arg(c.value)
	case opILike:
		if b.Dialect() == dialect.Postgres {
			b.WriteString(c.column).WriteString(" ILIKE ").Arg(c.value)
		} else {
			b.WriteString("LOWER(").WriteString(c.column).WriteString(") LIKE LOWER(").Arg(c.value).WriteString(")")
		}
		q.writeEscape(b, c)
	default:
		b.WriteString(c.column).Pad().WriteString(c.op).Pad().Arg(c.value)
		q.writeEscape(b, c)
	}
	return nil
}

func isSubquery(v any) bool {
	switch v.(type) {
	case *Query, Statement:
		return true
	}
	return false
}

// writeSubquery writes the *Query or Statement v, renumbering its
// placeholders to continue the sequence of b.
func writeSubquery(b *Builder, v any) error {
	switch v := v.(type) {
	case *Query:
		return v.compile(b)
	case Statement:
		return b.Join(v)
	}
	return nil
}

// writeEscape declares the LIKE escape character where it is not the default.
func (q *Query) writeEscape(b *Builder, c Cond) {
	if c.escape && b.Dialect() == dialect.SQLite {
		b.WriteString(` ESCAPE '\'`)
	}
}

// writeOrder writes the declared ORDER BY terms, then the vector terms and
// the raw ORDER BY fragments.
func (q *Query) writeOrder(b *Builder, extra []string) {
	var n int
	sep := func() {
		if n == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.Comma()
		}
		n++
	}
	for _, o := range q.orderBy {
		sep()
		b.WriteString(o.expr).Pad().WriteString(string(o.dir))
	}
	for _, s := range extra {
		sep()
		b.WriteTemplate(s)
	}
	for _, f := range q.raw {
		if f.clause == ClauseOrderBy {
			sep()
			b.WriteString(f.text)
		}
	}
}

// writeRaw writes the raw fragments spliced at clause.
func (q *Query) writeRaw(b *Builder, clause Clause) {
	for _, f := range q.raw {
		if f.clause != clause {
			continue
		}
		if clause == ClauseSelect {
			b.WriteString(f.text).Pad()
		} else {
			b.Pad().WriteString(f.text)
		}
	}
}

func (q *Query) writeReturning(b *Builder) error {
	if len(q.returning) == 0 {
		return nil
	}
	b.WriteString(" RETURNING ").WriteString(strings.Join(q.returning, ", "))
	return nil
}
