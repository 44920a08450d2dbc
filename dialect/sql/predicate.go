package sql

import (
	"strings"
	"time"

	"github.com/syssam/veloq"
)

// Cond is a single WHERE condition. It is created by the predicate
// functions of this package and appended with Query.WhereCond or
// Query.OrWhereCond.
type Cond struct {
	column string
	op     string
	value  any
	values []any
	expr   string
	raw    bool // expr is written verbatim, without placeholder expansion.
	escape bool // value is a LIKE pattern escaped with backslash.
	err    error
}

// Op returns the condition operator.
func (c Cond) Op() string { return c.op }

// Column returns the condition column, or the expression of a raw condition.
func (c Cond) Column() string {
	if c.op == opRaw {
		return c.expr
	}
	return c.column
}

const (
	opRaw     = "RAW"
	opIn      = "IN"
	opNotIn   = "NOT IN"
	opBetween = "BETWEEN"
	opIs      = "IS"
	opIsNot   = "IS NOT"
	opILike   = "ILIKE"
)

// operators holds the comparison operators accepted by Query.Where.
var operators = map[string]struct{}{
	"=": {}, "!=": {}, "<>": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
	"LIKE": {}, "NOT LIKE": {}, opILike: {}, opIn: {}, opNotIn: {}, opIs: {}, opIsNot: {},
}

// normalizeOp returns the canonical form of op, with collapsed whitespace and upper case.
func normalizeOp(op string) string {
	return strings.ToUpper(strings.Join(strings.Fields(op), " "))
}

// Compare returns a condition comparing column with v using op. v may be a
// *Query or a Statement, in which case it is embedded as a subquery. For the
// IN operators, v may be a slice, and nil is an empty list.
func Compare(column, op string, v any) Cond {
	op = normalizeOp(op)
	if _, ok := operators[op]; !ok {
		return Cond{err: veloq.ConfigErrorf("Where", veloq.ErrInvalidOperator, "%q", op)}
	}
	if sub, ok := v.(*Query); ok && sub == nil {
		return Cond{err: veloq.ConfigErrorf("Where", veloq.ErrNilSubquery, "column %q", column)}
	}
	if op == opIn || op == opNotIn {
		switch v := v.(type) {
		case nil:
			return Cond{column: column, op: op}
		case *Query, Statement:
			return Cond{column: column, op: op, value: v}
		default:
			vs, ok := toSlice(v)
			if !ok {
				vs = []any{v}
			}
			return Cond{column: column, op: op, values: vs}
		}
	}
	return Cond{column: column, op: op, value: v}
}

// toSlice converts the common slice types to []any.
func toSlice(v any) ([]any, bool) {
	switch v := v.(type) {
	case []any:
		return v, true
	case []string:
		return anySlice(v), true
	case []int:
		return anySlice(v), true
	case []int64:
		return anySlice(v), true
	case []float64:
		return anySlice(v), true
	case []bool:
		return anySlice(v), true
	default:
		return nil, false
	}
}

func anySlice[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i := range vs {
		out[i] = vs[i]
	}
	return out
}

// EQ returns a "column = v" condition.
func EQ(column string, v any) Cond { return Cond{column: column, op: "=", value: v} }

// NEQ returns a "column <> v" condition.
func NEQ(column string, v any) Cond { return Cond{column: column, op: "<>", value: v} }

// GT returns a "column > v" condition.
func GT(column string, v any) Cond { return Cond{column: column, op: ">", value: v} }

// GTE returns a "column >= v" condition.
func GTE(column string, v any) Cond { return Cond{column: column, op: ">=", value: v} }

// LT returns a "column < v" condition.
func LT(column string, v any) Cond { return Cond{column: column, op: "<", value: v} }

// LTE returns a "column <= v" condition.
func LTE(column string, v any) Cond { return Cond{column: column, op: "<=", value: v} }

// In returns a "column IN (vs...)" condition. With no values it matches no rows.
func In(column string, vs ...any) Cond { return Cond{column: column, op: opIn, values: vs} }

// NotIn returns a "column NOT IN (vs...)" condition. With no values it matches every row.
func NotIn(column string, vs ...any) Cond { return Cond{column: column, op: opNotIn, values: vs} }

// InQuery returns a "column IN (subquery)" condition.
func InQuery(column string, sub *Query) Cond {
	if sub == nil {
		return Cond{err: veloq.ConfigErrorf("WhereInQuery", veloq.ErrNilSubquery, "column %q", column)}
	}
	return Cond{column: column, op: opIn, value: sub}
}

// Between returns a "column BETWEEN lo AND hi" condition.
func Between(column string, lo, hi any) Cond {
	return Cond{column: column, op: opBetween, values: []any{lo, hi}}
}

// IsNull returns a "column IS NULL" condition.
func IsNull(column string) Cond { return Cond{column: column, op: opIs} }

// NotNull returns a "column IS NOT NULL" condition.
func NotNull(column string) Cond { return Cond{column: column, op: opIsNot} }

// Like returns a "column LIKE pattern" condition.
func Like(column, pattern string) Cond { return Cond{column: column, op: "LIKE", value: pattern} }

// Contains returns a condition matching values containing substr.
func Contains(column, substr string) Cond {
	return Cond{column: column, op: "LIKE", value: "%" + escapeLike(substr) + "%", escape: true}
}

// HasPrefix returns a condition matching values starting with prefix.
func HasPrefix(column, prefix string) Cond {
	return Cond{column: column, op: "LIKE", value: escapeLike(prefix) + "%", escape: true}
}

// HasSuffix returns a condition matching values ending with suffix.
func HasSuffix(column, suffix string) Cond {
	return Cond{column: column, op: "LIKE", value: "%" + escapeLike(suffix), escape: true}
}

// ContainsFold returns a case-insensitive Contains condition.
func ContainsFold(column, substr string) Cond {
	return Cond{column: column, op: opILike, value: "%" + escapeLike(substr) + "%", escape: true}
}

// Expr returns a raw condition. Every '?' in expr is bound to the next arg.
func Expr(expr string, args ...any) Cond {
	return Cond{op: opRaw, expr: expr, values: args}
}

// escapeLike escapes the LIKE wildcards of s.
func escapeLike(s string) string {
	if !strings.ContainsAny(s, `%_\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// Field is a typed column that builds conditions with compile-time checked
// values. Columns are declared once, next to the schema:
//
//	var Age = sql.Field[int]("age")
//	q.WhereCond(Age.GT(18))
type Field[T any] string

// Name returns the column name.
func (f Field[T]) Name() string { return string(f) }

// EQ returns a condition that checks if the column equals v.
func (f Field[T]) EQ(v T) Cond { return EQ(string(f), v) }

// NEQ returns a condition that checks if the column does not equal v.
func (f Field[T]) NEQ(v T) Cond { return NEQ(string(f), v) }

// GT returns a condition that checks if the column is greater than v.
func (f Field[T]) GT(v T) Cond { return GT(string(f), v) }

// GTE returns a condition that checks if the column is greater than or equal to v.
func (f Field[T]) GTE(v T) Cond { return GTE(string(f), v) }

// LT returns a condition that checks if the column is less than v.
func (f Field[T]) LT(v T) Cond { return LT(string(f), v) }

// LTE returns a condition that checks if the column is less than or equal to v.
func (f Field[T]) LTE(v T) Cond { return LTE(string(f), v) }

// In returns a condition that checks if the column value is in vs.
func (f Field[T]) In(vs ...T) Cond { return In(string(f), anySlice(vs)...) }

// NotIn returns a condition that checks if the column value is not in vs.
func (f Field[T]) NotIn(vs ...T) Cond { return NotIn(string(f), anySlice(vs)...) }

// Between returns a condition that checks if the column is between lo and hi.
func (f Field[T]) Between(lo, hi T) Cond { return Between(string(f), lo, hi) }

// IsNull returns a condition that checks if the column is NULL.
func (f Field[T]) IsNull() Cond { return IsNull(string(f)) }

// NotNull returns a condition that checks if the column is not NULL.
func (f Field[T]) NotNull() Cond { return NotNull(string(f)) }

// StringField is a typed string column with pattern matching conditions.
type StringField struct{ Field[string] }

// String returns a StringField for the named column.
func String(name string) StringField { return StringField{Field[string](name)} }

// Contains returns a condition that checks if the column contains substr.
func (f StringField) Contains(substr string) Cond { return Contains(f.Name(), substr) }

// ContainsFold returns a condition that checks if the column contains substr, ignoring case.
func (f StringField) ContainsFold(substr string) Cond { return ContainsFold(f.Name(), substr) }

// HasPrefix returns a condition that checks if the column has the given prefix.
func (f StringField) HasPrefix(prefix string) Cond { return HasPrefix(f.Name(), prefix) }

// HasSuffix returns a condition that checks if the column has the given suffix.
func (f StringField) HasSuffix(suffix string) Cond { return HasSuffix(f.Name(), suffix) }

// Int returns a typed int column.
func Int(name string) Field[int] { return Field[int](name) }

// Int64 returns a typed int64 column.
func Int64(name string) Field[int64] { return Field[int64](name) }

// Float returns a typed float64 column.
func Float(name string) Field[float64] { return Field[float64](name) }

// Bool returns a typed bool column.
func Bool(name string) Field[bool] { return Field[bool](name) }

// Time returns a typed time.Time column.
func Time(name string) Field[time.Time] { return Field[time.Time](name) }
