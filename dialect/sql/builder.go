package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Statement is a compiled query: SQL text and the parameters bound to its
// placeholders, in placeholder order.
type Statement struct {
	Query  string
	Params []any
}

// String implements the fmt.Stringer interface.
func (s Statement) String() string {
	return fmt.Sprintf("%s %v", s.Query, s.Params)
}

// marker delimits a value bound by Builder.Bind inside template output.
const marker = '\x00'

// Builder is the low-level SQL text builder shared by the compiler. It owns
// the parameter list, so every placeholder it writes is numbered by the
// position of its value in that list.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	pending []any
}

// NewBuilder returns a Builder writing placeholders for the given dialect.
func NewBuilder(name string) *Builder {
	return &Builder{dialect: name}
}

// Dialect returns the builder dialect.
func (b *Builder) Dialect() string {
	return b.dialect
}

// WriteString writes s verbatim.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Pad writes a single space.
func (b *Builder) Pad() *Builder {
	b.sb.WriteByte(' ')
	return b
}

// Comma writes a comma followed by a space.
func (b *Builder) Comma() *Builder {
	b.sb.WriteString(", ")
	return b
}

// Arg appends v to the parameters and writes its placeholder.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args writes a comma separated placeholder list for vs.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.Comma()
		}
		b.Arg(v)
	}
	return b
}

// Bind reserves v for a template and returns the token standing for it. The
// value becomes a parameter only when the token is written by WriteTemplate,
// once per occurrence, in text order.
func (b *Builder) Bind(v any) string {
	b.pending = append(b.pending, v)
	return string(marker) + strconv.Itoa(len(b.pending)-1) + string(marker)
}

// WriteTemplate writes template output, replacing the tokens returned by
// Bind with placeholders.
func (b *Builder) WriteTemplate(s string) *Builder {
	for {
		i := strings.IndexByte(s, marker)
		if i < 0 {
			b.sb.WriteString(s)
			return b
		}
		b.sb.WriteString(s[:i])
		rest := s[i+1:]
		j := strings.IndexByte(rest, marker)
		if j < 0 {
			b.sb.WriteString(rest)
			return b
		}
		n, err := strconv.Atoi(rest[:j])
		if err != nil || n < 0 || n >= len(b.pending) {
			b.sb.WriteString(rest[:j])
		} else {
			b.Arg(b.pending[n])
		}
		s = rest[j+1:]
	}
}

// WriteExpr writes a raw expression in which every '?' outside of quoted
// text stands for the next value in args. A doubled "??" writes a literal '?'.
func (b *Builder) WriteExpr(expr string, args []any) error {
	var (
		next  int
		quote byte
	)
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.sb.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			b.sb.WriteByte(c)
		case c == '?' && i+1 < len(expr) && expr[i+1] == '?':
			b.sb.WriteByte('?')
			i++
		case c == '?':
			if next >= len(args) {
				return veloq.ConfigErrorf("WriteExpr", veloq.ErrArgCount, "%q has more placeholders than arguments (%d)", expr, len(args))
			}
			b.Arg(args[next])
			next++
		default:
			b.sb.WriteByte(c)
		}
	}
	if next != len(args) {
		return veloq.ConfigErrorf("WriteExpr", veloq.ErrArgCount, "%q has %d placeholders for %d arguments", expr, next, len(args))
	}
	return nil
}

// Join writes a precompiled statement, renumbering its placeholders to
// continue the builder sequence. Both "$n" and "?" placeholders are accepted.
func (b *Builder) Join(s Statement) error {
	var (
		next  int
		quote byte
		text  = s.Query
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.sb.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			b.sb.WriteByte(c)
		case c == '$' && i+1 < len(text) && isDigit(text[i+1]):
			j := i + 1
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			n, _ := strconv.Atoi(text[i+1 : j])
			if n < 1 || n > len(s.Params) {
				return veloq.ConfigErrorf("Join", veloq.ErrArgCount, "placeholder $%d out of range in %q", n, text)
			}
			b.Arg(s.Params[n-1])
			i = j - 1
		case c == '?':
			if next >= len(s.Params) {
				return veloq.ConfigErrorf("Join", veloq.ErrArgCount, "more placeholders than params in %q", text)
			}
			b.Arg(s.Params[next])
			next++
		default:
			b.sb.WriteByte(c)
		}
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Len returns the number of bytes written so far.
func (b *Builder) Len() int {
	return b.sb.Len()
}

// Query returns the written text and parameters.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// Statement returns the written text and parameters as a Statement.
func (b *Builder) Statement() Statement {
	query, args := b.Query()
	return Statement{Query: query, Params: args}
}
