// Package schema provides a statically declared description of the tables a
// query may target. A Schema is built once at startup and passed to the
// query layer with sql.WithSchema, which then checks tables and columns at
// compile time.
//
//	s, err := schema.New(
//	    schema.Entity("Document",
//	        schema.Int("id"),
//	        schema.Text("body"),
//	        schema.Vector("embedding", 384),
//	        schema.Time("created_at"),
//	    ),
//	)
//
// Entity derives the table name from the entity name: "Document" becomes
// "documents" and "BlogPost" becomes "blog_posts".
package schema

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-openapi/inflect"
)

// Type is the type of a column.
type Type int

// Column types.
const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeText
	TypeBool
	TypeTime
	TypeUUID
	TypeJSON
	TypeVector
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeText:    "text",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeUUID:    "uuid",
	TypeJSON:    "json",
	TypeVector:  "vector",
}

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return typeNames[TypeInvalid]
	}
	return typeNames[t]
}

// Textual reports whether the column holds text.
func (t Type) Textual() bool {
	return t == TypeString || t == TypeText
}

// Column describes a table column.
type Column struct {
	Name     string
	Type     Type
	Dim      int // Dimensions of a vector column.
	Nullable bool
	Comment  string
}

// Int returns an integer column.
func Int(name string) *Column { return &Column{Name: name, Type: TypeInt} }

// Float returns a floating point column.
func Float(name string) *Column { return &Column{Name: name, Type: TypeFloat} }

// String returns a bounded string column.
func String(name string) *Column { return &Column{Name: name, Type: TypeString} }

// Text returns an unbounded text column.
func Text(name string) *Column { return &Column{Name: name, Type: TypeText} }

// Bool returns a boolean column.
func Bool(name string) *Column { return &Column{Name: name, Type: TypeBool} }

// Time returns a timestamp column.
func Time(name string) *Column { return &Column{Name: name, Type: TypeTime} }

// UUID returns a UUID column.
func UUID(name string) *Column { return &Column{Name: name, Type: TypeUUID} }

// JSON returns a JSON column.
func JSON(name string) *Column { return &Column{Name: name, Type: TypeJSON} }

// Vector returns a vector column with dim dimensions, or of any size if dim is 0.
func Vector(name string, dim int) *Column {
	return &Column{Name: name, Type: TypeVector, Dim: dim}
}

// Optional marks the column nullable.
func (c *Column) Optional() *Column {
	c.Nullable = true
	return c
}

// Describe sets the column comment.
func (c *Column) Describe(comment string) *Column {
	c.Comment = comment
	return c
}

// Table describes a table and its columns.
type Table struct {
	Name    string
	Columns []*Column
	index   map[string]*Column
}

// NewTable returns a table with the given name and columns.
func NewTable(name string, columns ...*Column) *Table {
	t := &Table{Name: name, Columns: columns, index: make(map[string]*Column, len(columns))}
	for _, c := range columns {
		if c != nil {
			t.index[c.Name] = c
		}
	}
	return t
}

var rules = inflect.NewDefaultRuleset()

// Entity returns a table named after the entity, in plural snake case.
func Entity(name string, columns ...*Column) *Table {
	return NewTable(TableName(name), columns...)
}

// TableName returns the table name of an entity.
func TableName(entity string) string {
	return rules.Underscore(rules.Pluralize(entity))
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.index[name]
	return c, ok
}

var (
	tableRe  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)
	columnRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func (t *Table) validate() error {
	if !tableRe.MatchString(t.Name) {
		return fmt.Errorf("schema: invalid table name %q", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		switch {
		case c == nil:
			return fmt.Errorf("schema: table %q: nil column", t.Name)
		case !columnRe.MatchString(c.Name):
			return fmt.Errorf("schema: table %q: invalid column name %q", t.Name, c.Name)
		case c.Type <= TypeInvalid || c.Type > TypeVector:
			return fmt.Errorf("schema: column %q.%q: invalid type", t.Name, c.Name)
		case c.Dim < 0 || (c.Dim > 0 && c.Type != TypeVector):
			return fmt.Errorf("schema: column %q.%q: invalid dimensions %d", t.Name, c.Name, c.Dim)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("schema: table %q: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// Schema is a validated set of tables. It is read-only once created.
type Schema struct {
	tables map[string]*Table
	names  []string
}

// New validates the tables and returns a schema holding them.
func New(tables ...*Table) (*Schema, error) {
	s := &Schema{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if t == nil {
			return nil, errors.New("schema: nil table")
		}
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, ok := s.tables[t.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		s.tables[t.Name] = t
		s.names = append(s.names, t.Name)
	}
	return s, nil
}

// Table returns the named table.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns the tables in declaration order.
func (s *Schema) Tables() []*Table {
	tables := make([]*Table, len(s.names))
	for i, name := range s.names {
		tables[i] = s.tables[name]
	}
	return tables
}
