package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/dialect/sql/vector"
)

// QueryFile is the YAML description of a single query:
//
//	dialect: postgres
//	kind: select
//	table: documents d
//	columns: [id, title]
//	where:
//	  - {column: lang, op: "=", value: en}
//	search:
//	  - knn: {column: embedding, vector: [0.1, 0.2], k: 10}
//	limit: 10
type QueryFile struct {
	Dialect   string       `yaml:"dialect"`
	VectorDB  string       `yaml:"vector_db"`
	Kind      string       `yaml:"kind"`
	Table     string       `yaml:"table"`
	Columns   []string     `yaml:"columns"`
	Joins     []JoinSpec   `yaml:"joins"`
	Where     []WhereSpec  `yaml:"where"`
	GroupBy   []string     `yaml:"group_by"`
	Having    []ExprSpec   `yaml:"having"`
	OrderBy   []OrderSpec  `yaml:"order_by"`
	Limit     *int         `yaml:"limit"`
	Offset    *int         `yaml:"offset"`
	Set       Payload      `yaml:"set"`
	Returning []string     `yaml:"returning"`
	Search    []SearchSpec `yaml:"search"`
}

// JoinSpec describes a join.
type JoinSpec struct {
	Type  string `yaml:"type"` // "inner" (default) or "left"
	Table string `yaml:"table"`
	On    string `yaml:"on"`
}

// WhereSpec describes a predicate: either a column comparison, or a raw
// expression with '?' markers.
type WhereSpec struct {
	Column string `yaml:"column"`
	Op     string `yaml:"op"`
	Value  any    `yaml:"value"`
	Values []any  `yaml:"values"`
	Raw    string `yaml:"raw"`
	Args   []any  `yaml:"args"`
	Or     bool   `yaml:"or"`
}

// ExprSpec is a raw expression with '?' markers.
type ExprSpec struct {
	Expr string `yaml:"expr"`
	Args []any  `yaml:"args"`
}

// OrderSpec is an ORDER BY term.
type OrderSpec struct {
	Expr string `yaml:"expr"`
	Dir  string `yaml:"dir"`
}

// SearchSpec holds exactly one vector operation.
type SearchSpec struct {
	KNN        *KNNSpec        `yaml:"knn"`
	Similarity *SimilaritySpec `yaml:"similarity"`
	Text       *TextSpec       `yaml:"text"`
	Hybrid     *HybridSpec     `yaml:"hybrid"`
}

// KNNSpec is a KNN search.
type KNNSpec struct {
	Column string    `yaml:"column"`
	Vector []float32 `yaml:"vector"`
	K      int       `yaml:"k"`
	Metric string    `yaml:"metric"`
	Score  string    `yaml:"score"`
}

// SimilaritySpec is a similarity search.
type SimilaritySpec struct {
	Column    string    `yaml:"column"`
	Vector    []float32 `yaml:"vector"`
	Threshold *float64  `yaml:"threshold"`
	Metric    string    `yaml:"metric"`
	Score     string    `yaml:"score"`
}

// TextSpec is a text search.
type TextSpec struct {
	Columns []string `yaml:"columns"`
	Terms   string   `yaml:"terms"`
}

// HybridSpec is a hybrid ranking.
type HybridSpec struct {
	Weights       sql.Weights `yaml:"weights"`
	RecencyColumn string      `yaml:"recency_column"`
}

// Payload is an ordered list of assignments decoded from a YAML mapping.
// The mapping order is kept, as it fixes the column and parameter order.
type Payload []sql.Assignment

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (p *Payload) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: set must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v any
		if err := node.Content[i+1].Decode(&v); err != nil {
			return err
		}
		*p = append(*p, sql.Set(node.Content[i].Value, v))
	}
	return nil
}

// ReadQueryFile decodes a query file from r.
func ReadQueryFile(r io.Reader) (*QueryFile, error) {
	var f QueryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode query file: %w", err)
	}
	return &f, nil
}

// LoadQueryFile reads the query file at path.
func LoadQueryFile(path string) (*QueryFile, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return ReadQueryFile(fd)
}

// Build returns the query described by the file. Configuration errors are
// returned by the ToSQL or Execute call of the query.
func (f *QueryFile) Build(opts ...sql.Option) (*sql.Query, error) {
	q := sql.New(opts...)
	switch strings.ToLower(f.Kind) {
	case "", "select":
		q.Select(f.Columns...).From(f.Table)
	case "insert":
		q.Insert(f.Table, f.Set...)
	case "update":
		q.Update(f.Table, f.Set...)
	case "delete":
		q.Delete(f.Table)
	default:
		return nil, fmt.Errorf("unknown query kind %q", f.Kind)
	}
	for _, j := range f.Joins {
		switch strings.ToLower(j.Type) {
		case "", "inner":
			q.Join(j.Table, j.On)
		case "left":
			q.LeftJoin(j.Table, j.On)
		default:
			return nil, fmt.Errorf("unknown join type %q", j.Type)
		}
	}
	for _, w := range f.Where {
		c, err := w.cond()
		if err != nil {
			return nil, err
		}
		if w.Or {
			q.OrWhereCond(c)
		} else {
			q.WhereCond(c)
		}
	}
	if len(f.GroupBy) > 0 {
		q.GroupBy(f.GroupBy...)
	}
	for _, h := range f.Having {
		q.Having(h.Expr, h.Args...)
	}
	for _, o := range f.OrderBy {
		q.OrderBy(o.Expr, sql.OrderDirection(strings.ToUpper(orDefault(o.Dir, "ASC"))))
	}
	if f.Limit != nil {
		q.Limit(*f.Limit)
	}
	if f.Offset != nil {
		q.Offset(*f.Offset)
	}
	if len(f.Returning) > 0 {
		q.Returning(f.Returning...)
	}
	if f.VectorDB != "" {
		q.UseVectorDB(f.VectorDB)
	}
	for i, s := range f.Search {
		if err := s.apply(q); err != nil {
			return nil, fmt.Errorf("search %d: %w", i, err)
		}
	}
	return q, nil
}

func (w WhereSpec) cond() (sql.Cond, error) {
	switch {
	case w.Raw != "" && w.Column != "":
		return sql.Cond{}, errors.New("where: raw and column are exclusive")
	case w.Raw != "":
		return sql.Expr(w.Raw, w.Args...), nil
	case w.Values != nil:
		return sql.Compare(w.Column, orDefault(w.Op, "IN"), w.Values), nil
	default:
		return sql.Compare(w.Column, orDefault(w.Op, "="), w.Value), nil
	}
}

func (s SearchSpec) apply(q *sql.Query) error {
	var n int
	if k := s.KNN; k != nil {
		n++
		q.KNNSearch(k.Column, k.Vector, k.K, searchOptions(k.Metric, k.Score, nil)...)
	}
	if m := s.Similarity; m != nil {
		n++
		q.SimilaritySearch(m.Column, m.Vector, searchOptions(m.Metric, m.Score, m.Threshold)...)
	}
	if t := s.Text; t != nil {
		n++
		q.TextSearch(t.Columns, t.Terms)
	}
	if h := s.Hybrid; h != nil {
		n++
		var opts []sql.SearchOption
		if h.RecencyColumn != "" {
			opts = append(opts, sql.WithRecencyColumn(h.RecencyColumn))
		}
		q.HybridRanking(h.Weights, opts...)
	}
	if n != 1 {
		return fmt.Errorf("expect exactly one operation, got %d", n)
	}
	return nil
}

func searchOptions(metric, score string, threshold *float64) []sql.SearchOption {
	var opts []sql.SearchOption
	if metric != "" {
		opts = append(opts, sql.WithMetric(vector.Metric(metric)))
	}
	if score != "" {
		opts = append(opts, sql.WithScore(score))
	}
	if threshold != nil {
		opts = append(opts, sql.WithThreshold(*threshold))
	}
	return opts
}

// defaultVectorDB returns the built-in vector dialect of a SQL dialect.
func defaultVectorDB(name string) string {
	switch name {
	case dialect.MySQL:
		return vector.NameMySQL
	case dialect.SQLite:
		return vector.NameSQLiteVec
	default:
		return vector.NamePGVector
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
