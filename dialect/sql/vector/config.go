package vector

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/veloq"
)

// Metric is a vector distance metric.
type Metric string

// Supported metrics.
const (
	Cosine       Metric = "cosine"
	L2           Metric = "l2"
	InnerProduct Metric = "inner_product"
)

// Placement tells the compiler where to splice the expressions generated for
// KNN and similarity operations.
type Placement int

const (
	// PlaceOrderBy ranks rows in ORDER BY only. A similarity threshold
	// predicate is added to WHERE only when the caller supplies a threshold.
	PlaceOrderBy Placement = iota
	// PlaceWhere splices a KNN or match predicate into WHERE, in addition
	// to the ranking term in ORDER BY.
	PlaceWhere
)

// String implements the fmt.Stringer interface.
func (p Placement) String() string {
	if p == PlaceWhere {
		return "where"
	}
	return "order_by"
}

// ParsePlacement parses a placement name as written in configuration files.
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "where":
		return PlaceWhere, nil
	case "order_by", "orderby", "order by":
		return PlaceOrderBy, nil
	default:
		return 0, veloq.ConfigErrorf("ParsePlacement", veloq.ErrInvalidConfig, "unknown placement %q", s)
	}
}

// Default values applied by Register when a config leaves them unset.
const (
	DefaultMetric    = Cosine
	DefaultK         = 5
	DefaultThreshold = 0.7
)

// Config is a named backend template for vector operations. Templates are
// callbacks receiving the column, the vector operand and the operation
// parameters, and return SQL text. The vector operand is either a
// placeholder (ParamVectors) or the FormatVector output spliced verbatim.
type Config struct {
	// KNN returns the WHERE predicate of a k-nearest-neighbor search.
	// It is only used when Placement is PlaceWhere.
	KNN func(column, vec string, k int, m Metric) string
	// Distance returns the distance expression. KNN searches order by it ascending.
	Distance func(column, vec string, m Metric) string
	// Similarity returns the similarity score expression, higher is closer.
	Similarity func(column, vec string, m Metric) string
	// Match returns the predicate keeping rows whose similarity is at least
	// the threshold. threshold is a placeholder.
	Match func(column, vec, threshold string, m Metric) string
	// Score returns the embedding-search score projected by WithScore.
	// Defaults to Similarity.
	Score func(column, vec string, m Metric) string
	// TextMatch returns a text matching predicate. ph is a placeholder.
	TextMatch func(column, ph string) string
	// TextScore returns a text relevance expression used by hybrid ranking.
	TextScore func(column, ph string) string
	// TextArg converts search terms into the value bound to the text
	// placeholders. Defaults to the terms unchanged.
	TextArg func(terms string) string
	// Recency returns a recency signal in [0, 1] for a timestamp column.
	Recency func(column string) string
	// FormatVector renders a vector as the bound parameter value, or as
	// inline SQL if ParamVectors is false.
	FormatVector func(v []float32) string
	// ParamVectors reports whether the backend accepts vectors as bound
	// parameters.
	ParamVectors bool
	// Metrics lists the supported metrics. Empty means all.
	Metrics []Metric

	DefaultMetric    Metric
	DefaultK         int
	DefaultThreshold float64
	Placement        Placement
}

// Supports reports whether the config supports the metric.
func (c *Config) Supports(m Metric) bool {
	return len(c.Metrics) == 0 || slices.Contains(c.Metrics, m)
}

// ScoreExpr returns the embedding-search score expression.
func (c *Config) ScoreExpr(column, vec string, m Metric) string {
	if c.Score != nil {
		return c.Score(column, vec, m)
	}
	return c.Similarity(column, vec, m)
}

// TextValue returns the value bound for text search terms.
func (c *Config) TextValue(terms string) string {
	if c.TextArg != nil {
		return c.TextArg(terms)
	}
	return terms
}

// validate checks that the required templates are set and fills unset defaults.
func (c *Config) validate(name string) error {
	switch {
	case name == "":
		return veloq.ConfigErrorf("Register", veloq.ErrInvalidConfig, "empty name")
	case c.Distance == nil, c.Similarity == nil, c.Match == nil:
		return veloq.ConfigErrorf("Register", veloq.ErrInvalidConfig, "%q: distance, similarity and match templates are required", name)
	case c.FormatVector == nil:
		return veloq.ConfigErrorf("Register", veloq.ErrInvalidConfig, "%q: missing vector formatter", name)
	case c.Placement == PlaceWhere && c.KNN == nil:
		return veloq.ConfigErrorf("Register", veloq.ErrInvalidConfig, "%q: where placement requires a KNN template", name)
	case c.DefaultK < 0:
		return veloq.ConfigErrorf("Register", veloq.ErrInvalidConfig, "%q: negative default k", name)
	case math.IsNaN(c.DefaultThreshold) || math.IsInf(c.DefaultThreshold, 0):
		return veloq.ConfigErrorf("Register", veloq.ErrInvalidConfig, "%q: threshold must be finite", name)
	}
	if c.DefaultMetric == "" {
		c.DefaultMetric = DefaultMetric
	}
	if c.DefaultK == 0 {
		c.DefaultK = DefaultK
	}
	if c.DefaultThreshold == 0 {
		c.DefaultThreshold = DefaultThreshold
	}
	if !c.Supports(c.DefaultMetric) {
		return veloq.ConfigErrorf("Register", veloq.ErrInvalidConfig, "%q: default metric %q not supported", name, c.DefaultMetric)
	}
	return nil
}

// CheckVector reports an error if v is empty or holds a NaN or Inf component.
func CheckVector(v []float32) error {
	if len(v) == 0 {
		return veloq.ConfigErrorf("CheckVector", veloq.ErrInvalidVector, "empty vector")
	}
	for i, x := range v {
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return veloq.ConfigErrorf("CheckVector", veloq.ErrInvalidVector, "component %d is not finite", i)
		}
	}
	return nil
}

// FormatArray formats v as a bracketed array, e.g. [0.1,0.2,0.3].
// It is the text representation accepted by pgvector, sqlite-vec and MySQL.
func FormatArray(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 8)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// EscapeLike escapes the LIKE wildcards in s using backslash.
func EscapeLike(s string) string {
	if !strings.ContainsAny(s, `%_\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func containsPattern(terms string) string {
	return "%" + EscapeLike(terms) + "%"
}

// PGVector returns the config for PostgreSQL with the pgvector extension.
func PGVector() Config {
	operand := func(v string) string { return v + "::vector" }
	op := func(m Metric) string {
		switch m {
		case L2:
			return "<->"
		case InnerProduct:
			return "<#>"
		default:
			return "<=>"
		}
	}
	distance := func(col, v string, m Metric) string {
		return col + " " + op(m) + " " + operand(v)
	}
	similarity := func(col, v string, m Metric) string {
		switch m {
		case L2:
			return "1 / (1 + (" + distance(col, v, m) + "))"
		case InnerProduct:
			return "(" + distance(col, v, m) + ") * -1"
		default:
			return "1 - (" + distance(col, v, m) + ")"
		}
	}
	return Config{
		Distance:   distance,
		Similarity: similarity,
		Match: func(col, v, thr string, m Metric) string {
			return similarity(col, v, m) + " >= " + thr
		},
		TextMatch: func(col, ph string) string {
			return "to_tsvector('english', " + col + ") @@ plainto_tsquery('english', " + ph + ")"
		},
		TextScore: func(col, ph string) string {
			return "ts_rank(to_tsvector('english', " + col + "), plainto_tsquery('english', " + ph + "))"
		},
		Recency: func(col string) string {
			return "1.0 / (1.0 + EXTRACT(EPOCH FROM (NOW() - " + col + ")) / 86400.0)"
		},
		FormatVector:     FormatArray,
		ParamVectors:     true,
		DefaultMetric:    Cosine,
		DefaultK:         DefaultK,
		DefaultThreshold: DefaultThreshold,
		Placement:        PlaceOrderBy,
	}
}

// SQLiteVec returns the config for SQLite with the sqlite-vec scalar
// distance functions, usable on regular tables.
func SQLiteVec() Config {
	distance := func(col, v string, m Metric) string {
		if m == L2 {
			return "vec_distance_l2(" + col + ", " + v + ")"
		}
		return "vec_distance_cosine(" + col + ", " + v + ")"
	}
	similarity := func(col, v string, m Metric) string {
		if m == L2 {
			return "1.0 / (1.0 + " + distance(col, v, m) + ")"
		}
		return "1.0 - " + distance(col, v, m)
	}
	return Config{
		Distance:   distance,
		Similarity: similarity,
		Match: func(col, v, thr string, m Metric) string {
			return similarity(col, v, m) + " >= " + thr
		},
		TextMatch: func(col, ph string) string {
			return col + ` LIKE ` + ph + ` ESCAPE '\'`
		},
		TextScore: func(col, ph string) string {
			return `(CASE WHEN ` + col + ` LIKE ` + ph + ` ESCAPE '\' THEN 1.0 ELSE 0.0 END)`
		},
		TextArg: containsPattern,
		Recency: func(col string) string {
			return "1.0 / (1.0 + (julianday('now') - julianday(" + col + ")))"
		},
		FormatVector:     FormatArray,
		ParamVectors:     true,
		Metrics:          []Metric{Cosine, L2},
		DefaultMetric:    Cosine,
		DefaultK:         DefaultK,
		DefaultThreshold: DefaultThreshold,
		Placement:        PlaceOrderBy,
	}
}

// SQLiteVec0 returns the config for sqlite-vec vec0 virtual tables, where
// a KNN search is a MATCH constraint in WHERE ordered by the hidden distance column.
func SQLiteVec0() Config {
	c := SQLiteVec()
	c.KNN = func(col, v string, k int, _ Metric) string {
		return col + " MATCH " + v + " AND k = " + strconv.Itoa(k)
	}
	c.Distance = func(string, string, Metric) string { return "distance" }
	c.Placement = PlaceWhere
	return c
}

// MySQL returns the config for MySQL 9 VECTOR columns.
func MySQL() Config {
	name := func(m Metric) string {
		if m == L2 {
			return "EUCLIDEAN"
		}
		return "COSINE"
	}
	distance := func(col, v string, m Metric) string {
		return "DISTANCE(" + col + ", STRING_TO_VECTOR(" + v + "), '" + name(m) + "')"
	}
	similarity := func(col, v string, m Metric) string {
		if m == L2 {
			return "1 / (1 + " + distance(col, v, m) + ")"
		}
		return "1 - " + distance(col, v, m)
	}
	match := func(col, ph string) string {
		return "MATCH(" + col + ") AGAINST(" + ph + " IN NATURAL LANGUAGE MODE)"
	}
	return Config{
		Distance:   distance,
		Similarity: similarity,
		Match: func(col, v, thr string, m Metric) string {
			return similarity(col, v, m) + " >= " + thr
		},
		TextMatch: match,
		TextScore: match,
		Recency: func(col string) string {
			return "1.0 / (1.0 + TIMESTAMPDIFF(SECOND, " + col + ", NOW()) / 86400.0)"
		},
		FormatVector:     FormatArray,
		ParamVectors:     true,
		Metrics:          []Metric{Cosine, L2},
		DefaultMetric:    Cosine,
		DefaultK:         DefaultK,
		DefaultThreshold: DefaultThreshold,
		Placement:        PlaceOrderBy,
	}
}

// DuckDB returns the config for DuckDB fixed-size FLOAT arrays. Vectors are
// spliced inline as typed array literals.
func DuckDB() Config {
	distance := func(col, v string, m Metric) string {
		switch m {
		case L2:
			return "array_distance(" + col + ", " + v + ")"
		case InnerProduct:
			return "array_negative_inner_product(" + col + ", " + v + ")"
		default:
			return "array_cosine_distance(" + col + ", " + v + ")"
		}
	}
	similarity := func(col, v string, m Metric) string {
		switch m {
		case L2:
			return "1.0 / (1.0 + " + distance(col, v, m) + ")"
		case InnerProduct:
			return "array_inner_product(" + col + ", " + v + ")"
		default:
			return "array_cosine_similarity(" + col + ", " + v + ")"
		}
	}
	return Config{
		Distance:   distance,
		Similarity: similarity,
		Match: func(col, v, thr string, m Metric) string {
			return similarity(col, v, m) + " >= " + thr
		},
		TextMatch: func(col, ph string) string {
			return col + ` ILIKE ` + ph + ` ESCAPE '\'`
		},
		TextScore: func(col, ph string) string {
			return `(CASE WHEN ` + col + ` ILIKE ` + ph + ` ESCAPE '\' THEN 1.0 ELSE 0.0 END)`
		},
		TextArg: containsPattern,
		Recency: func(col string) string {
			return "1.0 / (1.0 + date_diff('second', " + col + ", now()) / 86400.0)"
		},
		FormatVector: func(v []float32) string {
			return fmt.Sprintf("%s::FLOAT[%d]", FormatArray(v), len(v))
		},
		DefaultMetric:    Cosine,
		DefaultK:         DefaultK,
		DefaultThreshold: DefaultThreshold,
		Placement:        PlaceOrderBy,
	}
}

// Builtin names registered by WithBuiltins.
const (
	NamePGVector   = "pgvector"
	NameSQLiteVec  = "sqlite-vec"
	NameSQLiteVec0 = "sqlite-vec0"
	NameMySQL      = "mysql"
	NameDuckDB     = "duckdb"
)

// Builtin returns the named built-in config.
func Builtin(name string) (Config, bool) {
	switch name {
	case NamePGVector:
		return PGVector(), true
	case NameSQLiteVec:
		return SQLiteVec(), true
	case NameSQLiteVec0:
		return SQLiteVec0(), true
	case NameMySQL:
		return MySQL(), true
	case NameDuckDB:
		return DuckDB(), true
	default:
		return Config{}, false
	}
}

// BuiltinNames returns the names of the built-in configs.
func BuiltinNames() []string {
	return []string{NamePGVector, NameSQLiteVec, NameSQLiteVec0, NameMySQL, NameDuckDB}
}
