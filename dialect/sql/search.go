package sql

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect/sql/vector"
	"github.com/syssam/veloq/schema"
)

// VectorOpKind is the kind of a vector operation.
type VectorOpKind int

// Vector operation kinds.
const (
	OpKNN VectorOpKind = iota
	OpSimilarity
	OpText
	OpHybrid
)

// String implements the fmt.Stringer interface.
func (k VectorOpKind) String() string {
	switch k {
	case OpKNN:
		return "KNN"
	case OpSimilarity:
		return "SIMILARITY"
	case OpText:
		return "TEXT"
	case OpHybrid:
		return "HYBRID"
	default:
		return "UNKNOWN"
	}
}

// Hybrid ranking signals with a built-in meaning. Any other weight key names
// a numeric column.
const (
	SignalVector  = "vector"
	SignalText    = "text"
	SignalRecency = "recency"
)

// Weights maps hybrid ranking signals to their weights.
type Weights map[string]float64

func (w Weights) validate() error {
	if len(w) == 0 {
		return veloq.ConfigErrorf("HybridRanking", veloq.ErrInvalidWeights, "no weights")
	}
	var total float64
	for _, key := range slices.Sorted(maps.Keys(w)) {
		v := w[key]
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return veloq.ConfigErrorf("HybridRanking", veloq.ErrInvalidWeights, "weight %q is not finite", key)
		case v < 0:
			return veloq.ConfigErrorf("HybridRanking", veloq.ErrInvalidWeights, "weight %q is negative", key)
		case !isSignal(key) && !isValidIdentifier(key):
			return veloq.ConfigErrorf("HybridRanking", veloq.ErrInvalidWeights, "invalid signal %q", key)
		}
		total += v
	}
	if total == 0 {
		return veloq.ConfigErrorf("HybridRanking", veloq.ErrInvalidWeights, "all weights are zero")
	}
	return nil
}

func (w Weights) clone() Weights {
	return maps.Clone(w)
}

// signals returns the keys with a positive weight: the built-in signals
// first, then the column signals in name order.
func (w Weights) signals() []string {
	var keys []string
	for _, s := range []string{SignalVector, SignalText, SignalRecency} {
		if w[s] > 0 {
			keys = append(keys, s)
		}
	}
	var cols []string
	for k, v := range w {
		if !isSignal(k) && v > 0 {
			cols = append(cols, k)
		}
	}
	slices.Sort(cols)
	return append(keys, cols...)
}

func isSignal(key string) bool {
	return key == SignalVector || key == SignalText || key == SignalRecency
}

// vectorOp is a vector operation recorded on a query.
type vectorOp struct {
	kind      VectorOpKind
	columns   []string
	vec       []float32
	k         int
	metric    vector.Metric
	threshold *float64
	score     string
	terms     string
	weights   Weights
	recency   string
}

// SearchOption configures a vector operation.
type SearchOption func(*vectorOp)

// WithMetric sets the distance metric. The default is the dialect default.
func WithMetric(m vector.Metric) SearchOption {
	return func(op *vectorOp) {
		op.metric = m
	}
}

// WithThreshold filters out rows whose similarity is below t.
func WithThreshold(t float64) SearchOption {
	return func(op *vectorOp) {
		op.threshold = &t
	}
}

// WithScore projects the search score as a column named alias.
func WithScore(alias string) SearchOption {
	return func(op *vectorOp) {
		op.score = alias
	}
}

// WithRecencyColumn sets the timestamp column of the hybrid recency signal.
func WithRecencyColumn(column string) SearchOption {
	return func(op *vectorOp) {
		op.recency = column
	}
}

func (op *vectorOp) check() error {
	name := op.kind.String()
	for _, c := range op.columns {
		if !isValidIdentifier(c) {
			return veloq.ConfigErrorf(name, veloq.ErrInvalidIdentifier, "column %q", c)
		}
	}
	if op.kind == OpKNN || op.kind == OpSimilarity {
		if err := vector.CheckVector(op.vec); err != nil {
			return err
		}
		op.vec = slices.Clone(op.vec)
	}
	if t := op.threshold; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return veloq.ConfigErrorf(name, veloq.ErrInvalidConfig, "threshold must be finite")
	}
	if op.score != "" && !isValidIdentifier(op.score) {
		return veloq.ConfigErrorf(name, veloq.ErrInvalidIdentifier, "score alias %q", op.score)
	}
	if op.kind == OpHybrid && !isValidIdentifier(op.recency) {
		return veloq.ConfigErrorf(name, veloq.ErrInvalidIdentifier, "recency column %q", op.recency)
	}
	return nil
}

// searchPlan holds the SQL templates generated for the vector operations
// of a query. Templates carry the tokens of Builder.Bind.
type searchPlan struct {
	name   string
	cfg    *vector.Config
	scores []string
	where  []string
	order  []string
	k      int
}

// plan resolves the vector dialect and renders every vector operation.
func (q *Query) plan(b *Builder) (*searchPlan, error) {
	if len(q.vectorOps) == 0 {
		return &searchPlan{}, nil
	}
	if q.registry == nil {
		return nil, veloq.ConfigErrorf("ToSQL", veloq.ErrNoVectorDB, "query has no vector registry")
	}
	name, cfg, err := q.registry.Resolve(q.vectorDB)
	if err != nil {
		return nil, err
	}
	p := &searchPlan{name: name, cfg: cfg}
	var (
		order  []string
		hybrid string
		last   = map[VectorOpKind]*vectorOp{}
	)
	for _, op := range q.vectorOps {
		switch op.kind {
		case OpKNN, OpSimilarity:
			m, err := p.metric(op)
			if err != nil {
				return nil, err
			}
			col := op.columns[0]
			if op.kind == OpKNN {
				k := op.k
				if k == 0 {
					k = cfg.DefaultK
				}
				if p.k == 0 {
					p.k = k
				}
				if cfg.Placement == vector.PlaceWhere {
					p.where = append(p.where, cfg.KNN(col, p.operand(b, op.vec), k, m))
				}
				order = append(order, cfg.Distance(col, p.operand(b, op.vec), m)+" ASC")
			} else {
				t := op.threshold
				if t == nil && cfg.Placement == vector.PlaceWhere {
					t = &cfg.DefaultThreshold
				}
				if t != nil {
					p.where = append(p.where, cfg.Match(col, p.operand(b, op.vec), b.Bind(*t), m))
				}
				order = append(order, cfg.Similarity(col, p.operand(b, op.vec), m)+" DESC")
			}
			if op.score != "" {
				p.scores = append(p.scores, cfg.ScoreExpr(col, p.operand(b, op.vec), m)+" AS "+op.score)
			}
			last[OpSimilarity] = op
		case OpText:
			if cfg.TextMatch == nil {
				return nil, veloq.ConfigErrorf("TextSearch", veloq.ErrUnsupported, "vector dialect %q has no text match template", name)
			}
			for _, col := range op.columns {
				p.where = append(p.where, cfg.TextMatch(col, b.Bind(cfg.TextValue(op.terms))))
			}
			last[OpText] = op
		case OpHybrid:
			expr, err := p.composite(b, op, last[OpSimilarity], last[OpText])
			if err != nil {
				return nil, err
			}
			hybrid = expr
		}
	}
	if hybrid != "" {
		order = []string{hybrid}
	}
	p.order = order
	return p, nil
}

func (p *searchPlan) metric(op *vectorOp) (vector.Metric, error) {
	m := op.metric
	if m == "" {
		m = p.cfg.DefaultMetric
	}
	if !p.cfg.Supports(m) {
		return "", veloq.ConfigErrorf(op.kind.String(), veloq.ErrUnsupported, "metric %q on vector dialect %q", m, p.name)
	}
	return m, nil
}

// operand returns the vector as a bound parameter token, or inline.
func (p *searchPlan) operand(b *Builder, v []float32) string {
	s := p.cfg.FormatVector(v)
	if p.cfg.ParamVectors {
		return b.Bind(s)
	}
	return s
}

// composite renders the hybrid ranking term from the latest vector and text
// operations declared before it.
func (p *searchPlan) composite(b *Builder, op, vec, text *vectorOp) (string, error) {
	var terms []string
	for _, signal := range op.weights.signals() {
		var expr string
		switch signal {
		case SignalVector:
			if vec == nil {
				return "", veloq.ConfigErrorf("HybridRanking", veloq.ErrInvalidWeights, "vector signal without a preceding vector search")
			}
			m, err := p.metric(vec)
			if err != nil {
				return "", err
			}
			expr = p.cfg.Similarity(vec.columns[0], p.operand(b, vec.vec), m)
		case SignalText:
			if text == nil {
				return "", veloq.ConfigErrorf("HybridRanking", veloq.ErrInvalidWeights, "text signal without a preceding text search")
			}
			if p.cfg.TextScore == nil {
				return "", veloq.ConfigErrorf("HybridRanking", veloq.ErrUnsupported, "vector dialect %q has no text score template", p.name)
			}
			scores := make([]string, len(text.columns))
			for i, col := range text.columns {
				scores[i] = p.cfg.TextScore(col, b.Bind(p.cfg.TextValue(text.terms)))
			}
			expr = strings.Join(scores, " + ")
		case SignalRecency:
			if p.cfg.Recency == nil {
				return "", veloq.ConfigErrorf("HybridRanking", veloq.ErrUnsupported, "vector dialect %q has no recency template", p.name)
			}
			expr = p.cfg.Recency(op.recency)
		default:
			expr = signal
		}
		terms = append(terms, strconv.FormatFloat(op.weights[signal], 'f', -1, 64)+" * ("+expr+")")
	}
	return "(" + strings.Join(terms, " + ") + ") DESC", nil
}

// checkSchema validates the query against the schema set with WithSchema.
func (q *Query) checkSchema() error {
	if q.schema == nil || q.table.sub != nil {
		return nil
	}
	t, ok := q.schema.Table(q.table.name)
	if !ok {
		return veloq.ConfigErrorf("ToSQL", veloq.ErrUnknownTable, "%q", q.table.name)
	}
	for _, a := range q.payload {
		if _, ok := t.Column(a.Column); !ok {
			return veloq.ConfigErrorf("ToSQL", veloq.ErrUnknownColumn, "%q.%q", t.Name, a.Column)
		}
	}
	for _, op := range q.vectorOps {
		for _, name := range op.columns {
			c, ok := q.column(t, name)
			switch {
			case ok:
			case len(q.joins) > 0:
				// Columns of joined tables are not checked.
				continue
			default:
				return veloq.ConfigErrorf(op.kind.String(), veloq.ErrUnknownColumn, "%q.%q", t.Name, name)
			}
			switch op.kind {
			case OpKNN, OpSimilarity:
				if c.Type != schema.TypeVector {
					return veloq.ConfigErrorf(op.kind.String(), veloq.ErrUnknownColumn, "%q is %s, not a vector", name, c.Type)
				}
				if c.Dim > 0 && c.Dim != len(op.vec) {
					return veloq.ConfigErrorf(op.kind.String(), veloq.ErrInvalidVector, "%q has %d dimensions, got %d", name, c.Dim, len(op.vec))
				}
			case OpText:
				if !c.Type.Textual() {
					return veloq.ConfigErrorf(op.kind.String(), veloq.ErrUnknownColumn, "%q is %s, not text", name, c.Type)
				}
			}
		}
	}
	return nil
}

// column looks up a possibly qualified column of the target table.
func (q *Query) column(t *schema.Table, name string) (*schema.Column, bool) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if qual := name[:i]; qual != t.Name && qual != q.table.alias {
			return nil, false
		}
		name = name[i+1:]
	}
	return t.Column(name)
}
