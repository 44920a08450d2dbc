package vector

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq"
)

func TestLoad(t *testing.T) {
	const file = `
active: docs
dialects:
  docs:
    base: pgvector
    metric: l2
    k: 20
    threshold: 0.8
  chunks:
    base: sqlite-vec
    placement: where
  mysql: {}
`
	r := NewRegistry(WithBuiltins())
	// The chunks dialect reuses the sqlite-vec templates, which have no KNN
	// template for a where placement.
	err := Load(strings.NewReader(file), r)
	require.ErrorIs(t, err, veloq.ErrInvalidConfig)

	r = NewRegistry(WithBuiltins())
	require.NoError(t, Load(strings.NewReader(strings.Replace(file, "base: sqlite-vec\n", "base: sqlite-vec0\n", 1)), r))
	assert.Equal(t, "docs", r.Active())

	docs, ok := r.Lookup("docs")
	require.True(t, ok)
	assert.Equal(t, L2, docs.DefaultMetric)
	assert.Equal(t, 20, docs.DefaultK)
	assert.Equal(t, 0.8, docs.DefaultThreshold)
	assert.Equal(t, PlaceOrderBy, docs.Placement)

	chunks, ok := r.Lookup("chunks")
	require.True(t, ok)
	assert.Equal(t, PlaceWhere, chunks.Placement)
	assert.Equal(t, DefaultK, chunks.DefaultK)

	_, ok = r.Lookup(NameMySQL)
	require.True(t, ok)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		want error
	}{
		{"unknown_base", "dialects:\n  x:\n    base: faiss\n", veloq.ErrInvalidConfig},
		{"bad_placement", "dialects:\n  x:\n    base: pgvector\n    placement: having\n", veloq.ErrInvalidConfig},
		{"unsupported_metric", "dialects:\n  x:\n    base: mysql\n    metric: inner_product\n", veloq.ErrInvalidConfig},
		{"unknown_active", "active: nope\n", veloq.ErrUnknownVectorDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Load(strings.NewReader(tt.file), NewRegistry(WithBuiltins()))
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("malformed", func(t *testing.T) {
		err := Load(strings.NewReader("dialects: [1, 2"), NewRegistry())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vector: decode config")
	})

	t.Run("frozen", func(t *testing.T) {
		r := NewRegistry(WithBuiltins())
		r.Freeze()
		err := Load(strings.NewReader("dialects:\n  x:\n    base: pgvector\n"), r)
		require.ErrorIs(t, err, veloq.ErrRegistryFrozen)
	})
}

func TestLoadEmpty(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Load(strings.NewReader(""), r))
	assert.Empty(t, r.Names())
}

func TestLoadFile(t *testing.T) {
	r := NewRegistry(WithBuiltins())
	require.NoError(t, LoadFile(filepath.Join("testdata", "vector.yaml"), r))
	assert.Equal(t, "search", r.Active())
	c, ok := r.Lookup("search")
	require.True(t, ok)
	assert.Equal(t, 10, c.DefaultK)

	err := LoadFile(filepath.Join("testdata", "missing.yaml"), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector: open config")
}
