package vector

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/veloq"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(WithBuiltins())
	require.NoError(t, r.Err())
	assert.Equal(t, []string{NameDuckDB, NameMySQL, NamePGVector, NameSQLiteVec, NameSQLiteVec0}, r.Names())
	assert.Empty(t, r.Active())

	_, _, err := r.Resolve("")
	require.ErrorIs(t, err, veloq.ErrNoVectorDB)

	require.NoError(t, r.SetActive(NamePGVector))
	name, c, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, NamePGVector, name)
	assert.True(t, c.ParamVectors)

	name, c, err = r.Resolve(NameDuckDB)
	require.NoError(t, err)
	assert.Equal(t, NameDuckDB, name)
	assert.False(t, c.ParamVectors)
	assert.Equal(t, NamePGVector, r.Active(), "override does not change the active default")

	_, _, err = r.Resolve("faiss")
	require.ErrorIs(t, err, veloq.ErrUnknownVectorDB)
	require.ErrorIs(t, r.SetActive("faiss"), veloq.ErrUnknownVectorDB)
	assert.Equal(t, NamePGVector, r.Active())
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry(WithBuiltins(), WithActive(NamePGVector))
	require.NoError(t, r.Err())
	c := PGVector()
	c.DefaultK = 50
	require.NoError(t, r.Register(NamePGVector, c))
	got, ok := r.Lookup(NamePGVector)
	require.True(t, ok)
	assert.Equal(t, 50, got.DefaultK)

	c.DefaultK = 1
	assert.Equal(t, 50, got.DefaultK, "registered configs are copies")
}

func TestRegistryOptions(t *testing.T) {
	r := NewRegistry(WithActive("docs"), WithConfig("docs", PGVector()))
	require.ErrorIs(t, r.Err(), veloq.ErrUnknownVectorDB)

	r = NewRegistry(WithConfig("docs", Config{}))
	require.ErrorIs(t, r.Err(), veloq.ErrInvalidConfig)

	r = NewRegistry(WithConfig("docs", PGVector()), WithActive("docs"))
	require.NoError(t, r.Err())
	assert.Equal(t, "docs", r.Active())
}

func TestRegistryFreeze(t *testing.T) {
	r := NewRegistry(WithBuiltins(), WithActive(NameSQLiteVec))
	r.Freeze()
	assert.True(t, r.Frozen())
	require.ErrorIs(t, r.Register("x", PGVector()), veloq.ErrRegistryFrozen)
	require.ErrorIs(t, r.SetActive(NamePGVector), veloq.ErrRegistryFrozen)
	assert.Equal(t, NameSQLiteVec, r.Active())
	_, ok := r.Lookup("x")
	assert.False(t, ok)
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry(WithBuiltins(), WithActive(NamePGVector))
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			return r.Register(fmt.Sprintf("custom_%d", i), MySQL())
		})
		g.Go(func() error {
			name, _, err := r.Resolve("")
			if err == nil && name != NamePGVector {
				return fmt.Errorf("resolved %q", name)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	var custom int
	for _, name := range r.Names() {
		if strings.HasPrefix(name, "custom_") {
			custom++
		}
	}
	assert.Equal(t, 16, custom)
}
