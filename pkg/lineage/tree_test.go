package lineage

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero dimension", cfg: Config{Dim: 0}},
		{name: "negative dimension", cfg: Config{Dim: -3}},
		{name: "fan-out below two", cfg: Config{Dim: 4, MaxCentroids: 1}},
		{name: "cluster capacity below two", cfg: Config{Dim: 4, MaxVectors: 1}},
		{name: "negative tie tolerance", cfg: Config{Dim: 4, TieTolerance: -0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithConfig(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestInsertAssignsDenseIDs(t *testing.T) {
	tree, err := New(2)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		id, err := tree.Insert([]float32{float32(i), float32(-i)})
		require.NoError(t, err)
		assert.Equal(t, VectorID(i), id)
	}
	assert.Equal(t, 10, tree.Len())
}

func TestInsertDimensionMismatch(t *testing.T) {
	tree, err := New(3)
	require.NoError(t, err)

	_, err = tree.Insert([]float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, tree.Len())
}

func TestEmptyTreeObservability(t *testing.T) {
	tree, err := New(2)
	require.NoError(t, err)

	assert.Equal(t, 0, tree.Depth())
	assert.Equal(t, 0, tree.NumNodes())
	assert.Equal(t, 0, tree.NumLeafNodes())

	results, err := tree.Search(context.Background(), []float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// Scenario: two tight squares of four points each, small fan-out. The
// first square fills the initial cluster, splits it, and by the eighth
// insert the root itself has split into two leaves.
func TestTwoSquaresSplitsRootIntoTwoLeaves(t *testing.T) {
	tree, err := NewWithConfig(Config{Dim: 2, MaxCentroids: 4, MaxVectors: 4})
	require.NoError(t, err)

	square := [][]float32{
		{0, 0}, {0, 1}, {1, 0}, {1, 1},
		{10, 10}, {10, 11}, {11, 10}, {11, 11},
	}
	for i, v := range square[:4] {
		id, err := tree.Insert(v)
		require.NoError(t, err)
		require.Equal(t, VectorID(i), id)
	}

	// The fourth insert filled the initial cluster past 90% and split
	// it in place; still a single leaf.
	assert.Equal(t, 1, tree.NumLeafNodes())
	require.Len(t, tree.root.clusters, 2)

	for _, v := range square[4:] {
		_, err := tree.Insert(v)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, tree.Depth())
	assert.Equal(t, 2, tree.NumLeafNodes())
	assert.Equal(t, 3, tree.NumNodes())

	results, err := tree.Search(context.Background(), []float32{10, 10}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, VectorID(4), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

// Scenario: two well-separated blobs inserted interleaved; a query near
// the first blob must only surface ids from it.
func TestTwoBlobsQueryStaysInNearBlob(t *testing.T) {
	tree, err := NewWithConfig(Config{Dim: 3, MaxCentroids: 3, MaxVectors: 2})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	blobs := make([][]float32, 0, 20)
	for i := 0; i < 10; i++ {
		near := []float32{rng.Float32(), rng.Float32(), rng.Float32()}
		far := []float32{100 + rng.Float32(), 100 + rng.Float32(), 100 + rng.Float32()}
		blobs = append(blobs, near, far)
	}
	for _, v := range blobs {
		_, err := tree.Insert(v)
		require.NoError(t, err)
	}

	results, err := tree.Search(context.Background(), []float32{-1, -1, -1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, r := range results {
		assert.Zero(t, r.ID%2, "id %d belongs to the far blob", r.ID)
	}
}

// Scenario: a one-dimensional ascending sweep. The tree must go deep,
// fan out into many leaves, and still answer an exact point query.
func TestAscendingSweepOneDimensional(t *testing.T) {
	tree, err := NewWithConfig(Config{Dim: 1, MaxCentroids: 4, MaxVectors: 8})
	require.NoError(t, err)

	for i := 0; i <= 1000; i++ {
		_, err := tree.Insert([]float32{float32(i)})
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, tree.Depth(), 3)
	assert.GreaterOrEqual(t, tree.NumLeafNodes(), 125)

	results, err := tree.Search(context.Background(), []float32{500}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, VectorID(500), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

// Scenario: sixteen copies of the zero vector. Every split degenerates
// to equal-centroid halves; nothing crashes and everything remains
// retrievable.
func TestAllZeroVectors(t *testing.T) {
	tree, err := NewWithConfig(Config{Dim: 4, MaxCentroids: 4, MaxVectors: 4})
	require.NoError(t, err)

	zero := make([]float32, 4)
	for i := 0; i < 16; i++ {
		id, err := tree.Insert(zero)
		require.NoError(t, err)
		require.Equal(t, VectorID(i), id)
	}

	results, err := tree.Search(context.Background(), zero, 16)
	require.NoError(t, err)
	require.Len(t, results, 16)

	seen := make(map[VectorID]bool)
	for _, r := range results {
		assert.Equal(t, float32(0), r.Distance)
		seen[r.ID] = true
	}
	assert.Len(t, seen, 16)
}

func TestReinsertSameVectorGetsNewID(t *testing.T) {
	tree, err := NewWithConfig(Config{Dim: 2, MaxCentroids: 4, MaxVectors: 4})
	require.NoError(t, err)

	v := []float32{3, 4}
	first, err := tree.Insert(v)
	require.NoError(t, err)
	_, err = tree.Insert([]float32{50, 50})
	require.NoError(t, err)
	second, err := tree.Insert(v)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	results, err := tree.Search(context.Background(), v, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []VectorID{results[0].ID, results[1].ID}
	assert.ElementsMatch(t, []VectorID{first, second}, ids)
	assert.Equal(t, float32(0), results[0].Distance)
	assert.Equal(t, float32(0), results[1].Distance)
}

func TestObservabilityCountsArePure(t *testing.T) {
	tree, err := NewWithConfig(Config{Dim: 2, MaxCentroids: 4, MaxVectors: 4})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		_, err := tree.Insert([]float32{rng.Float32() * 100, rng.Float32() * 100})
		require.NoError(t, err)
	}

	nodes, leaves, depth := tree.NumNodes(), tree.NumLeafNodes(), tree.Depth()
	assert.Equal(t, nodes, tree.NumNodes())
	assert.Equal(t, leaves, tree.NumLeafNodes())
	assert.Equal(t, depth, tree.Depth())
	assert.Greater(t, nodes, leaves)
	assert.GreaterOrEqual(t, depth, 2)
}

func TestDumpLeavesAndStringSummary(t *testing.T) {
	tree, err := NewWithConfig(Config{Dim: 2, MaxCentroids: 4, MaxVectors: 4})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		_, err := tree.Insert([]float32{rng.Float32() * 10, rng.Float32() * 10})
		require.NoError(t, err)
	}

	dump := tree.DumpLeaves()
	assert.NotEmpty(t, dump)
	assert.Contains(t, dump, "leaf 0:")
	assert.Contains(t, tree.String(), "vectors=50")
}
