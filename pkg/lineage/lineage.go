// Package lineage implements an in-memory approximate nearest neighbor
// index for dense float32 vectors.
//
// The index is a height-balanced, multi-way tree of centroids. Leaves
// group vectors into fixed-capacity clusters, each with an incrementally
// maintained centroid; inner nodes carry one representative centroid per
// subtree. Rebalancing is split-and-promote: a nearly full cluster is
// split in two by a local k-means (k=2) pass, and a node that exceeds its
// fan-out is split the same way over its centroids, promoting two
// representatives into the parent and growing a new root when needed.
//
// Two online operations are supported: inserting a vector (which assigns
// a dense, monotonically increasing VectorID) and approximate top-k
// search. Both descend the tree with a bounded beam over centroid
// distances.
//
// Example Usage:
//
//	tree, err := lineage.New(128)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, v := range vectors {
//		if _, err := tree.Insert(v); err != nil {
//			log.Fatal(err)
//		}
//	}
//
//	results, err := tree.Search(ctx, query, 10)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, r := range results {
//		fmt.Printf("id=%d dist=%.3f\n", r.ID, r.Distance)
//	}
//
// The index stores references to the caller's vector rows, never copies.
// Rows must stay alive and unmodified for the lifetime of the tree (see
// package vecstore for a storage arena that guarantees this).
//
// The tree is not safe for concurrent use; callers that share a tree
// across goroutines must serialize access externally.
package lineage

import (
	"errors"
	"fmt"

	"github.com/fadhilkurnia/sedann/pkg/math/vector"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs
	// from the dimension the tree was constructed with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// VectorID identifies an inserted vector. IDs are assigned by the tree in
// insertion order starting at 0; they are dense, monotonic and never
// reused.
type VectorID uint32

// SearchResult is a single approximate nearest neighbor.
type SearchResult struct {
	ID       VectorID
	Vector   []float32
	Distance float32
}

// Config contains construction-time parameters for a Tree. All fields
// are immutable after construction.
type Config struct {
	// Dim is the vector dimension. Required, must be positive.
	Dim int

	// MaxCentroids is the node fan-out C (default: 128).
	MaxCentroids int

	// MaxVectors is the cluster capacity M (default: 8).
	MaxVectors int

	// InsertBeamWidth bounds the frontier when descending to the
	// insertion leaf (default: 400).
	InsertBeamWidth int

	// QueryBeamWidth bounds the frontier during Search (default: 128).
	QueryBeamWidth int

	// TieTolerance is the fraction within which child centroids are
	// considered equally close by the tie-widening traversal
	// (default: 0.10). Only SearchTieWiden uses it.
	TieTolerance float64

	// Distance computes the metric. Defaults to vector.L2Squared; any
	// observably equivalent implementation (e.g. a SIMD kernel) can be
	// substituted.
	Distance vector.DistanceFunc
}

// DefaultConfig returns the default tuning for the given dimension.
func DefaultConfig(dim int) Config {
	return Config{
		Dim:             dim,
		MaxCentroids:    128,
		MaxVectors:      8,
		InsertBeamWidth: 400,
		QueryBeamWidth:  128,
		TieTolerance:    0.10,
		Distance:        vector.L2Squared,
	}
}

func (c *Config) validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dim)
	}
	if c.MaxCentroids < 2 {
		return fmt.Errorf("max centroids per node must be >= 2, got %d", c.MaxCentroids)
	}
	if c.MaxVectors < 2 {
		return fmt.Errorf("max vectors per cluster must be >= 2, got %d", c.MaxVectors)
	}
	if c.InsertBeamWidth < 1 {
		return fmt.Errorf("insert beam width must be >= 1, got %d", c.InsertBeamWidth)
	}
	if c.QueryBeamWidth < 1 {
		return fmt.Errorf("query beam width must be >= 1, got %d", c.QueryBeamWidth)
	}
	if c.TieTolerance < 0 {
		return fmt.Errorf("tie tolerance must be >= 0, got %f", c.TieTolerance)
	}
	return nil
}
