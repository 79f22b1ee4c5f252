package lineage

import "github.com/fadhilkurnia/sedann/pkg/math/vector"

// almostFullRatio is the fill fraction above which a cluster is split.
const almostFullRatio = 0.90

// cluster is the leaf storage unit: a bounded bag of vector references
// with a maintained centroid. The centroid is the arithmetic mean of the
// held vectors, updated incrementally on each insert; it is not
// necessarily equal to any held vector.
type cluster struct {
	dim        int
	maxVectors int
	centroid   []float32
	vectors    [][]float32 // references into the caller's vector store
	vids       []VectorID  // parallel to vectors
}

func newCluster(dim, maxVectors int) *cluster {
	return &cluster{
		dim:        dim,
		maxVectors: maxVectors,
		centroid:   make([]float32, dim),
	}
}

// insert appends the vector and folds it into the centroid. Returns
// false if the cluster is at capacity; the vector is not stored in that
// case.
func (c *cluster) insert(vid VectorID, v []float32) bool {
	if len(c.vectors) == c.maxVectors {
		return false
	}

	c.vectors = append(c.vectors, v)
	c.vids = append(c.vids, vid)
	vector.UpdateMean(len(c.vectors)-1, c.centroid, v)
	return true
}

// isAlmostFull reports whether the fill fraction exceeds 90%. Splits
// trigger here on the insert that pushes the fill past 90%; for
// capacities of ten or fewer that is the insert that fills the cluster.
// A cluster can stay at capacity only when its split was deferred
// because the node was at fan-out (see node.insert).
func (c *cluster) isAlmostFull() bool {
	return float32(len(c.vectors))/float32(c.maxVectors) > almostFullRatio
}

func (c *cluster) len() int {
	return len(c.vectors)
}
