package lineage

import "github.com/fadhilkurnia/sedann/pkg/math/vector"

// node is a multi-way branch carrying up to maxCentroids centroids. In a
// leaf node each centroid pairs with a cluster of raw vectors; in an
// inner node each centroid represents a child subtree. Exactly one of
// clusters/children is populated, selected by leaf.
//
// A leaf keeps centroids[i] equal to clusters[i].centroid after every
// insert touching entry i. Inner centroids are refreshed only when the
// subtree is re-partitioned during a split; between splits they drift.
// That laziness is a deliberate accuracy/throughput trade-off.
type node struct {
	leaf         bool
	dim          int
	maxCentroids int

	centroids [][]float32
	clusters  []*cluster
	children  []*node

	parent      *node // nil for root
	parentIndex int   // parent.children[parentIndex] == this node
}

func newNode(leaf bool, dim, maxCentroids int) *node {
	return &node{
		leaf:         leaf,
		dim:          dim,
		maxCentroids: maxCentroids,
	}
}

func (n *node) isFull() bool {
	return len(n.centroids) == n.maxCentroids
}

// insert routes the vector into the closest cluster of this leaf and
// splits that cluster in two once it runs nearly full. Splitting while
// this node is already at fan-out is deferred: the tree splits the node
// itself right after the insert returns.
func (n *node) insert(vid VectorID, v []float32, maxVectors int, dist vector.DistanceFunc) {
	if !n.leaf {
		panic("lineage: insert into non-leaf node")
	}

	if len(n.centroids) == 0 {
		c := newCluster(n.dim, maxVectors)
		c.insert(vid, v)
		n.clusters = append(n.clusters, c)
		n.centroids = append(n.centroids, c.centroid)
		return
	}

	cid := n.closestCentroid(v, dist)

	if !n.clusters[cid].insert(vid, v) {
		// The cluster sat at capacity because an earlier split was
		// deferred while this node was full. The node has room again
		// (the tree splits full nodes immediately), so split now and
		// route the vector to the nearer half.
		n.spliceSplit(cid, dist)
		if dist(n.centroids[cid+1], v) < dist(n.centroids[cid], v) {
			cid = cid + 1
		}
		n.clusters[cid].insert(vid, v)
	}
	n.centroids[cid] = n.clusters[cid].centroid

	if n.clusters[cid].isAlmostFull() && len(n.centroids) < n.maxCentroids {
		n.spliceSplit(cid, dist)
	}
}

// closestCentroid returns the index of the centroid nearest to v, lowest
// index winning ties.
func (n *node) closestCentroid(v []float32, dist vector.DistanceFunc) int {
	best := 0
	bestDist := dist(n.centroids[0], v)
	for i := 1; i < len(n.centroids); i++ {
		if d := dist(n.centroids[i], v); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// spliceSplit replaces cluster cid with its two k-means halves, which
// occupy positions cid and cid+1; entries to the right shift by one.
func (n *node) spliceSplit(cid int, dist vector.DistanceFunc) {
	a, b := splitCluster(n.clusters[cid], dist)

	n.clusters = append(n.clusters, nil)
	copy(n.clusters[cid+2:], n.clusters[cid+1:])
	n.clusters[cid] = a
	n.clusters[cid+1] = b

	n.centroids = append(n.centroids, nil)
	copy(n.centroids[cid+2:], n.centroids[cid+1:])
	n.centroids[cid] = a.centroid
	n.centroids[cid+1] = b.centroid
}

// splitCluster partitions c's vectors into two new clusters by local
// k-means (k=2). Relative order within each half is preserved and each
// half carries the computed mean as its centroid. The input cluster is
// discarded by the caller.
func splitCluster(c *cluster, dist vector.DistanceFunc) (*cluster, *cluster) {
	assign, meanA, meanB := twoMeans(c.dim, c.vectors, dist)

	a := newCluster(c.dim, c.maxVectors)
	b := newCluster(c.dim, c.maxVectors)
	for i, v := range c.vectors {
		if assign[i] == 0 {
			a.vectors = append(a.vectors, v)
			a.vids = append(a.vids, c.vids[i])
		} else {
			b.vectors = append(b.vectors, v)
			b.vids = append(b.vids, c.vids[i])
		}
	}
	copy(a.centroid, meanA)
	copy(b.centroid, meanB)
	return a, b
}
