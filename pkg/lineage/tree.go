package lineage

import "github.com/fadhilkurnia/sedann/pkg/math/vector"

// Tree is the approximate nearest neighbor index. See the package
// documentation for the overall design. Not safe for concurrent use.
type Tree struct {
	cfg     Config
	dist    vector.DistanceFunc
	nextVID VectorID
	root    *node
}

// New creates a tree with the default tuning for the given dimension.
func New(dim int) (*Tree, error) {
	return NewWithConfig(DefaultConfig(dim))
}

// NewWithConfig creates a tree from an explicit configuration. Zero
// fields other than Dim are filled from DefaultConfig.
func NewWithConfig(cfg Config) (*Tree, error) {
	def := DefaultConfig(cfg.Dim)
	if cfg.MaxCentroids == 0 {
		cfg.MaxCentroids = def.MaxCentroids
	}
	if cfg.MaxVectors == 0 {
		cfg.MaxVectors = def.MaxVectors
	}
	if cfg.InsertBeamWidth == 0 {
		cfg.InsertBeamWidth = def.InsertBeamWidth
	}
	if cfg.QueryBeamWidth == 0 {
		cfg.QueryBeamWidth = def.QueryBeamWidth
	}
	if cfg.TieTolerance == 0 {
		cfg.TieTolerance = def.TieTolerance
	}
	if cfg.Distance == nil {
		cfg.Distance = vector.L2Squared
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Tree{cfg: cfg, dist: cfg.Distance}, nil
}

// Dim returns the vector dimension the tree was constructed with.
func (t *Tree) Dim() int {
	return t.cfg.Dim
}

// Len returns the number of vectors inserted so far.
func (t *Tree) Len() int {
	return int(t.nextVID)
}

// Insert adds v to the index and returns its assigned id. The tree keeps
// a reference to v, not a copy; the row must stay alive and unmodified
// for the tree's lifetime.
func (t *Tree) Insert(v []float32) (VectorID, error) {
	if len(v) != t.cfg.Dim {
		return 0, ErrDimensionMismatch
	}

	if t.root == nil {
		t.root = newNode(true, t.cfg.Dim, t.cfg.MaxCentroids)
	}

	target := t.findTargetLeaf(v)
	target.insert(t.nextVID, v, t.cfg.MaxVectors, t.dist)
	if target.isFull() {
		t.splitNode(target)
	}

	id := t.nextVID
	t.nextVID++
	return id, nil
}

// findTargetLeaf descends to the leaf whose centroid region should hold
// v, keeping a bounded best-first frontier over inner levels.
func (t *Tree) findTargetLeaf(v []float32) *node {
	if len(t.root.children) == 0 {
		return t.root
	}

	f := newFrontier(t.cfg.InsertBeamWidth)
	for i, child := range t.root.children {
		f.push(t.dist(t.root.centroids[i], v), child)
	}

	var best *node
	bestDist := float32(0)
	for f.len() > 0 {
		d, n := f.popMin()
		if n.leaf {
			if best == nil || d < bestDist {
				best = n
				bestDist = d
			}
			continue
		}
		for i, child := range n.children {
			f.push(t.dist(n.centroids[i], v), child)
		}
	}
	return best
}

// splitNode splits a full node in two by k-means over its centroids and
// promotes the two partition means into the parent, recursing upward and
// growing a new root when the split reaches it.
func (t *Tree) splitNode(n *node) {
	p := n.parent
	if p == nil {
		p = newNode(false, t.cfg.Dim, t.cfg.MaxCentroids)
		t.root = p
		n.parent = p
		n.parentIndex = 0
	}

	assign, superA, superB := twoMeans(t.cfg.Dim, n.centroids, t.dist)

	// Partition the entries, preserving relative order in both halves.
	// Entries tagged 0 stay here, entries tagged 1 move to the sibling.
	r := newNode(n.leaf, t.cfg.Dim, t.cfg.MaxCentroids)
	keepCentroids := n.centroids[:0:0]
	var keepClusters []*cluster
	var keepChildren []*node
	for i, centroid := range n.centroids {
		if assign[i] == 0 {
			keepCentroids = append(keepCentroids, centroid)
			if n.leaf {
				keepClusters = append(keepClusters, n.clusters[i])
			} else {
				keepChildren = append(keepChildren, n.children[i])
			}
		} else {
			r.centroids = append(r.centroids, centroid)
			if n.leaf {
				r.clusters = append(r.clusters, n.clusters[i])
			} else {
				r.children = append(r.children, n.children[i])
			}
		}
	}
	n.centroids = keepCentroids
	n.clusters = keepClusters
	n.children = keepChildren

	if !n.leaf {
		for i, child := range n.children {
			child.parent = n
			child.parentIndex = i
		}
		for i, child := range r.children {
			child.parent = r
			child.parentIndex = i
		}
	}

	if len(p.centroids) == 0 {
		// Fresh root: it adopts both halves directly.
		p.centroids = [][]float32{superA, superB}
		p.children = []*node{n, r}
	} else {
		at := n.parentIndex
		p.centroids[at] = superA
		p.centroids = append(p.centroids, nil)
		copy(p.centroids[at+2:], p.centroids[at+1:])
		p.centroids[at+1] = superB

		p.children = append(p.children, nil)
		copy(p.children[at+2:], p.children[at+1:])
		p.children[at+1] = r
	}
	for i, child := range p.children {
		child.parent = p
		child.parentIndex = i
	}

	if p.isFull() {
		t.splitNode(p)
	}
}

// Depth returns the length of any root-to-leaf path. All leaves sit at
// the same depth: the tree only grows by pushing a new root on top.
func (t *Tree) Depth() int {
	depth := 0
	for n := t.root; n != nil; {
		depth++
		if n.leaf {
			break
		}
		n = n.children[0]
	}
	return depth
}

// NumNodes returns the total node count, inner and leaf.
func (t *Tree) NumNodes() int {
	return countNodes(t.root, func(*node) bool { return true })
}

// NumLeafNodes returns the number of leaf nodes.
func (t *Tree) NumLeafNodes() int {
	return countNodes(t.root, func(n *node) bool { return n.leaf })
}

func countNodes(n *node, pred func(*node) bool) int {
	if n == nil {
		return 0
	}
	count := 0
	if pred(n) {
		count++
	}
	for _, child := range n.children {
		count += countNodes(child, pred)
	}
	return count
}
