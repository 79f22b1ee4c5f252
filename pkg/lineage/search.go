package lineage

import (
	"container/heap"
	"context"
	"sort"
)

// frontier is the bounded best-first beam used when descending the tree.
// Entries are kept in ascending distance order; equal distances keep
// arrival order. Once at capacity, a candidate only enters by being
// strictly closer than the current maximum, which it evicts.
type frontier struct {
	capacity int
	entries  []frontierEntry
}

type frontierEntry struct {
	dist float32
	node *node
}

func newFrontier(capacity int) *frontier {
	return &frontier{capacity: capacity}
}

func (f *frontier) len() int {
	return len(f.entries)
}

func (f *frontier) push(d float32, n *node) {
	if len(f.entries) == f.capacity {
		if d >= f.entries[len(f.entries)-1].dist {
			return
		}
		f.entries = f.entries[:len(f.entries)-1]
	}

	at := sort.Search(len(f.entries), func(i int) bool {
		return f.entries[i].dist > d
	})
	f.entries = append(f.entries, frontierEntry{})
	copy(f.entries[at+1:], f.entries[at:])
	f.entries[at] = frontierEntry{dist: d, node: n}
}

func (f *frontier) popMin() (float32, *node) {
	e := f.entries[0]
	f.entries = f.entries[1:]
	return e.dist, e.node
}

// resultHeap is a bounded max-heap keyed on distance: the farthest
// candidate sits on top and is evicted first. Distance ties put the
// higher id on top so lower ids survive eviction.
type resultHeap []resultItem

type resultItem struct {
	dist float32
	id   VectorID
	vec  []float32
}

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].id > h[j].id
}
func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(resultItem))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// add offers a candidate to the bounded top-k set.
func (h *resultHeap) add(k int, item resultItem) {
	if h.Len() < k {
		heap.Push(h, item)
		return
	}
	if item.dist < (*h)[0].dist {
		heap.Pop(h)
		heap.Push(h, item)
	}
}

// emit drains the heap into ascending-distance order.
func (h *resultHeap) emit() []SearchResult {
	out := make([]SearchResult, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		item := heap.Pop(h).(resultItem)
		out[i] = SearchResult{ID: item.id, Vector: item.vec, Distance: item.dist}
	}
	return out
}

// Search returns the approximate k nearest vectors to q in ascending
// distance order. Traversal is a bounded beam over inner levels with
// width Config.QueryBeamWidth; every vector of every cluster in a
// reached leaf is scanned. Fewer than k results are returned when the
// tree holds fewer vectors (or the beam reached fewer).
//
// The context is checked between frontier pops; a canceled context
// aborts the search.
func (t *Tree) Search(ctx context.Context, q []float32, k int) ([]SearchResult, error) {
	if len(q) != t.cfg.Dim {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 || t.root == nil {
		return []SearchResult{}, nil
	}

	results := make(resultHeap, 0, k)

	if len(t.root.children) == 0 {
		t.scanLeaf(t.root, q, k, &results)
		return results.emit(), nil
	}

	f := newFrontier(t.cfg.QueryBeamWidth)
	for i, child := range t.root.children {
		f.push(t.dist(t.root.centroids[i], q), child)
	}

	for f.len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, n := f.popMin()
		if n.leaf {
			t.scanLeaf(n, q, k, &results)
			continue
		}
		for i, child := range n.children {
			f.push(t.dist(n.centroids[i], q), child)
		}
	}

	return results.emit(), nil
}

// SearchTieWiden is the depth-first fallback traversal: at every inner
// node the query descends into each child whose centroid distance is
// within Config.TieTolerance of the closest child's. It trades bounded
// work for simplicity; Search is the primary traversal.
func (t *Tree) SearchTieWiden(ctx context.Context, q []float32, k int) ([]SearchResult, error) {
	if len(q) != t.cfg.Dim {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 || t.root == nil {
		return []SearchResult{}, nil
	}

	results := make(resultHeap, 0, k)
	if err := t.tieWiden(ctx, t.root, q, k, &results); err != nil {
		return nil, err
	}
	return results.emit(), nil
}

func (t *Tree) tieWiden(ctx context.Context, n *node, q []float32, k int, results *resultHeap) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.leaf {
		t.scanLeaf(n, q, k, results)
		return nil
	}

	dists := make([]float32, len(n.children))
	minDist := float32(0)
	for i := range n.children {
		dists[i] = t.dist(n.centroids[i], q)
		if i == 0 || dists[i] < minDist {
			minDist = dists[i]
		}
	}

	widened := minDist * float32(1.0+t.cfg.TieTolerance)
	for i, child := range n.children {
		if dists[i] <= widened {
			if err := t.tieWiden(ctx, child, q, k, results); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanLeaf offers every vector in every cluster of the leaf to the
// bounded result set.
func (t *Tree) scanLeaf(n *node, q []float32, k int, results *resultHeap) {
	for _, c := range n.clusters {
		for i, vec := range c.vectors {
			results.add(k, resultItem{dist: t.dist(vec, q), id: c.vids[i], vec: vec})
		}
	}
}
