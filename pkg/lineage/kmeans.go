package lineage

import (
	"log"

	"github.com/fadhilkurnia/sedann/pkg/math/vector"
)

const (
	// kmeansMaxIters bounds the fixed-point loop. Two-means with mean
	// recomputation converges quickly in practice; the guard only
	// matters for oscillating degenerate inputs.
	kmeansMaxIters = 100

	// kmeansMaxReseeds bounds how often a split that produced an empty
	// partition is retried with different seeds.
	kmeansMaxReseeds = 3
)

// twoMeans partitions items into two groups by local k-means with k=2.
// It returns a 0/1 assignment per item plus the two computed means.
// Neither output group is empty; a degenerate input (e.g. all items
// identical) falls back to an order-based halving.
//
// Seeding uses the first and last item, the initial partition sends
// items with index > len/2 to the second group (the pivot item lands in
// the first), and the loop reassigns then recomputes until a full pass
// changes nothing.
func twoMeans(dim int, items [][]float32, dist vector.DistanceFunc) (assign []int, a, b []float32) {
	n := len(items)
	assign = make([]int, n)
	a = make([]float32, dim)
	b = make([]float32, dim)

	seedA, seedB := 0, n-1
	for attempt := 0; ; attempt++ {
		copy(a, items[seedA])
		copy(b, items[seedB])

		for i := range assign {
			if i > n/2 {
				assign[i] = 1
			} else {
				assign[i] = 0
			}
		}

		for iter := 0; iter < kmeansMaxIters; iter++ {
			changed := false
			for i, v := range items {
				want := 0
				if dist(b, v) < dist(a, v) {
					want = 1
				}
				if assign[i] != want {
					assign[i] = want
					changed = true
				}
			}

			// Rebuild both means with the incremental update, zeroing
			// first and counting per group.
			na, nb := 0, 0
			clear(a)
			clear(b)
			for i, v := range items {
				if assign[i] == 0 {
					vector.UpdateMean(na, a, v)
					na++
				} else {
					vector.UpdateMean(nb, b, v)
					nb++
				}
			}

			if !changed {
				break
			}
		}

		if countAssigned(assign, 0) > 0 && countAssigned(assign, 1) > 0 {
			return assign, a, b
		}

		if attempt >= kmeansMaxReseeds {
			break
		}
		log.Printf("lineage: k-means split produced an empty partition, reseeding (attempt %d)", attempt+1)
		// Rotate through other pivot pairs before giving up.
		switch attempt {
		case 0:
			seedA, seedB = 0, n/2
		case 1:
			seedA, seedB = n/2, n-1
		default:
			seedA, seedB = n/4, (3*n)/4
		}
		if seedA == seedB {
			break
		}
	}

	// All reseeds degenerated: halve by insertion order so no caller
	// ever receives an empty partition.
	log.Printf("lineage: k-means split degenerate, falling back to order-based halving of %d items", n)
	half := n / 2
	groupA := items[:half]
	groupB := items[half:]
	for i := range assign {
		if i < half {
			assign[i] = 0
		} else {
			assign[i] = 1
		}
	}
	copy(a, vector.Mean(groupA))
	copy(b, vector.Mean(groupB))
	return assign, a, b
}

func countAssigned(assign []int, group int) int {
	n := 0
	for _, g := range assign {
		if g == group {
			n++
		}
	}
	return n
}
