package lineage

import (
	"fmt"
	"strings"
)

// String returns a one-line summary of the tree shape.
func (t *Tree) String() string {
	return fmt.Sprintf("lineage tree: dim=%d vectors=%d depth=%d nodes=%d leaves=%d",
		t.cfg.Dim, t.Len(), t.Depth(), t.NumNodes(), t.NumLeafNodes())
}

// DumpLeaves renders every leaf's cluster fan-out, one leaf per line, in
// left-to-right order. Intended for inspection and the CLI stats
// command, not for machine parsing.
func (t *Tree) DumpLeaves() string {
	var sb strings.Builder
	idx := 0
	dumpLeaves(&sb, t.root, &idx)
	return sb.String()
}

func dumpLeaves(sb *strings.Builder, n *node, idx *int) {
	if n == nil {
		return
	}
	if !n.leaf {
		for _, child := range n.children {
			dumpLeaves(sb, child, idx)
		}
		return
	}

	total := 0
	sizes := make([]string, len(n.clusters))
	for i, c := range n.clusters {
		sizes[i] = fmt.Sprintf("%d", c.len())
		total += c.len()
	}
	fmt.Fprintf(sb, "leaf %d: clusters=%d vectors=%d sizes=[%s]\n",
		*idx, len(n.clusters), total, strings.Join(sizes, " "))
	*idx++
}
