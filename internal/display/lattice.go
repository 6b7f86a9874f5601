package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/tracelattice/tracelattice/pkg/lattice"
)

// LatticeRenderer renders the full branching structure an MDA run
// discovers: every node at every TTL, and the flow-tagged edges
// connecting each node to its next hops.
type LatticeRenderer struct{}

// NewLatticeRenderer creates a new LatticeRenderer.
func NewLatticeRenderer() *LatticeRenderer {
	return &LatticeRenderer{}
}

func nodeLabel(n *lattice.Node) string {
	if n.Star {
		return "*"
	}
	return n.Addr.String()
}

// RenderNode renders one node plus its outgoing edges as a single line.
func (r *LatticeRenderer) RenderNode(l *lattice.Lattice, n *lattice.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%2d  %s", n.TTL, nodeLabel(n))

	edges := l.Edges(n)
	if len(edges) == 0 {
		return b.String()
	}

	var branches []string
	for _, e := range edges {
		branches = append(branches, fmt.Sprintf("-> %s %v", nodeLabel(e.To), e.FlowIDs))
	}
	b.WriteString("  ")
	b.WriteString(strings.Join(branches, "  "))
	return b.String()
}

// RenderLattice renders the complete lattice, one line per discovered
// node, TTLs in increasing order.
func (r *LatticeRenderer) RenderLattice(w io.Writer, l *lattice.Lattice) {
	for _, ttlNode := range l.Dump() {
		for _, n := range ttlNode.Nodes {
			fmt.Fprintln(w, r.RenderNode(l, n))
		}
	}
}
