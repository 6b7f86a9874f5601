// Package lattice is the layered DAG the MDA algorithm builds as it
// discovers parallel next-hops: nodes are hop observations deduplicated
// by address within a TTL, edges connect a node at TTL k to a node at
// k+1 whenever some flow was observed traversing both.
package lattice

import (
	"sort"
	"sync"

	"github.com/tracelattice/tracelattice/pkg/packet"
)

// nodeKey identifies a node within one TTL: a real address, or the
// sentinel star address for an unresponsive hop. Two star observations
// at the same TTL collapse to the same node, same as two observations
// of the same real address do.
type nodeKey struct {
	ttl  int
	star bool
	addr packet.Address
}

// Node is one hop observation: a router address (or the star sentinel)
// seen at a given TTL, plus every outgoing edge discovered from it.
type Node struct {
	TTL  int
	Addr packet.Address
	Star bool

	out map[nodeKey]*Edge
}

// Edge links a predecessor node at TTL k to a successor at TTL k+1,
// tagged with every flow identifier observed traversing both.
type Edge struct {
	From, To *Node
	FlowIDs  []uint16
}

// Lattice is the MDA instance's running hop graph. Safe for concurrent
// use since a single loop iteration may insert observations and read
// Dump from different goroutines only in the narrow handed-to-handler
// window the event loop's documented ownership rule allows; callers
// within this module always hold the instance's own lock when calling
// in, so this lock is a belt-and-braces guard, not the primary one.
type Lattice struct {
	mu    sync.Mutex
	nodes map[nodeKey]*Node
	byTTL map[int][]*Node
}

// New returns an empty lattice.
func New() *Lattice {
	return &Lattice{nodes: make(map[nodeKey]*Node), byTTL: make(map[int][]*Node)}
}

// Observe finds or creates the node for (ttl, addr) — or the TTL's star
// node if star is true, in which case addr is ignored.
func (l *Lattice) Observe(ttl int, addr packet.Address, star bool) *Node {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := nodeKey{ttl: ttl, star: star, addr: addr}
	if star {
		key.addr = packet.Address{}
	}
	if n, ok := l.nodes[key]; ok {
		return n
	}

	n := &Node{TTL: ttl, Addr: key.addr, Star: star, out: make(map[nodeKey]*Edge)}
	l.nodes[key] = n
	l.byTTL[ttl] = append(l.byTTL[ttl], n)
	return n
}

// Link records that flowID traversed from prev (TTL k) to next (TTL
// k+1), creating the edge on first observation and appending flowID to
// an existing edge's witness list otherwise. Returns the edge and
// whether this call created it — callers use isNew to decide whether to
// emit a link-discovered event.
func (l *Lattice) Link(prev, next *Node, flowID uint16) (edge *Edge, isNew bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := nodeKey{ttl: next.TTL, star: next.Star, addr: next.Addr}
	if e, ok := prev.out[key]; ok {
		e.FlowIDs = append(e.FlowIDs, flowID)
		return e, false
	}

	e := &Edge{From: prev, To: next, FlowIDs: []uint16{flowID}}
	prev.out[key] = e
	return e, true
}

// NextHops returns the distinct successor nodes prev currently links to.
func (l *Lattice) NextHops(prev *Node) []*Node {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Node, 0, len(prev.out))
	for _, e := range prev.out {
		out = append(out, e.To)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Addr.String() < out[j].Addr.String()
	})
	return out
}

// TTLNode pairs a TTL with every node observed at it, as Dump returns.
type TTLNode struct {
	TTL   int
	Nodes []*Node
}

// Dump visits every TTL in increasing order, each with its nodes and,
// per node, its outgoing edges — the complete lattice a textual or JSON
// report walks after ALGORITHM_HAS_TERMINATED.
func (l *Lattice) Dump() []TTLNode {
	l.mu.Lock()
	defer l.mu.Unlock()

	ttls := make([]int, 0, len(l.byTTL))
	for ttl := range l.byTTL {
		ttls = append(ttls, ttl)
	}
	sort.Ints(ttls)

	out := make([]TTLNode, 0, len(ttls))
	for _, ttl := range ttls {
		nodes := append([]*Node(nil), l.byTTL[ttl]...)
		sort.Slice(nodes, func(i, j int) bool {
			if nodes[i].Star != nodes[j].Star {
				return !nodes[i].Star
			}
			return nodes[i].Addr.String() < nodes[j].Addr.String()
		})
		out = append(out, TTLNode{TTL: ttl, Nodes: nodes})
	}
	return out
}

// Edges returns node's outgoing edges, sorted by successor address for
// deterministic reporting.
func (l *Lattice) Edges(node *Node) []*Edge {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Edge, 0, len(node.out))
	for _, e := range node.out {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].To.Addr.String() < out[j].To.Addr.String()
	})
	return out
}
