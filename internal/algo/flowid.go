package algo

import (
	"os"
	"sync"
)

// DeriveParisFlowID computes the single, constant flow identifier a
// Paris-traceroute instance uses for every probe across every TTL — the
// entire point of the algorithm is that this value never changes, so an
// ECMP load balancer routes every probe of the run down the same path.
// Grounded on the teacher's own NewUDPTracer, which seeds an ICMP
// identifier from os.Getpid()&0xffff; this generalizes that idiom to
// also fold in the configured ports for UDP/TCP runs, so two
// concurrently running instances against different ports don't collide.
func DeriveParisFlowID(opts TracerouteOptions) uint16 {
	id := uint16(os.Getpid())
	if opts.Protocol != ProtocolICMP {
		id ^= uint16(opts.SrcPort) ^ uint16(opts.DstPort)
	}
	return id
}

// FlowPool hands out pairwise-distinct flow identifiers within
// [min, max] for MDA, which — unlike Paris — deliberately varies the
// flow per probe to enumerate an interface's parallel next-hops. IDs
// are recycled once released, since a single run can exhaust the pool
// probing a heavily load-balanced interface.
type FlowPool struct {
	mu   sync.Mutex
	next uint32
	min  uint16
	max  uint16
	used map[uint16]bool
}

// NewFlowPool returns a pool cycling through [min, max] inclusive.
func NewFlowPool(min, max uint16) *FlowPool {
	return &FlowPool{min: min, max: max, next: uint32(min), used: make(map[uint16]bool)}
}

// Next returns an unused identifier, or false if every value in the
// range is currently checked out.
func (p *FlowPool) Next() (uint16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	span := uint32(p.max) - uint32(p.min) + 1
	for i := uint32(0); i < span; i++ {
		candidate := uint16(p.min + uint16((p.next-uint32(p.min))%span))
		p.next++
		if !p.used[candidate] {
			p.used[candidate] = true
			return candidate, true
		}
	}
	return 0, false
}

// Release returns id to the pool for reuse.
func (p *FlowPool) Release(id uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.used, id)
}
