package probe

import (
	"sync"

	"github.com/tracelattice/tracelattice/internal/diag"
	"github.com/tracelattice/tracelattice/pkg/packet"
)

// tcpFlowKey identifies an outstanding TCP probe by the one pair of
// facts a destination's own reset/SYN-ACK actually carries back: the
// address it came from and the flow identifier riding the TCP source
// port (see pkg/packet/tcp.go's SetFlowID). Unlike MatchingKey, this
// reply is never a quote of our own packet, so it can't be matched by
// header equality — there is no IP identifier or sequence number to
// echo back.
type tcpFlowKey struct {
	Target packet.Address
	FlowID uint16
}

// Registry indexes outstanding probes by matching key so an inbound reply
// can be paired with the probe that elicited it in constant time.
type Registry struct {
	mu        sync.Mutex
	byKey     map[MatchingKey]*Probe
	byTCPFlow map[tcpFlowKey]*Probe
	nextID    uint64
}

// NewRegistry returns an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:     make(map[MatchingKey]*Probe),
		byTCPFlow: make(map[tcpFlowKey]*Probe),
	}
}

// Register enrolls a probe, assigning it a runtime ID. If another
// outstanding probe already holds the same matching key — possible only
// when both share the same flow identifier — the oldest registration
// wins and the new one is reported as a collision diagnostic rather than
// silently dropped.
func (r *Registry) Register(p *Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	if existing, ok := r.byKey[p.Key]; ok {
		diag.Printf("probe: matching-key collision, flow %d already outstanding since probe #%d; keeping oldest", p.FlowID, existing.ID)
		return
	}
	r.byKey[p.Key] = p
	if p.Key.Protocol == packet.ProtoTCP {
		r.byTCPFlow[tcpFlowKey{Target: p.Key.Dst, FlowID: p.FlowID}] = p
	}
}

// Match looks up and removes the probe matching key, if any is
// outstanding.
func (r *Registry) Match(key MatchingKey) (*Probe, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byKey[key]
	if ok {
		r.forget(p)
	}
	return p, ok
}

// MatchTCPFlow looks up a probe by the address/flow-identifier pair a
// TCP reset or SYN-ACK carries, for replies that never quote our own
// packet back (see tcpFlowKey).
func (r *Registry) MatchTCPFlow(target packet.Address, flowID uint16) (*Probe, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byTCPFlow[tcpFlowKey{Target: target, FlowID: flowID}]
	if ok {
		r.forget(p)
	}
	return p, ok
}

// MatchReply resolves an inbound reply to the probe it answers, trying
// the generic quoted-header key first (every ICMP reply, and a TCP
// reset/SYN-ACK from a harness that already knows the full key) and
// falling back to the TCP flow index for a reply that only carries an
// address and a flow identifier.
func (r *Registry) MatchReply(rep Reply) (*Probe, bool) {
	if p, ok := r.Match(rep.Key); ok {
		return p, ok
	}
	if rep.Kind == ReplyTCPResetOrSYNACK {
		return r.MatchTCPFlow(rep.From, rep.FlowID)
	}
	return nil, false
}

// Remove drops a probe from the registry without matching it, used when
// its timer wheel entry expires.
func (r *Registry) Remove(p *Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byKey[p.Key]; ok && cur.ID == p.ID {
		r.forget(p)
	}
}

// forget deletes p from every index it could be registered under. Caller
// must hold r.mu.
func (r *Registry) forget(p *Probe) {
	delete(r.byKey, p.Key)
	if p.Key.Protocol == packet.ProtoTCP {
		delete(r.byTCPFlow, tcpFlowKey{Target: p.Key.Dst, FlowID: p.FlowID})
	}
}

// Outstanding returns the number of probes currently enrolled.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}
