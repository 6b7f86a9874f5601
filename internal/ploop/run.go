package ploop

import (
	"time"

	"github.com/tracelattice/tracelattice/internal/diag"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// Run drives the loop until Terminate is called (or every added instance
// has terminated or been stopped), dispatching events to handler with ctx passed
// through unchanged. It blocks the calling goroutine; callers that want
// to terminate it must do so from elsewhere (a signal handler, the MCP
// server, or a test goroutine).
func (l *Loop) Run(handler Handler, ctx any) error {
	for {
		l.applyControl()

		now := time.Now()
		l.pumpSends(now)

		waited := l.waitForIO(now)
		now = time.Now()

		l.drainReadyReplies(waited)
		l.fireTimeouts(now)
		l.dispatchInstanceEvents(handler, ctx)

		if l.checkTerminated() {
			l.terminateAll(handler, ctx)
			return nil
		}
	}
}

// pumpSends asks every live instance for probes it wants sent, then
// drains as much of the pending queue as the pacer currently allows.
func (l *Loop) pumpSends(now time.Time) {
	l.mu.Lock()
	entries := append([]*instanceEntry(nil), l.instances...)
	l.mu.Unlock()

	for _, e := range entries {
		if e.stopped {
			continue
		}
		for _, s := range e.inst.PumpSends(now) {
			l.pending = append(l.pending, pendingSend{owner: e.handle, send: s})
		}
	}

	for len(l.pending) > 0 && l.pacer.Allow(time.Now()) {
		ps := l.pending[0]
		l.pending = l.pending[1:]
		l.dispatchSend(ps)
	}
}

func (l *Loop) dispatchSend(ps pendingSend) {
	p := ps.send.Probe
	p.Owner = uint64(ps.owner)

	if key, err := probe.KeyFromPacket(p.Packet, probe.IPIdentifierOf(p.Packet)); err == nil {
		p.Key = key
	} else {
		diag.Printf("ploop: could not derive matching key for probe (ttl %d): %v", p.TTL, err)
	}

	sentAt, err := l.sender.Send(p.Packet, ps.send.Dst, ps.send.HopLimit, ps.send.Protocol)
	l.pacer.Reserve(time.Now())
	if err != nil {
		diag.Printf("ploop: send failed for probe #%d (ttl %d): %v", p.ID, p.TTL, err)
		// Packet-assembly/send errors are fatal to the probe, not the
		// instance: it still gets a timeout so the algorithm can make
		// progress, per the error policy.
	}
	p.SentAt = sentAt
	l.registry.Register(p)
	l.timers.Enroll(p, sentAt, l.probeTimeout)
}

// waitForIO blocks until a reply arrives or the next timer deadline
// passes, whichever comes first, and returns every reply that was ready
// by the time it returned (possibly none, on a timeout wakeup).
func (l *Loop) waitForIO(now time.Time) []probe.Reply {
	deadline, hasDeadline := l.timers.NextDeadline()

	var timer *time.Timer
	if hasDeadline {
		d := deadline.Sub(now)
		if d < 0 {
			d = 0
		}
		timer = time.NewTimer(d)
		defer timer.Stop()
	} else if len(l.pending) > 0 {
		// Nothing outstanding yet but sends are paced-blocked; wake up
		// for the next pacing slot instead of blocking forever.
		d := time.Until(l.pacer.NextSlot())
		if d < 0 {
			d = 0
		}
		timer = time.NewTimer(d)
		defer timer.Stop()
	}

	var replies []probe.Reply
	var timerCh <-chan time.Time
	if timer != nil {
		timerCh = timer.C
	}

	select {
	case r := <-l.sniffer.Replies():
		replies = append(replies, r)
	case <-timerCh:
	case msg := <-l.control:
		l.handleControl(msg)
	}
	return replies
}

// drainReadyReplies processes the reply waitForIO already picked up,
// then drains anything else already buffered on the channel so that, per
// §4.4, every reply from one receive is delivered before any timeout.
func (l *Loop) drainReadyReplies(initial []probe.Reply) {
	for _, r := range initial {
		l.deliverReply(r)
	}
	for {
		select {
		case r := <-l.sniffer.Replies():
			l.deliverReply(r)
		default:
			return
		}
	}
}

func (l *Loop) deliverReply(r probe.Reply) {
	p, ok := l.registry.MatchReply(r)
	if !ok {
		return // unmatched reply: a stray ICMP message, or a late duplicate
	}
	l.timers.Remove(p)
	l.deliverTo(Handle(p.Owner), func(inst Instance) {
		inst.HandleReply(time.Now(), probe.Outcome{Probe: p, Reply: r, Matched: true})
	})
}

func (l *Loop) fireTimeouts(now time.Time) {
	for _, p := range l.timers.Expired(now) {
		l.registry.Remove(p)
		l.deliverTo(Handle(p.Owner), func(inst Instance) {
			inst.HandleTimeout(now, p)
		})
	}
}

func (l *Loop) deliverTo(h Handle, f func(Instance)) {
	l.mu.Lock()
	var target Instance
	for _, e := range l.instances {
		if e.handle == h {
			target = e.inst
			break
		}
	}
	l.mu.Unlock()
	if target != nil {
		f(target)
	}
}

func (l *Loop) dispatchInstanceEvents(handler Handler, ctx any) {
	l.mu.Lock()
	entries := append([]*instanceEntry(nil), l.instances...)
	l.mu.Unlock()

	for _, e := range entries {
		for _, inner := range e.inst.Events() {
			handler(l, AlgorithmEvent{Instance: e.handle, Inner: inner}, ctx)
		}
		if e.inst.Terminated() && !e.stopped {
			handler(l, AlgorithmTerminated{Instance: e.handle, Result: e.inst.Result()}, ctx)
			e.stopped = true
			e.inst.Teardown()
		}
	}
}

// checkTerminated reports whether the loop should exit: every instance
// has stopped itself and none remain pending addition.
func (l *Loop) checkTerminated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.terminal {
		return true
	}
	if len(l.instances) == 0 {
		return false // nothing added yet; keep waiting
	}
	for _, e := range l.instances {
		if !e.stopped {
			return false
		}
	}
	return true
}

func (l *Loop) applyControl() {
	for {
		select {
		case msg := <-l.control:
			l.handleControl(msg)
		default:
			return
		}
	}
}

func (l *Loop) handleControl(msg controlMsg) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch msg.kind {
	case controlAdd:
		l.instances = append(l.instances, &instanceEntry{handle: msg.handle, name: msg.name, inst: msg.inst})
	case controlStop:
		for _, e := range l.instances {
			if e.handle == msg.handle && !e.stopped {
				e.stopped = true
				e.inst.Teardown()
			}
		}
	case controlRemove:
		for i, e := range l.instances {
			if e.handle == msg.handle {
				l.instances = append(l.instances[:i], l.instances[i+1:]...)
				break
			}
		}
	case controlTerminate:
		l.terminal = true
	}
}

// terminateAll tears down every instance in reverse insertion order,
// per §4.4, after the final iteration has already dispatched any
// AlgorithmTerminated events.
func (l *Loop) terminateAll(handler Handler, ctx any) {
	l.mu.Lock()
	entries := append([]*instanceEntry(nil), l.instances...)
	l.instances = nil
	l.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.stopped {
			continue // already dispatched and torn down naturally
		}
		handler(l, AlgorithmTerminated{Instance: e.handle, Result: e.inst.Result()}, ctx)
		e.inst.Teardown()
	}
}
