package main

import (
	"context"

	"github.com/tracelattice/tracelattice/internal/algo"
	"github.com/tracelattice/tracelattice/internal/algo/paris"
	"github.com/tracelattice/tracelattice/internal/display"
	"github.com/tracelattice/tracelattice/internal/runner"
	"github.com/tracelattice/tracelattice/pkg/hop"
	"github.com/tracelattice/tracelattice/pkg/packet"
)

// liveHopTracker turns a traceroute run's per-probe events into
// finalized hop previews for the live view, one per TTL, emitted as
// soon as that TTL has received NumProbes replies/timeouts. It only
// feeds the live display — the authoritative report still comes from
// runner.Run's returned Result once the run terminates.
type liveHopTracker struct {
	numProbes int
	current   *hop.Hop
	seen      int
	out       chan<- *hop.Hop
}

func newLiveHopTracker(numProbes int, out chan<- *hop.Hop) *liveHopTracker {
	return &liveHopTracker{numProbes: numProbes, out: out}
}

func (t *liveHopTracker) handle(ev any) {
	switch e := ev.(type) {
	case paris.ProbeReplyEvent:
		t.ensureHop(e.TTL)
		t.current.AddProbe(e.From.IP(), e.RTT)
		t.seen++
		t.maybeFlush()
	case paris.ProbeTimeoutEvent:
		t.ensureHop(e.TTL)
		t.current.AddTimeout()
		t.seen++
		t.maybeFlush()
	}
}

func (t *liveHopTracker) ensureHop(ttl int) {
	if t.current == nil || t.current.TTL != ttl {
		t.flush()
		t.current = hop.NewHop(ttl)
		t.seen = 0
	}
}

func (t *liveHopTracker) maybeFlush() {
	if t.seen >= t.numProbes {
		t.flush()
	}
}

func (t *liveHopTracker) flush() {
	if t.current != nil {
		t.out <- t.current
		t.current = nil
	}
}

// runTracerouteLive drives a traceroute run behind the live Bubble Tea
// view: runner.Run executes on its own goroutine, streaming finalized
// hops to the view through a liveHopTracker, while this goroutine blocks
// inside display.RunTUI until the user quits it. If the view quits
// before the run finishes, ctx is canceled so the run winds down rather
// than continuing to probe in the background.
func runTracerouteLive(ctx context.Context, cancel context.CancelFunc, cfg *cliConfig, algoCfg algo.Config, target packet.Address, minInterSend float64, numProbes int) (*runner.Result, error) {
	hopChan := make(chan *hop.Hop, 8)
	doneChan := make(chan bool, 1)
	type outcome struct {
		result *runner.Result
		err    error
	}
	resultChan := make(chan outcome, 1)

	tracker := newLiveHopTracker(numProbes, hopChan)

	go func() {
		result, err := runner.Run(ctx, "traceroute", algoCfg, target, cfg.Target, cfg.Protocol, minInterSend, tracker.handle)
		tracker.flush()
		reached := result != nil && result.Report.ReachedTarget
		doneChan <- reached
		resultChan <- outcome{result, err}
	}()

	tuiErr := display.RunTUI(cfg.Target, target.String(), hopChan, doneChan)
	select {
	case r := <-resultChan:
		if tuiErr != nil && r.err == nil {
			r.err = tuiErr
		}
		return r.result, r.err
	default:
		// The view quit before the run produced a result: cancel and
		// wait for the run to unwind instead of leaving it orphaned.
		cancel()
		r := <-resultChan
		return r.result, r.err
	}
}
