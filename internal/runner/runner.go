// Package runner wires an algo.Config to a real event loop against raw
// sockets and waits for its terminal result — the shared core both
// cmd/tracelattice and internal/mcpserver drive, so the CLI and the MCP
// tool surface never duplicate the socket/loop wiring.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tracelattice/tracelattice/internal/algo"
	"github.com/tracelattice/tracelattice/internal/algo/mda"
	"github.com/tracelattice/tracelattice/internal/algo/paris"
	"github.com/tracelattice/tracelattice/internal/netio"
	"github.com/tracelattice/tracelattice/internal/ploop"
	"github.com/tracelattice/tracelattice/pkg/hop"
	"github.com/tracelattice/tracelattice/pkg/lattice"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/perr"
)

// Result bundles the report model every front end renders with the raw
// lattice an MDA run produces, for the textual lattice dump. Lattice is
// nil for a traceroute run.
type Result struct {
	Report  *hop.TraceResult
	Lattice *lattice.Lattice
}

// Run builds the named algorithm instance from cfg, drives it to
// termination on a fresh event loop, and converts its result into the
// shared report model. It blocks until the instance terminates or ctx is
// canceled. onEvent, if non-nil, is called with every intermediate
// algorithm event (a paris.ProbeReplyEvent, mda.NewLinkEvent, etc.) as it
// is dispatched, for callers that want live progress output.
func Run(ctx context.Context, algorithm string, cfg algo.Config, target packet.Address, targetName, protocol string, minInterSend float64, onEvent func(any)) (*Result, error) {
	if err := netio.CheckPrivileges(); err != nil {
		return nil, err
	}

	sender, err := netio.NewSender()
	if err != nil {
		return nil, err
	}
	defer sender.Close()

	timeout := 5 * time.Second
	var wantTCP bool
	if cfg.Traceroute != nil {
		opts := cfg.Traceroute.WithDefaults()
		timeout = opts.Timeout
		wantTCP = opts.Protocol == algo.ProtocolTCP
	} else if cfg.MDA != nil {
		opts := cfg.MDA.WithDefaults()
		timeout = opts.Timeout
		wantTCP = opts.Protocol == algo.ProtocolTCP
	}

	sniffer, err := netio.NewSniffer(target.Family() == packet.FamilyV4, target.Family() == packet.FamilyV6, wantTCP)
	if err != nil {
		return nil, err
	}
	defer sniffer.Close()
	if minInterSend == 0 {
		minInterSend = 0.01 // seconds (10 ms), per TracerouteOptions' documented default
	}

	loop := ploop.NewLoop(sender, sniffer, minInterSend, ploop.WithTimeout(timeout))

	host := algo.NewHost()
	paris.Register(host)
	mda.Register(host)

	if _, err := host.New(loop, algorithm, cfg); err != nil {
		return nil, perr.Wrap(perr.ErrConfigInvalid, err)
	}

	go func() {
		<-ctx.Done()
		loop.Terminate()
	}()

	started := time.Now()
	var result *Result
	handler := func(l *ploop.Loop, ev ploop.Event, _ any) {
		if ae, ok := ev.(ploop.AlgorithmEvent); ok {
			if onEvent != nil {
				onEvent(ae.Inner)
			}
			return
		}
		t, ok := ev.(ploop.AlgorithmTerminated)
		if !ok {
			return
		}
		ended := time.Now()
		switch r := t.Result.(type) {
		case paris.Result:
			result = &Result{Report: hop.FromParisResult(targetName, target.String(), protocol, r, started, ended)}
		case *lattice.Lattice:
			result = &Result{
				Report:  hop.FromLattice(targetName, target.String(), protocol, target, r, started, ended),
				Lattice: r,
			}
		}
	}

	if err := loop.Run(handler, nil); err != nil {
		return nil, perr.Wrap(perr.ErrLoopInterrupted, err)
	}
	if result == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, perr.Wrap(perr.ErrLoopInterrupted, fmt.Errorf("runner: loop exited without a result"))
	}
	return result, nil
}
