// Package ploop implements the single-threaded cooperative event loop
// that drives every algorithm instance: it owns pacing, per-probe
// timeouts, and reply matching, and fans algorithm-level events out to
// one user handler. The only goroutines anywhere near it are the
// sender/sniffer's own blocking I/O (internal/netio) and, at the CLI
// layer, a signal-handling goroutine that calls Terminate.
package ploop

import (
	"sync"
	"time"

	"github.com/tracelattice/tracelattice/internal/netio"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// Sender is the narrow surface the loop needs from internal/netio.Sender
// — satisfied structurally, so internal/netio/netiotest.Network can
// stand in for it in tests without either package importing the other.
type Sender interface {
	Send(pkt *packet.Packet, dst packet.Address, hopLimit, protocol int) (time.Time, error)
}

// Sniffer is the narrow surface the loop needs from
// internal/netio.Sniffer.
type Sniffer interface {
	Replies() <-chan probe.Reply
}

type controlKind uint8

const (
	controlAdd controlKind = iota
	controlStop
	controlRemove
	controlTerminate
)

type controlMsg struct {
	kind   controlKind
	handle Handle
	name   string
	inst   Instance
}

type instanceEntry struct {
	handle  Handle
	name    string
	inst    Instance
	stopped bool
}

// Loop is the cooperative scheduler described in §4.4: one iteration
// computes the next deadline, waits on reply I/O or that deadline,
// drains ready replies, fires timeouts, drains algorithm events, and
// finally applies any pending control messages.
type Loop struct {
	sender   Sender
	sniffer  Sniffer
	registry *probe.Registry
	timers   *netio.TimerWheel
	pacer    *netio.Pacer

	probeTimeout time.Duration

	control chan controlMsg

	mu       sync.Mutex
	nextID   uint64
	terminal bool

	instances []*instanceEntry
	pending   []pendingSend
}

type pendingSend struct {
	owner Handle
	send  Send
}

// Option configures a Loop at construction.
type Option func(*Loop)

// WithTimeout sets the per-probe reply timeout applied to every probe
// the loop sends. The default is five seconds.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) { l.probeTimeout = d }
}

// NewLoop builds a Loop around the given sender/sniffer transport and
// pacing interval (seconds, or milliseconds if >10, per the shared
// min-inter-send convention).
func NewLoop(sender Sender, sniffer Sniffer, minInterSend float64, opts ...Option) *Loop {
	l := &Loop{
		sender:       sender,
		sniffer:      sniffer,
		registry:     probe.NewRegistry(),
		timers:       netio.NewTimerWheel(),
		pacer:        netio.NewPacer(minInterSend),
		control:      make(chan controlMsg, 16),
		probeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddInstance registers an algorithm instance and returns its handle.
// Safe to call from any goroutine (e.g. the MCP server) while Run is
// active; the addition takes effect at the top of the next iteration.
func (l *Loop) AddInstance(name string, inst Instance) Handle {
	l.mu.Lock()
	l.nextID++
	h := Handle(l.nextID)
	l.mu.Unlock()

	l.control <- controlMsg{kind: controlAdd, handle: h, name: name, inst: inst}
	return h
}

// StopInstance calls the instance's teardown and stops scheduling new
// sends for it, without removing its already-outstanding probes from
// the timer wheel (they still time out normally).
func (l *Loop) StopInstance(h Handle) {
	l.control <- controlMsg{kind: controlStop, handle: h}
}

// RemoveInstance deletes an instance's entry outright, discarding any
// events it has not yet drained.
func (l *Loop) RemoveInstance(h Handle) {
	l.control <- controlMsg{kind: controlRemove, handle: h}
}

// Terminate requests an orderly shutdown: the current iteration
// finishes, every instance is torn down in reverse insertion order, and
// Run returns. Safe to call from any goroutine, any number of times.
func (l *Loop) Terminate() {
	select {
	case l.control <- controlMsg{kind: controlTerminate}:
	default:
		// A terminate is already pending; nothing more to do.
	}
}

// Outstanding reports how many probes are currently in flight across
// every instance.
func (l *Loop) Outstanding() int { return l.registry.Outstanding() }
