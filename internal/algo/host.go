package algo

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tracelattice/tracelattice/internal/ploop"
)

// Constructor builds a running algorithm instance from a Config. The
// returned Instance is ready to be handed to a ploop.Loop via
// AddInstance.
type Constructor func(cfg Config) (ploop.Instance, error)

// Host is the registry of algorithm constructors by name — "traceroute"
// and "mda" in this repository, with room for more without touching the
// loop or CLI layer.
type Host struct {
	mu           sync.Mutex
	constructors map[string]Constructor
}

// NewHost returns an empty host.
func NewHost() *Host {
	return &Host{constructors: make(map[string]Constructor)}
}

// Register adds name as a buildable algorithm. Re-registering a name
// replaces its constructor.
func (h *Host) Register(name string, ctor Constructor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.constructors[name] = ctor
}

// InstanceHandle pairs a uuid tag with the instance's algorithm name and
// its loop handle.
type InstanceHandle struct {
	ID   uuid.UUID
	Loop ploop.Handle
	Name string
}

// New builds the named algorithm instance and adds it to loop, returning
// a tagged handle. The uuid is a fresh per-instance tag; the loop's
// own numeric Handle remains what Terminate/Stop/Remove take.
func (h *Host) New(loop *ploop.Loop, name string, cfg Config) (InstanceHandle, error) {
	h.mu.Lock()
	ctor, ok := h.constructors[name]
	h.mu.Unlock()
	if !ok {
		return InstanceHandle{}, fmt.Errorf("algo: unknown algorithm %q", name)
	}

	inst, err := ctor(cfg)
	if err != nil {
		return InstanceHandle{}, fmt.Errorf("algo: constructing %q: %w", name, err)
	}

	lh := loop.AddInstance(name, inst)
	return InstanceHandle{ID: uuid.New(), Loop: lh, Name: name}, nil
}
