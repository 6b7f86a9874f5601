package packet

// LayerDescriptor is the static, process-wide description of one protocol
// layer: its header length, the fields it exposes, how to checksum it
// against the pseudo-header supplied by the layer below, and how to
// finalize (write defaults / derived fields into) its header.
type LayerDescriptor struct {
	Name string

	// HeaderLen returns the header length in bytes for this layer instance.
	// For fixed-length layers this ignores its argument.
	HeaderLen func(l *Layer) int

	Fields []FieldDescriptor

	// Above, if non-nil, restricts which layer names may be stacked
	// directly on top of this one (e.g. IPv4 accepts udp/tcp/icmpv4 but
	// UDP accepts no further layer beyond an opaque payload).
	Above func(name string) bool

	// Checksum recomputes and writes this layer's checksum field (if it
	// has one) using the pseudo-header contributed by the layer below.
	// idx is this layer's index within pkt.Layers(); the layer below (if
	// any) is pkt.layers[idx-1].
	Checksum func(pkt *Packet, idx int) error

	// WriteHeader writes this layer's defaults/derived fields (version,
	// length, protocol-above) into the buffer at this layer's offset.
	WriteHeader func(pkt *Packet, idx int) error

	// SetFlowID writes a caller-chosen 16-bit flow identifier into the
	// packet using this layer's covert-carrier mechanism (checksum
	// compensator for UDP/ICMP, source port for TCP), and re-finalizes
	// only what changed. nil if this layer carries no flow identifier.
	SetFlowID func(pkt *Packet, idx int, flowID uint16) error

	// FlowID recovers the flow identifier previously written by
	// SetFlowID, by reading it back out of the finalized packet. nil if
	// this layer carries no flow identifier.
	FlowID func(pkt *Packet, idx int) (uint16, error)
}

var registry = map[string]*LayerDescriptor{}

// Register adds a layer descriptor to the static, process-wide registry.
// Called from each protocol's init().
func Register(d *LayerDescriptor) {
	registry[d.Name] = d
}

// Lookup returns the descriptor for a layer name.
func Lookup(name string) (*LayerDescriptor, bool) {
	d, ok := registry[name]
	return d, ok
}

func (d *LayerDescriptor) field(key string) (FieldDescriptor, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func (d *LayerDescriptor) String() string { return d.Name }
