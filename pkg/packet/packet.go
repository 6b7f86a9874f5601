package packet

import "fmt"

// Layer is one protocol layer instance stacked into a Packet: its static
// descriptor, its byte offset within the packet buffer, and the header
// length actually written for it.
type Layer struct {
	Descriptor *LayerDescriptor
	Offset     int
	Len        int
}

// Packet is a contiguous byte buffer plus an ordered list of layer
// descriptors and per-layer offsets. Layer offsets are strictly
// increasing; buffer length equals the sum of layer sizes plus payload.
type Packet struct {
	buf           []byte
	layers        []Layer
	payloadOffset int
	dirty         bool
	finalized     bool
}

// Layers returns the packet's layer stack, outermost first.
func (p *Packet) Layers() []Layer { return append([]Layer(nil), p.layers...) }

// Bytes returns the packet's raw buffer. The caller must not retain it
// across a subsequent mutating call.
func (p *Packet) Bytes() []byte { return p.buf }

// PayloadOffset returns the offset of the payload region.
func (p *Packet) PayloadOffset() int { return p.payloadOffset }

// Payload returns the payload region of the buffer.
func (p *Packet) Payload() []byte { return p.buf[p.payloadOffset:] }

// SetProtocols allocates the buffer sized to the sum of the layers'
// header sizes plus payload space, writes each layer's defaults, and
// records each layer's offset. A trailing literal "payload" entry simply
// marks where the payload region starts; it carries no header of its
// own. Fails if any layer name is unknown or if two consecutive layers
// are incompatible.
func (p *Packet) SetProtocols(names ...string) error {
	var layers []Layer
	offset := 0

	for i, name := range names {
		if name == "payload" {
			if i != len(names)-1 {
				return fmt.Errorf("packet: %q must be the last layer", "payload")
			}
			break
		}
		d, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("packet: unknown layer %q", name)
		}
		if i > 0 {
			prev := layers[i-1].Descriptor
			if prev.Above != nil && !prev.Above(name) {
				return fmt.Errorf("packet: %q cannot be stacked above %q", name, prev.Name)
			}
		}
		l := Layer{Descriptor: d, Offset: offset}
		l.Len = d.HeaderLen(&l)
		layers = append(layers, l)
		offset += l.Len
	}

	p.layers = layers
	p.payloadOffset = offset
	p.buf = make([]byte, offset)
	p.dirty = true
	p.finalized = false

	for i := range p.layers {
		l := &p.layers[i]
		if l.Descriptor.WriteHeader != nil {
			if err := l.Descriptor.WriteHeader(p, i); err != nil {
				return fmt.Errorf("packet: write default header for %q: %w", l.Descriptor.Name, err)
			}
		}
	}
	return nil
}

// PayloadResize resizes the payload region to n bytes, preserving
// existing payload bytes (truncated or zero-extended). Invalidates
// checksums until the next Finalize.
func (p *Packet) PayloadResize(n int) error {
	if n < 0 {
		return fmt.Errorf("packet: negative payload size %d", n)
	}
	cur := p.buf[p.payloadOffset:]
	next := make([]byte, n)
	copy(next, cur)
	p.buf = append(p.buf[:p.payloadOffset:p.payloadOffset], next...)
	p.dirty = true
	p.finalized = false
	return nil
}

// layerFor finds the layer exposing key, and its field descriptor.
func (p *Packet) layerFor(key string) (*Layer, FieldDescriptor, error) {
	for i := range p.layers {
		l := &p.layers[i]
		if fd, ok := l.Descriptor.field(key); ok {
			return l, fd, nil
		}
	}
	return nil, FieldDescriptor{}, fmt.Errorf("packet: unknown field %q", key)
}

// SetField writes value into the first layer exposing key. Integer
// values are stored in network byte order. Unknown keys and type
// mismatches fail.
func (p *Packet) SetField(key string, value FieldValue) error {
	l, fd, err := p.layerFor(key)
	if err != nil {
		return err
	}
	if fd.Kind != value.Kind {
		return fmt.Errorf("packet: field %q is %s, got %s", key, fd.Kind, value.Kind)
	}
	if err := writeField(p.buf, l.Offset+fd.Offset, fd, value); err != nil {
		return err
	}
	p.dirty = true
	p.finalized = false
	return nil
}

// GetField reads the current value stored at key.
func (p *Packet) GetField(key string) (FieldValue, error) {
	l, fd, err := p.layerFor(key)
	if err != nil {
		return FieldValue{}, err
	}
	return readField(p.buf, l.Offset+fd.Offset, fd), nil
}

func writeField(buf []byte, off int, fd FieldDescriptor, v FieldValue) error {
	switch fd.Kind {
	case KindU4, KindU8:
		n, _ := v.AsU32()
		if fd.Kind == KindU4 {
			buf[off] = (buf[off] & 0xf0) | byte(n&0x0f)
		} else {
			buf[off] = byte(n)
		}
	case KindU16:
		n, _ := v.AsU32()
		buf[off] = byte(n >> 8)
		buf[off+1] = byte(n)
	case KindU32:
		n, _ := v.AsU32()
		buf[off] = byte(n >> 24)
		buf[off+1] = byte(n >> 16)
		buf[off+2] = byte(n >> 8)
		buf[off+3] = byte(n)
	case KindV4:
		a, _ := v.AsAddress()
		copy(buf[off:off+4], a.Bytes())
	case KindV6:
		a, _ := v.AsAddress()
		copy(buf[off:off+16], a.Bytes())
	case KindBytes:
		b, _ := v.AsBytes()
		copy(buf[off:off+fd.Size], b)
	case KindString:
		s, _ := v.AsString()
		copy(buf[off:off+fd.Size], s)
	default:
		return fmt.Errorf("packet: unsupported field kind %s", fd.Kind)
	}
	return nil
}

func readField(buf []byte, off int, fd FieldDescriptor) FieldValue {
	switch fd.Kind {
	case KindU4:
		return U4(buf[off] & 0x0f)
	case KindU8:
		return U8(buf[off])
	case KindU16:
		return U16(uint16(buf[off])<<8 | uint16(buf[off+1]))
	case KindU32:
		return U32(uint32(buf[off])<<24 | uint32(buf[off+1])<<16 | uint32(buf[off+2])<<8 | uint32(buf[off+3]))
	case KindV4:
		var a Address
		a.family = FamilyV4
		copy(a.bytes[:4], buf[off:off+4])
		return V4Value(a)
	case KindV6:
		var a Address
		a.family = FamilyV6
		copy(a.bytes[:16], buf[off:off+16])
		return V6Value(a)
	case KindBytes:
		return BytesValue(buf[off : off+fd.Size])
	case KindString:
		return StringValue(string(buf[off : off+fd.Size]))
	}
	return FieldValue{}
}

// Finalize recomputes and writes each layer's checksum, using the
// pseudo-header defined by the layer below. Sending a dirty (never
// finalized, or mutated-since-finalize) packet is a fatal programming
// error the caller must guard against with IsDirty.
func (p *Packet) Finalize() error {
	for i := range p.layers {
		l := &p.layers[i]
		if l.Descriptor.Checksum != nil {
			if err := l.Descriptor.Checksum(p, i); err != nil {
				return fmt.Errorf("packet: checksum %q: %w", l.Descriptor.Name, err)
			}
		}
	}
	p.dirty = false
	p.finalized = true
	return nil
}

// IsDirty reports whether the packet has been mutated since the last
// Finalize and must not be sent.
func (p *Packet) IsDirty() bool { return p.dirty || !p.finalized }

// transportLayerIdx returns the index of the last layer in the stack
// that carries a flow identifier (udp/tcp/icmpv4/icmpv6), if any.
func (p *Packet) transportLayerIdx() (idx int, ok bool) {
	for i := len(p.layers) - 1; i >= 0; i-- {
		if p.layers[i].Descriptor.SetFlowID != nil {
			return i, true
		}
	}
	return 0, false
}

// SetFlowID writes a caller-chosen 16-bit flow identifier into the
// transport layer using its covert-carrier mechanism, and re-finalizes
// only that layer (and, if it is a checksum compensator, the payload).
// This is the dedicated operation backing Paris-traceroute's flow
// identifier: it never requires a full Finalize of every layer.
func (p *Packet) SetFlowID(flowID uint16) error {
	idx, ok := p.transportLayerIdx()
	if !ok {
		return fmt.Errorf("packet: no layer supports a flow identifier")
	}
	d := p.layers[idx].Descriptor
	if err := d.SetFlowID(p, idx, flowID); err != nil {
		return err
	}
	if d.Checksum != nil {
		if err := d.Checksum(p, idx); err != nil {
			return err
		}
	}
	p.dirty = false
	return nil
}

// FlowID recovers the flow identifier previously written by SetFlowID.
func (p *Packet) FlowID() (uint16, error) {
	idx, ok := p.transportLayerIdx()
	if !ok {
		return 0, fmt.Errorf("packet: no layer supports a flow identifier")
	}
	return p.layers[idx].Descriptor.FlowID(p, idx)
}
