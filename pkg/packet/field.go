package packet

import "fmt"

// FieldKind tags the type carried by a Field/FieldValue.
type FieldKind uint8

const (
	KindU4 FieldKind = iota
	KindU8
	KindU16
	KindU32
	KindV4
	KindV6
	KindBytes
	KindString
)

func (k FieldKind) String() string {
	switch k {
	case KindU4:
		return "u4"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindV4:
		return "v4"
	case KindV6:
		return "v6"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// FieldValue is a named, typed value: a universal read/write cursor into a
// packet buffer that never exposes byte offsets to callers.
type FieldValue struct {
	Kind  FieldKind
	num   uint32
	addr  Address
	bytes []byte
	str   string
}

// U4 builds a 4-bit unsigned field value (0..15).
func U4(v uint8) FieldValue { return FieldValue{Kind: KindU4, num: uint32(v & 0x0f)} }

// U8 builds an 8-bit unsigned field value.
func U8(v uint8) FieldValue { return FieldValue{Kind: KindU8, num: uint32(v)} }

// U16 builds a 16-bit unsigned field value.
func U16(v uint16) FieldValue { return FieldValue{Kind: KindU16, num: uint32(v)} }

// U32 builds a 32-bit unsigned field value.
func U32(v uint32) FieldValue { return FieldValue{Kind: KindU32, num: v} }

// V4Value builds a field value carrying an IPv4 address.
func V4Value(a Address) FieldValue { return FieldValue{Kind: KindV4, addr: a} }

// V6Value builds a field value carrying an IPv6 address.
func V6Value(a Address) FieldValue { return FieldValue{Kind: KindV6, addr: a} }

// BytesValue builds a field value carrying a raw byte string.
func BytesValue(b []byte) FieldValue {
	return FieldValue{Kind: KindBytes, bytes: append([]byte(nil), b...)}
}

// StringValue builds a field value carrying a string.
func StringValue(s string) FieldValue { return FieldValue{Kind: KindString, str: s} }

// AsU32 returns the value as an unsigned integer, for any integer kind.
func (v FieldValue) AsU32() (uint32, error) {
	switch v.Kind {
	case KindU4, KindU8, KindU16, KindU32:
		return v.num, nil
	default:
		return 0, fmt.Errorf("packet: field is %s, not integer", v.Kind)
	}
}

// AsAddress returns the value as an Address, for v4/v6 kinds.
func (v FieldValue) AsAddress() (Address, error) {
	switch v.Kind {
	case KindV4, KindV6:
		return v.addr, nil
	default:
		return Address{}, fmt.Errorf("packet: field is %s, not an address", v.Kind)
	}
}

// AsBytes returns the value as raw bytes.
func (v FieldValue) AsBytes() ([]byte, error) {
	if v.Kind != KindBytes {
		return nil, fmt.Errorf("packet: field is %s, not bytes", v.Kind)
	}
	return append([]byte(nil), v.bytes...), nil
}

// AsString returns the value as a string.
func (v FieldValue) AsString() (string, error) {
	if v.Kind != KindString {
		return "", fmt.Errorf("packet: field is %s, not string", v.Kind)
	}
	return v.str, nil
}

// FieldDescriptor names one field exposed by a protocol layer: its key,
// type, byte offset and size within the layer's header, and an optional
// default value written by set_protocols.
type FieldDescriptor struct {
	Key     string
	Kind    FieldKind
	Offset  int
	Size    int
	Default *FieldValue
}
