// Package packet implements the layered packet assembler: byte-exact
// construction of IPv4/IPv6 + UDP/TCP/ICMP headers with checksum
// manipulation used as a covert flow identifier.
package packet

import (
	"fmt"
	"net"
)

// Family tags an Address as IPv4 or IPv6.
type Family uint8

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "v6"
	}
	return "v4"
}

// Address is an immutable tagged pair of family and 4- or 16-byte value.
type Address struct {
	family Family
	bytes  [16]byte
}

// NewAddressFromIP builds an Address from a net.IP, inferring the family.
func NewAddressFromIP(ip net.IP) (Address, error) {
	if v4 := ip.To4(); v4 != nil {
		var a Address
		a.family = FamilyV4
		copy(a.bytes[:4], v4)
		return a, nil
	}
	if v6 := ip.To16(); v6 != nil && ip.To4() == nil {
		var a Address
		a.family = FamilyV6
		copy(a.bytes[:], v6)
		return a, nil
	}
	return Address{}, fmt.Errorf("packet: invalid IP address %q", ip)
}

// MustAddress panics on error; used for static/test fixtures.
func MustAddress(ip string) Address {
	a, err := NewAddressFromIP(net.ParseIP(ip))
	if err != nil {
		panic(err)
	}
	return a
}

// Family reports whether the address is v4 or v6.
func (a Address) Family() Family { return a.family }

// Bytes returns the raw address bytes (4 for v4, 16 for v6).
func (a Address) Bytes() []byte {
	if a.family == FamilyV4 {
		return append([]byte(nil), a.bytes[:4]...)
	}
	return append([]byte(nil), a.bytes[:16]...)
}

// IP converts the Address back to a net.IP.
func (a Address) IP() net.IP {
	if a.family == FamilyV4 {
		return net.IP(append([]byte(nil), a.bytes[:4]...))
	}
	return net.IP(append([]byte(nil), a.bytes[:16]...))
}

// String formats the address in canonical textual form.
func (a Address) String() string {
	return a.IP().String()
}

// Equal reports whether two addresses denote the same family and value.
func (a Address) Equal(o Address) bool {
	return a.family == o.family && a.bytes == o.bytes
}

// IsZero reports whether the address was never assigned.
func (a Address) IsZero() bool {
	return a.family == FamilyV4 && a.bytes == [16]byte{}
}
