package algo

import "github.com/tracelattice/tracelattice/pkg/packet"

// LocalSourceAddress stands in for a route-table lookup of the outbound
// interface address: the zero address of dst's family, which IP_HDRINCL
// sends as-is and the kernel's own routing fills in for non-HDRINCL
// sends. Shared by the paris and mda constructors. A future revision can
// resolve the real interface address once the CLI layer exposes one.
func LocalSourceAddress(dst packet.Address) packet.Address {
	if dst.Family() == packet.FamilyV4 {
		return packet.MustAddress("0.0.0.0")
	}
	return packet.MustAddress("::")
}
