package probe

import "errors"

var (
	errShortPacket         = errors.New("probe: packet has no transport layer")
	errUnknownNetworkLayer = errors.New("probe: packet's first layer is not ipv4 or ipv6")
	errNoCapacity          = errors.New("probe: flow identifier pool is exhausted")
)
