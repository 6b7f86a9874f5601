package packet

import "errors"

var (
	errNoNetworkLayer       = errors.New("packet: transport layer has no network layer below it")
	errNeedsCompensatorRoom = errors.New("packet: payload too small to carry a flow identifier (need >= 2 bytes)")
)
