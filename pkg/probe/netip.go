package probe

import "net"

func v4Bytes(a Address4) net.IP { return net.IPv4(a[0], a[1], a[2], a[3]) }

func v6Bytes(a Address16) net.IP {
	ip := make(net.IP, 16)
	copy(ip, a[:])
	return ip
}
