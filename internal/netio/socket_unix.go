//go:build !windows

package netio

import "syscall"

// socketFD is a raw socket file descriptor on Unix systems.
type socketFD int

const invalidSocket socketFD = -1

func createRawSocket(domain, sockType, proto int) (socketFD, error) {
	fd, err := syscall.Socket(domain, sockType, proto)
	if err != nil {
		return invalidSocket, err
	}
	return socketFD(fd), nil
}

func closeSocket(fd socketFD) error {
	return syscall.Close(int(fd))
}

func setSocketIntOpt(fd socketFD, level, opt, value int) error {
	return syscall.SetsockoptInt(int(fd), level, opt, value)
}

// setHeaderIncluded enables IP_HDRINCL so the caller's own IPv4 header,
// built by pkg/packet, is sent on the wire unmodified by the kernel.
// IPv6 raw sockets have no equivalent switch — the kernel always
// supplies its own IPv6 header — which is why the IPv6 sender skips the
// assembled header entirely rather than asking the kernel not to.
func setHeaderIncluded(fd socketFD) error {
	return setSocketIntOpt(fd, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1)
}

func sendToSocket(fd socketFD, data []byte, sa syscall.Sockaddr) error {
	return syscall.Sendto(int(fd), data, 0, sa)
}

func recvFromSocket(fd socketFD, buf []byte) (int, syscall.Sockaddr, error) {
	return syscall.Recvfrom(int(fd), buf, 0)
}
