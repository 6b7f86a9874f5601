//go:build windows

package netio

import "syscall"

// socketFD is a raw socket handle on Windows systems.
type socketFD syscall.Handle

const invalidSocket socketFD = socketFD(syscall.InvalidHandle)

func createRawSocket(domain, sockType, proto int) (socketFD, error) {
	fd, err := syscall.Socket(domain, sockType, proto)
	if err != nil {
		return invalidSocket, err
	}
	return socketFD(fd), nil
}

func closeSocket(fd socketFD) error {
	return syscall.Closesocket(syscall.Handle(fd))
}

func setSocketIntOpt(fd socketFD, level, opt, value int) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), level, opt, value)
}

func setHeaderIncluded(fd socketFD) error {
	return setSocketIntOpt(fd, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1)
}

func sendToSocket(fd socketFD, data []byte, sa syscall.Sockaddr) error {
	return syscall.Sendto(syscall.Handle(fd), data, 0, sa)
}

func recvFromSocket(fd socketFD, buf []byte) (int, syscall.Sockaddr, error) {
	return syscall.Recvfrom(syscall.Handle(fd), buf, 0)
}
