package netio

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/perr"
)

// ipv6HeaderLen mirrors pkg/packet's unexported IPv6 constant: the
// sender must skip these bytes on IPv6 sends since, unlike IPv4's
// IP_HDRINCL, there is no portable way to ask the kernel to use the
// caller's own IPv6 header verbatim.
const ipv6HeaderLen = 40

// Sender owns one raw socket per address family (plus one per upper
// protocol for IPv6, since the header the kernel supplies is keyed to
// the socket's own protocol) and writes fully assembled packets built by
// pkg/packet onto the wire.
type Sender struct {
	mu    sync.Mutex
	v4fd  socketFD
	v6fds map[int]socketFD
}

// NewSender opens the IPv4 raw socket eagerly (IPv6 sockets are opened
// lazily, one per upper protocol, on first send of that protocol).
func NewSender() (*Sender, error) {
	v4fd, err := createRawSocket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_RAW)
	if err != nil {
		return nil, perr.Wrap(perr.ErrPermissionDenied, err)
	}
	if err := setHeaderIncluded(v4fd); err != nil {
		closeSocket(v4fd)
		return nil, perr.Wrap(perr.ErrPermissionDenied, err)
	}
	return &Sender{v4fd: v4fd, v6fds: make(map[int]socketFD)}, nil
}

// Close releases every socket the sender has opened.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if err := closeSocket(s.v4fd); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, fd := range s.v6fds {
		if err := closeSocket(fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Sender) v6Socket(protocol, hopLimit int) (socketFD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fd, ok := s.v6fds[protocol]
	if !ok {
		var err error
		fd, err = createRawSocket(syscall.AF_INET6, syscall.SOCK_RAW, protocol)
		if err != nil {
			return invalidSocket, perr.Wrap(perr.ErrPermissionDenied, err)
		}
		s.v6fds[protocol] = fd
	}
	if err := setSocketIntOpt(fd, syscall.IPPROTO_IPV6, syscall.IPV6_UNICAST_HOPS, hopLimit); err != nil {
		return invalidSocket, fmt.Errorf("netio: set hop limit: %w", err)
	}
	return fd, nil
}

// Send transmits a finalized packet, retrying a failed write up to three
// times before giving up with ErrSendFailed, and returns the monotonic
// send timestamp recorded immediately before the final attempt's write.
// protocol is the IPv6 upper-layer protocol number, ignored for IPv4
// (which carries its own protocol field already written by Finalize).
func (s *Sender) Send(pkt *packet.Packet, dst packet.Address, hopLimit, protocol int) (time.Time, error) {
	if pkt.IsDirty() {
		return time.Time{}, fmt.Errorf("netio: refusing to send an unfinalized packet")
	}

	var payload []byte
	var fd socketFD
	var sa syscall.Sockaddr

	switch dst.Family() {
	case packet.FamilyV4:
		payload = pkt.Bytes()
		fd = s.v4fd
		var addr [4]byte
		copy(addr[:], dst.Bytes())
		sa = &syscall.SockaddrInet4{Addr: addr}
	default:
		payload = pkt.Bytes()[ipv6HeaderLen:]
		var err error
		fd, err = s.v6Socket(protocol, hopLimit)
		if err != nil {
			return time.Time{}, err
		}
		var addr [16]byte
		copy(addr[:], dst.Bytes())
		sa = &syscall.SockaddrInet6{Addr: addr}
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		sendTime := time.Now()
		if err := sendToSocket(fd, payload, sa); err != nil {
			lastErr = err
			continue
		}
		return sendTime, nil
	}
	return time.Time{}, perr.Wrap(perr.ErrSendFailed, fmt.Errorf("send failed after %d attempts: %w", maxAttempts, lastErr))
}
