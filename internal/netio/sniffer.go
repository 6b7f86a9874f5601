package netio

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/tracelattice/tracelattice/internal/diag"
	"github.com/tracelattice/tracelattice/pkg/packet"
	"github.com/tracelattice/tracelattice/pkg/probe"
)

// Sniffer owns one raw ICMP socket per address family and turns every
// inbound datagram into a parsed probe.Reply, delivered on a channel the
// event loop selects on alongside its timer — the idiomatic Go stand-in
// for the single-threaded "wait on raw-socket readability" step, since a
// blocking ReadFrom has to live on its own goroutine somewhere.
type Sniffer struct {
	v4conn *icmp.PacketConn
	v6conn *icmp.PacketConn

	v4tcpFD socketFD
	v6tcpFD socketFD

	replies chan probe.Reply
	done    chan struct{}
}

// NewSniffer opens the ICMPv4 and ICMPv6 raw sockets and starts their
// receive loops. Either conn may be nil if that family was not
// requested; a call requesting neither family is not rejected and
// returns a Sniffer that listens on nothing. wantTCP additionally opens a raw TCP capture
// socket per requested family: a TCP-mode run needs this to ever see the
// destination's own reset/SYN-ACK, since that reply never arrives as
// ICMP.
func NewSniffer(wantV4, wantV6, wantTCP bool) (*Sniffer, error) {
	s := &Sniffer{
		v4tcpFD: invalidSocket,
		v6tcpFD: invalidSocket,
		replies: make(chan probe.Reply, 256),
		done:    make(chan struct{}),
	}
	if wantV4 {
		conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
		if err != nil {
			return nil, err
		}
		_ = conn.IPv4PacketConn().SetControlMessage(ipv4.FlagTTL, true)
		s.v4conn = conn
		go s.readLoop(conn, packet.FamilyV4)

		if wantTCP {
			fd, err := createRawSocket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_TCP)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.v4tcpFD = fd
			go s.readTCPLoop(fd, packet.FamilyV4)
		}
	}
	if wantV6 {
		conn, err := icmp.ListenPacket("ip6:ipv6-icmp", "::")
		if err != nil {
			s.Close()
			return nil, err
		}
		_ = conn.IPv6PacketConn().SetControlMessage(ipv6.FlagHopLimit, true)
		s.v6conn = conn
		go s.readLoop(conn, packet.FamilyV6)

		if wantTCP {
			fd, err := createRawSocket(syscall.AF_INET6, syscall.SOCK_RAW, syscall.IPPROTO_TCP)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.v6tcpFD = fd
			go s.readTCPLoop(fd, packet.FamilyV6)
		}
	}
	return s, nil
}

// Replies is the channel the event loop drains on each iteration.
func (s *Sniffer) Replies() <-chan probe.Reply { return s.replies }

// Close stops every receive loop and releases their sockets.
func (s *Sniffer) Close() error {
	close(s.done)
	var firstErr error
	if s.v4conn != nil {
		if err := s.v4conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.v6conn != nil {
		if err := s.v6conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.v4tcpFD != invalidSocket {
		if err := closeSocket(s.v4tcpFD); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.v6tcpFD != invalidSocket {
		if err := closeSocket(s.v6tcpFD); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// readTCPLoop reads raw IPv4/IPv6 datagrams off a TCP capture socket and
// turns the ones that classify as a reset or SYN-ACK into replies. It
// sees every TCP segment addressed to the host, not only ones answering
// a probe this runtime sent — Registry.MatchTCPFlow's address+flow-ID
// lookup is what rejects the rest.
//
// IPv4 and IPv6 raw sockets disagree on what a read delivers: IPv4
// includes the IP header (a BSD-socket historical quirk IP_HDRINCL's
// read-side counterpart), IPv6 never does. Rather than parse the source
// address out of a header that may not be there, this loop always takes
// it from recvfrom's own peer address.
func (s *Sniffer) readTCPLoop(fd socketFD, family packet.Family) {
	buf := make([]byte, 1500)
	for {
		n, sa, err := recvFromSocket(fd, buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				diag.Printf("netio: tcp sniffer read error on %s: %v", family, err)
				continue
			}
		}

		data := buf[:n]
		if family == packet.FamilyV4 {
			if len(data) < 20 {
				continue
			}
			ihl := int(data[0]&0x0f) * 4
			if ihl < 20 || len(data) < ihl {
				continue
			}
			data = data[ihl:]
		}

		reply, ok := probe.ParseTCPSegment(data, time.Now())
		if !ok {
			continue
		}
		from, ok := addressFromSockaddr(sa)
		if !ok {
			continue
		}
		reply.From = from
		select {
		case s.replies <- reply:
		case <-s.done:
			return
		}
	}
}

// addressFromSockaddr converts a raw socket's recvfrom peer address into
// a packet.Address, the only two shapes createRawSocket's AF_INET/
// AF_INET6 sockets ever produce.
func addressFromSockaddr(sa syscall.Sockaddr) (packet.Address, bool) {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		ip := net.IPv4(a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3])
		addr, err := packet.NewAddressFromIP(ip)
		return addr, err == nil
	case *syscall.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, a.Addr[:])
		addr, err := packet.NewAddressFromIP(ip)
		return addr, err == nil
	default:
		return packet.Address{}, false
	}
}

func (s *Sniffer) readLoop(conn *icmp.PacketConn, family packet.Family) {
	buf := make([]byte, 1500)
	for {
		var n int
		var peer net.Addr
		var err error
		var ttl int

		if family == packet.FamilyV4 {
			var cm *ipv4.ControlMessage
			n, cm, peer, err = conn.IPv4PacketConn().ReadFrom(buf)
			if cm != nil {
				ttl = cm.TTL
			}
		} else {
			var cm *ipv6.ControlMessage
			n, cm, peer, err = conn.IPv6PacketConn().ReadFrom(buf)
			if cm != nil {
				ttl = cm.HopLimit
			}
		}
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				diag.Printf("netio: sniffer read error on %s: %v", family, err)
				continue
			}
		}

		peerIP, ok := peer.(*net.IPAddr)
		if !ok {
			continue
		}
		from, err := packet.NewAddressFromIP(peerIP.IP)
		if err != nil {
			continue
		}

		reply, ok := probe.ParseICMPReply(family, buf[:n], from, ttl, 0, time.Now())
		if !ok {
			continue
		}
		select {
		case s.replies <- reply:
		case <-s.done:
			return
		}
	}
}
