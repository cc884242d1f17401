package icmp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/icmp"

	"github.com/postalsys/rawicmp/internal/packet"
)

var (
	// ErrReadTimeout is returned by a Source when a read deadline expires
	// before a datagram arrives.
	ErrReadTimeout = errors.New("read timeout")

	// ErrUnsupported is returned when raw sockets are not available on this platform.
	ErrUnsupported = errors.New("raw ICMP sockets not supported on this platform")

	// ErrShortPacket is returned when a Sink is handed fewer bytes than an
	// IPv4 + ICMP header.
	ErrShortPacket = errors.New("packet shorter than IP and ICMP headers")
)

// EchoSocket sends echo requests over an unprivileged ICMP socket.
// Only the ICMP part of a built datagram goes on the wire; the kernel
// supplies the IP header.
type EchoSocket struct {
	conn *icmp.PacketConn
}

// NewEchoSocket creates an unprivileged ICMP socket bound to source.
// Uses "udp4" network which allows unprivileged ICMP on Linux when
// net.ipv4.ping_group_range sysctl is properly configured.
func NewEchoSocket(source string) (*EchoSocket, error) {
	if source == "" {
		source = "0.0.0.0"
	}
	conn, err := icmp.ListenPacket("udp4", source)
	if err != nil {
		return nil, fmt.Errorf("create ICMP socket: %w", err)
	}
	return &EchoSocket{conn: conn}, nil
}

// SendPacket sends the ICMP portion of pkt to dst.
func (s *EchoSocket) SendPacket(pkt []byte, dst netip.Addr) error {
	msg, err := icmpPortion(pkt)
	if err != nil {
		return err
	}
	// For unprivileged ICMP sockets, use UDP address
	destAddr := &net.UDPAddr{IP: dst.Unmap().AsSlice()}
	if _, err := s.conn.WriteTo(msg, destAddr); err != nil {
		return fmt.Errorf("send ICMP: %w", err)
	}
	return nil
}

// Close closes the socket.
func (s *EchoSocket) Close() error {
	return s.conn.Close()
}

// icmpPortion returns the bytes after the IP header of a built datagram.
func icmpPortion(pkt []byte) ([]byte, error) {
	if len(pkt) < packet.IPv4HeaderLen+packet.ICMPHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(pkt))
	}
	ihl := int(pkt[0]&0x0f) * 4
	if ihl < packet.IPv4HeaderLen || len(pkt) < ihl+packet.ICMPHeaderLen {
		return nil, fmt.Errorf("%w: header length %d", ErrShortPacket, ihl)
	}
	return pkt[ihl:], nil
}
