//go:build linux

package icmp

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/sys/unix"
)

// RawSocketOptions configures a RawSocket.
type RawSocketOptions struct {
	// HeaderIncluded sets IP_HDRINCL so the caller's IP header is sent as built.
	HeaderIncluded bool

	// ReadTimeout bounds each read. 0 blocks indefinitely.
	ReadTimeout time.Duration
}

// RawSocket is a raw IPv4 socket for protocol ICMP. Every read yields one
// datagram including its IP header.
type RawSocket struct {
	fd             int
	headerIncluded bool
}

// OpenRawSocket opens a raw ICMP socket. Requires CAP_NET_RAW.
func OpenRawSocket(opts RawSocketOptions) (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, fmt.Errorf("open raw socket: %w", err)
	}

	if opts.HeaderIncluded {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("set IP_HDRINCL: %w", err)
		}
	}

	if opts.ReadTimeout > 0 {
		tv := unix.NsecToTimeval(opts.ReadTimeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("set SO_RCVTIMEO: %w", err)
		}
	}

	return &RawSocket{fd: fd, headerIncluded: opts.HeaderIncluded}, nil
}

// ReadPacket reads one datagram into buf.
// Returns ErrReadTimeout when the configured read timeout expires.
func (s *RawSocket) ReadPacket(buf []byte) (int, error) {
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
			return 0, ErrReadTimeout
		default:
			return 0, fmt.Errorf("read raw socket: %w", err)
		}
	}
}

// SendPacket sends a built datagram to dst. Without header inclusion only
// the ICMP portion is written and the kernel builds the IP header.
func (s *RawSocket) SendPacket(pkt []byte, dst netip.Addr) error {
	dst = dst.Unmap()
	if !dst.Is4() {
		return fmt.Errorf("send raw socket: %s is not an IPv4 address", dst)
	}

	out := pkt
	if !s.headerIncluded {
		var err error
		if out, err = icmpPortion(pkt); err != nil {
			return err
		}
	}

	sa := &unix.SockaddrInet4{Addr: dst.As4()}
	if err := unix.Sendto(s.fd, out, 0, sa); err != nil {
		return fmt.Errorf("send raw socket: %w", err)
	}
	return nil
}

// Close closes the socket.
func (s *RawSocket) Close() error {
	return unix.Close(s.fd)
}
