//go:build !linux

package icmp

import (
	"net/netip"
	"time"
)

// RawSocketOptions configures a RawSocket.
type RawSocketOptions struct {
	HeaderIncluded bool
	ReadTimeout    time.Duration
}

// RawSocket is unavailable on this platform.
type RawSocket struct{}

// OpenRawSocket always fails with ErrUnsupported.
func OpenRawSocket(RawSocketOptions) (*RawSocket, error) {
	return nil, ErrUnsupported
}

// ReadPacket always fails with ErrUnsupported.
func (*RawSocket) ReadPacket([]byte) (int, error) { return 0, ErrUnsupported }

// SendPacket always fails with ErrUnsupported.
func (*RawSocket) SendPacket([]byte, netip.Addr) error { return ErrUnsupported }

// Close is a no-op.
func (*RawSocket) Close() error { return nil }
