package packet

import (
	"fmt"
	"net/netip"

	"github.com/postalsys/rawicmp/internal/checksum"
)

// BuildEchoRequest returns a complete IPv4 datagram carrying an ICMP Echo
// Request from src to dst with the given identifier, sequence number and
// payload.
//
// The IPv4 header checksum and identification are left zero for the
// sending layer; on a header-included raw socket the kernel fills them in.
// The ICMP checksum covers the ICMP header and payload.
func BuildEchoRequest(src, dst netip.Addr, id, seq uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxEchoPayloadLen {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidInput, len(payload), MaxEchoPayloadLen)
	}
	src, err := toIPv4(src, "source")
	if err != nil {
		return nil, err
	}
	dst, err = toIPv4(dst, "destination")
	if err != nil {
		return nil, err
	}

	total := IPv4HeaderLen + ICMPHeaderLen + len(payload)
	buf := make([]byte, total)

	ip := IPv4Header{
		Version:     4,
		IHL:         IPv4HeaderLen / 4,
		TotalLength: uint16(total),
		TTL:         DefaultTTL,
		Protocol:    ProtocolICMP,
		Src:         src,
		Dst:         dst,
	}
	ip.encode(field(buf[:IPv4HeaderLen]))

	msg := field(buf[IPv4HeaderLen:])
	msg.putU8(0, TypeEchoRequest)
	msg.putU8(1, 0)
	msg.putU16(2, 0)
	msg.putU16(4, id)
	msg.putU16(6, seq)
	copy(msg[ICMPHeaderLen:], payload)

	msg.putU16(2, checksum.Checksum(msg))

	return buf, nil
}

// IncrementingPayload returns n bytes counting up from zero, wrapping at
// 256. It is the default echo payload and easy to recognise in a reply.
func IncrementingPayload(n int) []byte {
	if n <= 0 {
		return nil
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func toIPv4(a netip.Addr, which string) (netip.Addr, error) {
	a = a.Unmap()
	if !a.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %s address %v is not IPv4", ErrInvalidInput, which, a)
	}
	return a, nil
}
