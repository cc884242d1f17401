package packet

import "net/netip"

var (
	testSrc = netip.MustParseAddr("192.168.1.10")
	testDst = netip.MustParseAddr("8.8.8.8")
)

// ipv4Bytes encodes a 20-byte header with the given protocol and total length.
func ipv4Bytes(proto uint8, total int, src, dst netip.Addr) []byte {
	b := make([]byte, IPv4HeaderLen)
	IPv4Header{
		Version:     4,
		IHL:         5,
		TotalLength: uint16(total),
		TTL:         DefaultTTL,
		Protocol:    proto,
		Src:         src,
		Dst:         dst,
	}.encode(field(b))
	return b
}

// unreachableFixture builds a Port Unreachable message quoting a UDP
// datagram from dst back to src, followed by trailing bytes of its payload.
func unreachableFixture(sport, dport, ulen uint16, trailing []byte) []byte {
	inner := ipv4Bytes(ProtocolUDP, IPv4HeaderLen+int(ulen), testSrc, testDst)

	udp := make([]byte, UDPHeaderLen)
	f := field(udp)
	f.putU16(0, sport)
	f.putU16(2, dport)
	f.putU16(4, ulen)
	f.putU16(6, 0xbeef)

	icmpMsg := []byte{TypeDestinationUnreachable, 3, 0, 0, 0, 0, 0, 0}
	icmpMsg = append(icmpMsg, inner...)
	icmpMsg = append(icmpMsg, udp...)
	icmpMsg = append(icmpMsg, trailing...)

	outer := ipv4Bytes(ProtocolICMP, IPv4HeaderLen+len(icmpMsg), testDst, testSrc)
	return append(outer, icmpMsg...)
}
