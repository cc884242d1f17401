package packet

import (
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"
)

const (
	// IPv4HeaderLen is the length of an IPv4 header without options.
	IPv4HeaderLen = 20

	// ICMPHeaderLen is the length of the ICMP header including its
	// type-dependent 4-byte field.
	ICMPHeaderLen = 8

	// UDPHeaderLen is the length of a UDP header.
	UDPHeaderLen = 8

	// MaxPacketLen is the largest value the IPv4 total length field holds.
	MaxPacketLen = 65535

	// MaxEchoPayloadLen is the largest payload BuildEchoRequest accepts.
	MaxEchoPayloadLen = MaxPacketLen - IPv4HeaderLen - ICMPHeaderLen
)

// IP protocol numbers.
const (
	ProtocolICMP = 1
	ProtocolUDP  = 17
)

// ICMP message types decoded by this package.
const (
	TypeEchoReply              = uint8(ipv4.ICMPTypeEchoReply)
	TypeDestinationUnreachable = uint8(ipv4.ICMPTypeDestinationUnreachable)
	TypeEchoRequest            = uint8(ipv4.ICMPTypeEcho)
)

// DefaultTTL is the time-to-live written by BuildEchoRequest.
const DefaultTTL = 64

// IPv4 flag bits as they appear in the top three bits of the
// flags+fragment-offset field.
const (
	FlagDontFragment  = 0x2
	FlagMoreFragments = 0x1
)

// IPv4Header is a decoded IPv4 header. Multi-byte fields are in host order.
type IPv4Header struct {
	Version       uint8
	IHL           uint8 // header length in 32-bit words
	TOS           uint8
	TotalLength   uint16
	ID            uint16
	FlagsFragment uint16 // 3 flag bits followed by a 13-bit offset in 8-byte units
	TTL           uint8
	Protocol      uint8
	Checksum      uint16
	Src           netip.Addr
	Dst           netip.Addr
}

// HeaderLen returns the header length in bytes.
func (h IPv4Header) HeaderLen() int {
	return int(h.IHL) * 4
}

// Flags returns the three flag bits.
func (h IPv4Header) Flags() uint8 {
	return uint8(h.FlagsFragment >> 13)
}

// FragmentOffset returns the fragment offset in bytes.
func (h IPv4Header) FragmentOffset() int {
	return int(h.FlagsFragment&0x1fff) * 8
}

func decodeIPv4(f field) IPv4Header {
	vihl := f.u8(0)
	return IPv4Header{
		Version:       vihl >> 4,
		IHL:           vihl & 0x0f,
		TOS:           f.u8(1),
		TotalLength:   f.u16(2),
		ID:            f.u16(4),
		FlagsFragment: f.u16(6),
		TTL:           f.u8(8),
		Protocol:      f.u8(9),
		Checksum:      f.u16(10),
		Src:           f.addr4(12),
		Dst:           f.addr4(16),
	}
}

// encode writes h into the first 20 bytes of f. Options are not supported.
func (h IPv4Header) encode(f field) {
	f.putU8(0, h.Version<<4|h.IHL&0x0f)
	f.putU8(1, h.TOS)
	f.putU16(2, h.TotalLength)
	f.putU16(4, h.ID)
	f.putU16(6, h.FlagsFragment)
	f.putU8(8, h.TTL)
	f.putU8(9, h.Protocol)
	f.putU16(10, h.Checksum)
	f.putAddr4(12, h.Src)
	f.putAddr4(16, h.Dst)
}

// ICMPHeader is a decoded 8-byte ICMP header. Rest holds the
// type-dependent field exactly as it appeared on the wire.
type ICMPHeader struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	Rest     [4]byte
}

// TypeName returns the IANA name of the message type, such as
// "echo reply", or "type N" when the type is unassigned.
func (h ICMPHeader) TypeName() string {
	return TypeName(h.Type)
}

// TypeName returns the IANA name of an ICMPv4 message type.
func TypeName(t uint8) string {
	s := ipv4.ICMPType(t).String()
	if s == "" || s == "<nil>" {
		return fmt.Sprintf("type %d", t)
	}
	return s
}

func decodeICMP(f field) ICMPHeader {
	h := ICMPHeader{
		Type:     f.u8(0),
		Code:     f.u8(1),
		Checksum: f.u16(2),
	}
	copy(h.Rest[:], f[4:8])
	return h
}

// UDPHeader is a decoded UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	// Checksum is converted to host order like every other field, so
	// udp_sum renders as the value on the wire reads in network order.
	Checksum uint16
}

func decodeUDP(f field) UDPHeader {
	return UDPHeader{
		SrcPort:  f.u16(0),
		DstPort:  f.u16(2),
		Length:   f.u16(4),
		Checksum: f.u16(6),
	}
}

// Body is the type-dependent part of an ICMP message. It is one of
// *Echo, *Unreachable or *Opaque.
type Body interface {
	body()
}

// Echo is the body of Echo Request and Echo Reply messages.
type Echo struct {
	ID  uint16
	Seq uint16
}

// Unreachable is the body of a Destination Unreachable message.
type Unreachable struct {
	Embedded EmbeddedDatagram
}

// Opaque is the body of every other message type. Rest is the
// undecoded type-dependent field.
type Opaque struct {
	Rest [4]byte
}

func (*Echo) body()        {}
func (*Unreachable) body() {}
func (*Opaque) body()      {}

// EmbeddedDatagram is the leading part of the datagram quoted by a
// Destination Unreachable message.
type EmbeddedDatagram struct {
	IP IPv4Header

	// UDP is set when the embedded protocol is UDP.
	UDP *UDPHeader

	// Data holds whatever follows the embedded IP header (and UDP header,
	// when decoded).
	Data []byte
}
