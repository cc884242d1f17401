package packet

import (
	"fmt"

	"github.com/postalsys/rawicmp/internal/checksum"
)

// Packet is a decoded IPv4/ICMP datagram.
type Packet struct {
	IP   IPv4Header
	ICMP ICMPHeader

	// Body is *Echo for echo request/reply, *Unreachable for destination
	// unreachable and *Opaque for everything else.
	Body Body

	// Payload is every captured byte after the 8-byte ICMP header.
	Payload []byte

	ipRaw   []byte
	icmpRaw []byte
}

// Echo returns the echo body, or nil if the message is not an echo.
func (p *Packet) Echo() *Echo {
	e, _ := p.Body.(*Echo)
	return e
}

// Embedded returns the embedded datagram of a Destination Unreachable
// message, or nil for other types.
func (p *Packet) Embedded() *EmbeddedDatagram {
	if u, ok := p.Body.(*Unreachable); ok {
		return &u.Embedded
	}
	return nil
}

// IPHeaderBytes returns the raw IPv4 header including options.
func (p *Packet) IPHeaderBytes() []byte {
	return p.ipRaw
}

// ICMPHeaderBytes returns the raw 8-byte ICMP header.
func (p *Packet) ICMPHeaderBytes() []byte {
	if len(p.icmpRaw) < ICMPHeaderLen {
		return p.icmpRaw
	}
	return p.icmpRaw[:ICMPHeaderLen]
}

// VerifyChecksum recomputes the ICMP checksum over the ICMP header and
// payload as received. A mismatch is reported as ErrChecksumMismatch.
func (p *Packet) VerifyChecksum() error {
	if !checksum.Valid(p.icmpRaw) {
		return fmt.Errorf("%w: icmp checksum %#04x", ErrChecksumMismatch, p.ICMP.Checksum)
	}
	return nil
}

// VerifyHeaderChecksum checks the IPv4 header checksum. A zero checksum is
// accepted because outgoing packets leave it for the kernel to fill in.
func (p *Packet) VerifyHeaderChecksum() error {
	if p.IP.Checksum == 0 {
		return nil
	}
	if !checksum.Valid(p.ipRaw) {
		return fmt.Errorf("%w: ip header checksum %#04x", ErrChecksumMismatch, p.IP.Checksum)
	}
	return nil
}

// Parse decodes raw, a single IPv4 datagram carrying ICMP as read from a
// raw ICMP socket. The returned Packet aliases raw.
func Parse(raw []byte) (*Packet, error) {
	c := newCursor(raw)

	ip, ipRaw, err := readIPv4(c)
	if err != nil {
		return nil, err
	}

	icmpRaw, _ := c.peek(c.remaining())
	hdr, ok := c.take(ICMPHeaderLen)
	if !ok {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncatedICMP, ICMPHeaderLen, ip.HeaderLen(), len(raw)-ip.HeaderLen())
	}

	p := &Packet{
		IP:      ip,
		ICMP:    decodeICMP(field(hdr)),
		ipRaw:   ipRaw,
		icmpRaw: icmpRaw,
	}

	switch p.ICMP.Type {
	case TypeEchoReply, TypeEchoRequest:
		p.Body = &Echo{
			ID:  field(hdr).u16(4),
			Seq: field(hdr).u16(6),
		}

	case TypeDestinationUnreachable:
		// RFC 792: type, code, checksum and 4 unused bytes form the 8-byte
		// ICMP header, so the quoted datagram starts at ip_header_len+8.
		quoted, _ := c.peek(c.remaining())
		emb, err := readEmbedded(newCursor(quoted))
		if err != nil {
			return nil, err
		}
		p.Body = &Unreachable{Embedded: emb}

	default:
		p.Body = &Opaque{Rest: p.ICMP.Rest}
	}

	p.Payload = c.rest()

	return p, nil
}

// readIPv4 decodes an IPv4 header at the cursor and advances past it,
// options included.
func readIPv4(c *cursor) (IPv4Header, []byte, error) {
	fixed, ok := c.peek(IPv4HeaderLen)
	if !ok {
		return IPv4Header{}, nil, fmt.Errorf("%w: need %d bytes, have %d",
			ErrTruncatedHeader, IPv4HeaderLen, c.remaining())
	}

	h := decodeIPv4(field(fixed))
	if h.Version != 4 {
		return IPv4Header{}, nil, fmt.Errorf("%w: version %d", ErrMalformedHeader, h.Version)
	}
	if h.HeaderLen() < IPv4HeaderLen {
		return IPv4Header{}, nil, fmt.Errorf("%w: header length %d bytes", ErrMalformedHeader, h.HeaderLen())
	}

	raw, ok := c.take(h.HeaderLen())
	if !ok {
		return IPv4Header{}, nil, fmt.Errorf("%w: header length %d exceeds %d captured bytes",
			ErrTruncatedHeader, h.HeaderLen(), c.remaining())
	}

	return h, raw, nil
}

// readEmbedded decodes the quoted datagram of a Destination Unreachable
// message. Every failure matches ErrTruncatedEmbedded.
func readEmbedded(c *cursor) (EmbeddedDatagram, error) {
	ip, _, err := readIPv4(c)
	if err != nil {
		return EmbeddedDatagram{}, fmt.Errorf("%w: %w", ErrTruncatedEmbedded, err)
	}

	emb := EmbeddedDatagram{IP: ip}

	if ip.Protocol == ProtocolUDP {
		hdr, ok := c.take(UDPHeaderLen)
		if !ok {
			return EmbeddedDatagram{}, fmt.Errorf("%w: need %d bytes for udp header, have %d",
				ErrTruncatedEmbedded, UDPHeaderLen, c.remaining())
		}
		udp := decodeUDP(field(hdr))
		emb.UDP = &udp
	}

	emb.Data = c.rest()

	return emb, nil
}
