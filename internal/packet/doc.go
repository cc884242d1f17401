// Package packet encodes ICMP echo requests as complete IPv4 datagrams and
// decodes raw IPv4/ICMP datagrams as read from a raw ICMP socket.
//
// # Layout
//
// All multi-byte fields are big-endian on the wire. Field access goes
// through a bounds-checked cursor; no byte buffer is ever reinterpreted as
// a native struct.
//
//	IPv4 header   20..60 bytes (header-length-words x 4)
//	ICMP header   8 bytes: type, code, checksum, 4 type-dependent bytes
//	payload       everything after the ICMP header
//
// For Destination Unreachable the type-dependent bytes are unused and the
// payload starts with the header of the datagram that triggered the error,
// followed by its first bytes. If that datagram was UDP its 8-byte header
// is decoded as well.
//
// # Ownership
//
// Parse does not copy. The Packet it returns holds slices of the input
// buffer, so the caller must not reuse the buffer while the Packet is in
// use.
package packet
