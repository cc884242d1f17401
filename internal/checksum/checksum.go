// Package checksum implements the RFC 1071 Internet checksum used by the
// IPv4, ICMP, UDP and TCP headers.
package checksum

// Checksum returns the one's complement of the one's complement sum of b,
// taken as a stream of big-endian 16-bit words. A trailing odd byte is the
// high-order byte of a word whose low byte is zero.
//
// The checksum of an empty buffer is 0xFFFF.
func Checksum(b []byte) uint16 {
	return ^Sum(0, b)
}

// Sum folds b into the running 16-bit one's complement sum initial and
// returns the folded result. It is the building block for checksums that
// span several buffers (for example a pseudo-header followed by a segment).
func Sum(initial uint16, b []byte) uint16 {
	sum := uint32(initial)

	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum = fold(sum + (uint32(b[i])<<8 | uint32(b[i+1])))
	}

	// odd
	if n%2 == 1 {
		sum = fold(sum + uint32(b[n-1])<<8)
	}

	return uint16(sum)
}

// Valid reports whether b, with its checksum field as received, sums to
// zero. This holds for any buffer whose checksum was computed correctly
// and which has not been altered since.
func Valid(b []byte) bool {
	return Checksum(b) == 0
}

// fold adds the carry above bit 15 back into the low 16 bits until the
// value fits.
func fold(sum uint32) uint32 {
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return sum
}
