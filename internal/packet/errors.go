package packet

import "errors"

var (
	// ErrInvalidInput is returned when a caller-supplied value is out of range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTruncatedHeader is returned when a buffer is shorter than the IPv4
	// header it claims to hold.
	ErrTruncatedHeader = errors.New("truncated ip header")

	// ErrTruncatedICMP is returned when a buffer ends inside the ICMP header.
	ErrTruncatedICMP = errors.New("truncated icmp header")

	// ErrTruncatedEmbedded is returned when the embedded datagram of a
	// Destination Unreachable message cannot be decoded.
	ErrTruncatedEmbedded = errors.New("truncated embedded datagram")

	// ErrMalformedHeader is returned for an IPv4 header with a version other
	// than 4 or a header length below 20 bytes.
	ErrMalformedHeader = errors.New("malformed ip header")

	// ErrChecksumMismatch is returned by the verification helpers. It is
	// informational: the packet is still usable.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ErrorKind returns a short stable label for err, suitable for metric
// labels and log fields. Unknown errors map to "other".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTruncatedEmbedded):
		return "truncated_embedded"
	case errors.Is(err, ErrTruncatedHeader):
		return "truncated_header"
	case errors.Is(err, ErrTruncatedICMP):
		return "truncated_icmp"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "other"
	}
}
