package icmp

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/postalsys/rawicmp/internal/render"
)

// DefaultBufferSize is the receive buffer size used when none is configured.
const DefaultBufferSize = 8192

// SnifferConfig holds configuration for the receive loop.
type SnifferConfig struct {
	// BufferSize is the size of the buffer handed to each read.
	// Datagrams longer than this are truncated by the socket.
	BufferSize int

	// VerifyChecksums enables ICMP and IP header checksum verification.
	// Mismatches are logged and counted but the packet is still rendered.
	VerifyChecksums bool

	// Threshold is the payload truncation threshold passed to the renderer.
	Threshold int

	// Color enables ANSI styling of section headings.
	Color bool

	// ErrorLogInterval bounds how often parse failures are logged.
	// 0 logs every failure.
	ErrorLogInterval time.Duration
}

// DefaultSnifferConfig returns a SnifferConfig with sensible defaults.
func DefaultSnifferConfig() SnifferConfig {
	return SnifferConfig{
		BufferSize:       DefaultBufferSize,
		VerifyChecksums:  true,
		Threshold:        render.DefaultThreshold,
		ErrorLogInterval: time.Second,
	}
}

// PingConfig holds configuration for the send path.
type PingConfig struct {
	// AllowedCIDRs restricts which destinations can be pinged.
	// Empty list means all destinations are allowed.
	AllowedCIDRs []netip.Prefix
}

// DefaultPingConfig returns a PingConfig with sensible defaults.
func DefaultPingConfig() PingConfig {
	return PingConfig{}
}

// Allowed reports whether dst may be pinged.
func (c PingConfig) Allowed(dst netip.Addr) bool {
	if len(c.AllowedCIDRs) == 0 {
		return true
	}
	dst = dst.Unmap()
	for _, p := range c.AllowedCIDRs {
		if p.Contains(dst) {
			return true
		}
	}
	return false
}

// ParseCIDRs parses a list of CIDR strings into prefixes.
func ParseCIDRs(cidrs []string) ([]netip.Prefix, error) {
	result := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		if !p.Addr().Is4() {
			return nil, fmt.Errorf("invalid CIDR %q: not IPv4", cidr)
		}
		result = append(result, p.Masked())
	}
	return result, nil
}
