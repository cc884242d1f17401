// Package render formats decoded packets as the plain-text report printed
// by the sniffer.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/postalsys/rawicmp/internal/packet"
)

// DefaultThreshold is the capture length above which the ICMP payload is
// summarised rather than dumped.
const DefaultThreshold = 84

// Options configures a Renderer.
type Options struct {
	// Threshold is the largest capture length whose payload is dumped in
	// full. Zero means DefaultThreshold; a negative value dumps everything.
	Threshold int

	// Color highlights the per-packet banner with ANSI colours.
	Color bool
}

// Renderer turns packets into text reports. It is safe for concurrent use.
type Renderer struct {
	threshold int
	banner    func(string) string
	section   func(string) string
}

// New returns a Renderer configured by opts.
func New(opts Options) *Renderer {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	r := &Renderer{
		threshold: threshold,
		banner:    plain,
		section:   plain,
	}

	if opts.Color {
		lr := lipgloss.NewRenderer(io.Discard)
		lr.SetColorProfile(termenv.ANSI)
		r.banner = styled(lr.NewStyle().Foreground(lipgloss.Color("2")).Bold(true))
		r.section = styled(lr.NewStyle().Foreground(lipgloss.Color("6")))
	}

	return r
}

var defaultRenderer = New(Options{})

func plain(s string) string { return s }

func styled(st lipgloss.Style) func(string) string {
	return func(s string) string { return st.Render(s) }
}

// Render formats p with the default options. rawLen is the number of bytes
// captured for the packet.
func Render(p *packet.Packet, rawLen int) string {
	return defaultRenderer.Render(p, rawLen)
}

// Render formats p. rawLen is the number of bytes captured for the packet.
func (r *Renderer) Render(p *packet.Packet, rawLen int) string {
	var b strings.Builder

	b.WriteString(r.banner(fmt.Sprintf("<> Caught icmp packet (len=%d):", rawLen)))
	b.WriteByte('\n')

	r.heading(&b, "ip header", "raw")
	b.WriteString(Hex(p.IPHeaderBytes()))
	b.WriteByte('\n')
	r.heading(&b, "ip header", "parsed")
	writeIPv4(&b, p.IP)

	r.heading(&b, "icmp header", "raw")
	b.WriteString(Hex(p.ICMPHeaderBytes()))
	b.WriteByte('\n')
	r.heading(&b, "icmp header", "parsed")
	fmt.Fprintf(&b, "icmp_type: %d (%s)\n", p.ICMP.Type, p.ICMP.TypeName())
	if desc := Describe(p.ICMP.Type, p.ICMP.Code); desc != "" {
		fmt.Fprintf(&b, "icmp_code: %d (%s)\n", p.ICMP.Code, desc)
	} else {
		fmt.Fprintf(&b, "icmp_code: %d\n", p.ICMP.Code)
	}
	fmt.Fprintf(&b, "icmp_cksum: %#04x\n", p.ICMP.Checksum)

	switch body := p.Body.(type) {
	case *packet.Echo:
		fmt.Fprintf(&b, "icmp_id: %d\n", body.ID)
		fmt.Fprintf(&b, "icmp_seq: %d\n", body.Seq)

	case *packet.Unreachable:
		fmt.Fprintf(&b, "rest: %s\n", Hex(p.ICMP.Rest[:]))
		r.heading(&b, "embedded ip header", "parsed")
		writeIPv4(&b, body.Embedded.IP)
		if udp := body.Embedded.UDP; udp != nil {
			r.heading(&b, "embedded udp header", "parsed")
			fmt.Fprintf(&b, "udp_sport: %d\n", udp.SrcPort)
			fmt.Fprintf(&b, "udp_dport: %d\n", udp.DstPort)
			fmt.Fprintf(&b, "udp_len: %d\n", udp.Length)
			fmt.Fprintf(&b, "udp_sum: %#04x\n", udp.Checksum)
		}

	case *packet.Opaque:
		fmt.Fprintf(&b, "rest: %s\n", Hex(body.Rest[:]))

	default:
		fmt.Fprintf(&b, "rest: %s\n", Hex(p.ICMP.Rest[:]))
	}

	r.heading(&b, "icmp payload", "")
	b.WriteString(r.payload(p, rawLen))
	b.WriteByte('\n')

	return b.String()
}

func (r *Renderer) payload(p *packet.Packet, rawLen int) string {
	if r.threshold >= 0 && rawLen > r.threshold {
		n := rawLen - p.IP.HeaderLen() - packet.ICMPHeaderLen
		if n < 0 {
			n = 0
		}
		return fmt.Sprintf("%d bytes, omitted", n)
	}
	if len(p.Payload) == 0 {
		return "(empty)"
	}
	return Hex(p.Payload)
}

func (r *Renderer) heading(b *strings.Builder, name, kind string) {
	s := "<" + name + ">"
	if kind != "" {
		s += " " + kind
	}
	b.WriteString(r.section(s))
	b.WriteByte('\n')
}

func writeIPv4(b *strings.Builder, h packet.IPv4Header) {
	fmt.Fprintf(b, "ip_hl: %d\n", h.IHL)
	fmt.Fprintf(b, "ip_v: %d\n", h.Version)
	fmt.Fprintf(b, "ip_tos: %d\n", h.TOS)
	fmt.Fprintf(b, "ip_len: %d\n", h.TotalLength)
	fmt.Fprintf(b, "ip_id: %d\n", h.ID)
	fmt.Fprintf(b, "ip_off: %d%s\n", h.FragmentOffset(), flagString(h.Flags()))
	fmt.Fprintf(b, "ip_ttl: %d\n", h.TTL)
	fmt.Fprintf(b, "ip_p: %d\n", h.Protocol)
	fmt.Fprintf(b, "ip_sum: %#04x\n", h.Checksum)
	fmt.Fprintf(b, "ip_src: %s\n", h.Src)
	fmt.Fprintf(b, "ip_dst: %s\n", h.Dst)
}

func flagString(flags uint8) string {
	var parts []string
	if flags&packet.FlagDontFragment != 0 {
		parts = append(parts, "DF")
	}
	if flags&packet.FlagMoreFragments != 0 {
		parts = append(parts, "MF")
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ",") + "]"
}

// Hex formats b as colon-separated two-digit hex bytes.
func Hex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b)*3 - 1)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}
