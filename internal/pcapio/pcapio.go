// Package pcapio reads and writes pcap capture files holding IP datagrams.
//
// Written captures use the raw IP link type so each record is exactly what
// a raw ICMP socket returned. Reads accept any link type gopacket decodes;
// frames that do not carry IPv4 ICMP are skipped.
package pcapio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ErrTruncatedCapture reports a capture file that ends inside a record.
var ErrTruncatedCapture = errors.New("pcap: truncated capture")

// DefaultSnaplen is the snapshot length recorded in written file headers.
const DefaultSnaplen = 65536

// Reader yields IPv4 ICMP datagrams from a pcap stream.
type Reader struct {
	r        *pcapgo.Reader
	linkType layers.LinkType
	skipped  int
}

// NewReader reads the pcap file header from r.
func NewReader(r io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}
	return &Reader{r: pr, linkType: pr.LinkType()}, nil
}

// LinkType returns the link type from the file header.
func (r *Reader) LinkType() layers.LinkType {
	return r.linkType
}

// Skipped returns the number of records that did not carry IPv4 ICMP.
func (r *Reader) Skipped() int {
	return r.skipped
}

// ReadPacket copies the next datagram into buf. It returns io.EOF at the
// end of the capture and ErrTruncatedCapture when the file stops partway
// through a record.
func (r *Reader) ReadPacket(buf []byte) (int, error) {
	for {
		data, _, err := r.r.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, fmt.Errorf("%w: %w", ErrTruncatedCapture, err)
			}
			if errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("read pcap record: %w", err)
		}

		datagram, ok := r.datagram(data)
		if !ok {
			r.skipped++
			continue
		}
		return copy(buf, datagram), nil
	}
}

// datagram strips the link layer from a record.
func (r *Reader) datagram(data []byte) ([]byte, bool) {
	switch r.linkType {
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		// already a bare datagram; hand it over undecoded so malformed
		// headers reach the parser
		return data, true
	}

	pkt := gopacket.NewPacket(data, r.linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	ip, ok := pkt.NetworkLayer().(*layers.IPv4)
	if !ok || ip.Protocol != layers.IPProtocolICMPv4 {
		return nil, false
	}

	// Contents and Payload are trimmed to the IP total length, dropping
	// any link layer padding.
	out := make([]byte, 0, len(ip.Contents)+len(ip.Payload))
	out = append(out, ip.Contents...)
	out = append(out, ip.Payload...)
	return out, true
}

// Writer appends datagrams to a pcap stream using the raw IP link type.
type Writer struct {
	w   *pcapgo.Writer
	now func() time.Time
}

// NewWriter writes a pcap file header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(DefaultSnaplen, layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{w: pw, now: time.Now}, nil
}

// WritePacket appends one datagram stamped with the current time.
func (w *Writer) WritePacket(data []byte) error {
	if len(data) > DefaultSnaplen {
		data = data[:DefaultSnaplen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     w.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write pcap record: %w", err)
	}
	return nil
}
