package pcapio

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/postalsys/rawicmp/internal/packet"
)

func echoPacket(t *testing.T, seq uint16) []byte {
	t.Helper()
	pkt, err := packet.BuildEchoRequest(
		netip.MustParseAddr("192.168.1.10"), netip.MustParseAddr("8.8.8.8"),
		0x1234, seq, packet.IncrementingPayload(12))
	if err != nil {
		t.Fatalf("BuildEchoRequest() error = %v", err)
	}
	return pkt
}

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	w.now = func() time.Time { return time.Unix(1700000000, 0) }

	want := [][]byte{echoPacket(t, 1), {0x45, 0x00, 0x00}, echoPacket(t, 2)}
	for _, p := range want {
		if err := w.WritePacket(p); err != nil {
			t.Fatalf("WritePacket() error = %v", err)
		}
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if r.LinkType() != layers.LinkTypeRaw {
		t.Errorf("LinkType() = %v, want %v", r.LinkType(), layers.LinkTypeRaw)
	}

	rbuf := make([]byte, 1500)
	for i, p := range want {
		n, err := r.ReadPacket(rbuf)
		if err != nil {
			t.Fatalf("ReadPacket(%d) error = %v", i, err)
		}
		if !bytes.Equal(rbuf[:n], p) {
			t.Errorf("packet %d = %x, want %x", i, rbuf[:n], p)
		}
	}

	if _, err := r.ReadPacket(rbuf); !errors.Is(err, io.EOF) {
		t.Errorf("ReadPacket() at end error = %v, want io.EOF", err)
	}
}

func TestReader_TruncatedCapture(t *testing.T) {
	tests := []struct {
		name string
		cut  int
	}{
		{"inside record data", 3},
		{"inside record header", len(echoPacket(t, 2)) + 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			for seq := uint16(1); seq <= 2; seq++ {
				if err := w.WritePacket(echoPacket(t, seq)); err != nil {
					t.Fatalf("WritePacket() error = %v", err)
				}
			}
			data := buf.Bytes()[:buf.Len()-tc.cut]

			r, err := NewReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			rbuf := make([]byte, 1500)
			if _, err := r.ReadPacket(rbuf); err != nil {
				t.Fatalf("first ReadPacket() error = %v", err)
			}
			_, err = r.ReadPacket(rbuf)
			if !errors.Is(err, ErrTruncatedCapture) {
				t.Errorf("ReadPacket() error = %v, want ErrTruncatedCapture", err)
			}
			if errors.Is(err, io.EOF) {
				t.Error("truncated capture reported as a clean end")
			}
		})
	}
}

func TestReader_Ethernet(t *testing.T) {
	var buf bytes.Buffer
	pw := pcapgo.NewWriter(&buf)
	if err := pw.WriteFileHeader(DefaultSnaplen, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("WriteFileHeader() error = %v", err)
	}

	eth := func(etherType layers.EthernetType) *layers.Ethernet {
		return &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: etherType,
		}
	}
	write := func(ls ...gopacket.SerializableLayer) {
		sb := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true}
		if err := gopacket.SerializeLayers(sb, opts, ls...); err != nil {
			t.Fatalf("SerializeLayers() error = %v", err)
		}
		data := sb.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: len(data), Length: len(data)}
		if err := pw.WritePacket(ci, data); err != nil {
			t.Fatalf("WritePacket() error = %v", err)
		}
	}

	icmp := echoPacket(t, 7)

	// UDP datagram: skipped
	write(eth(layers.EthernetTypeIPv4),
		&layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 1),
			DstIP:    net.IPv4(10, 0, 0, 2),
		},
		&layers.UDP{SrcPort: 5353, DstPort: 53},
		gopacket.Payload([]byte("query")))
	// ICMP echo: padded to the Ethernet minimum on the wire
	write(eth(layers.EthernetTypeIPv4), gopacket.Payload(icmp))
	// ARP: skipped
	write(eth(layers.EthernetTypeARP), &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x02, 0, 0, 0, 0, 1},
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 2},
	})

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	rbuf := make([]byte, 1500)
	n, err := r.ReadPacket(rbuf)
	if err != nil {
		t.Fatalf("ReadPacket() error = %v", err)
	}
	if !bytes.Equal(rbuf[:n], icmp) {
		t.Errorf("datagram = %x, want %x", rbuf[:n], icmp)
	}

	p, err := packet.Parse(rbuf[:n])
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if echo := p.Echo(); echo == nil || echo.Seq != 7 {
		t.Errorf("Echo() = %+v, want seq 7", echo)
	}

	if _, err := r.ReadPacket(rbuf); !errors.Is(err, io.EOF) {
		t.Errorf("ReadPacket() at end error = %v, want io.EOF", err)
	}
	if r.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", r.Skipped())
	}
}

func TestReader_EmptyCapture(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf); err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if _, err := r.ReadPacket(make([]byte, 64)); !errors.Is(err, io.EOF) {
		t.Errorf("ReadPacket() error = %v, want io.EOF", err)
	}
}

func TestNewReader_BadHeader(t *testing.T) {
	if _, err := NewReader(bytes.NewReader([]byte("not a pcap file at all"))); err == nil {
		t.Error("NewReader() should fail on garbage")
	}
}

func TestWriter_Timestamp(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	stamp := time.Unix(1700000000, 123000)
	w.now = func() time.Time { return stamp }
	if err := w.WritePacket(echoPacket(t, 1)); err != nil {
		t.Fatalf("WritePacket() error = %v", err)
	}

	pr, err := pcapgo.NewReader(&buf)
	if err != nil {
		t.Fatalf("pcapgo.NewReader() error = %v", err)
	}
	_, ci, err := pr.ReadPacketData()
	if err != nil {
		t.Fatalf("ReadPacketData() error = %v", err)
	}
	if !ci.Timestamp.Equal(stamp) {
		t.Errorf("Timestamp = %v, want %v", ci.Timestamp, stamp)
	}
	if ci.Length != 40 {
		t.Errorf("Length = %d, want 40", ci.Length)
	}
}
