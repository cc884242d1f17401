package main

import (
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/postalsys/rawicmp/internal/packet"
	"github.com/postalsys/rawicmp/internal/pcapio"
	"github.com/postalsys/rawicmp/internal/render"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{"colons", "45:00:1c", []byte{0x45, 0x00, 0x1c}, false},
		{"spaces", "45 00\n1c", []byte{0x45, 0x00, 0x1c}, false},
		{"bare", "45001C", []byte{0x45, 0x00, 0x1c}, false},
		{"prefix", "0x4500", []byte{0x45, 0x00}, false},
		{"odd length", "450", nil, true},
		{"not hex", "zz", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("parseHex() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseHex() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("parseHex() = %x, want %x", got, tt.want)
			}
		})
	}
}

func echoHex(t *testing.T) string {
	t.Helper()
	pkt, err := packet.BuildEchoRequest(
		netip.MustParseAddr("192.168.1.10"), netip.MustParseAddr("8.8.8.8"),
		0x1234, 1, packet.IncrementingPayload(12))
	if err != nil {
		t.Fatalf("BuildEchoRequest() error = %v", err)
	}
	return render.Hex(pkt)
}

func TestDecodeCmd_Hex(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"decode", "--hex", echoHex(t), "--log-level", "error"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{
		"<> Caught icmp packet (len=40):",
		"ip_src: 192.168.1.10",
		"icmp_id: 4660",
		"icmp_seq: 1",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if errOut.Len() != 0 {
		t.Errorf("unexpected warnings: %s", errOut.String())
	}
}

func TestDecodeCmd_HexTruncated(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"decode", "--hex", "45:00:00:1c"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("Execute() should fail on a truncated datagram")
	}
	if !strings.Contains(err.Error(), "truncated ip header") {
		t.Errorf("error = %v, want truncated ip header", err)
	}
}

func TestDecodeCmd_RequiresInput(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"decode"})

	if err := cmd.Execute(); err == nil {
		t.Error("Execute() should fail without --hex or --pcap")
	}
}

func TestSniffCmd_Pcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	w, err := pcapio.NewWriter(f)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	raw, err := parseHex(echoHex(t))
	if err != nil {
		t.Fatalf("parseHex() error = %v", err)
	}
	for _, p := range [][]byte{raw, {0x45}} {
		if err := w.WritePacket(p); err != nil {
			t.Fatalf("WritePacket() error = %v", err)
		}
	}
	f.Close()

	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"sniff", "--pcap", path, "--color", "never", "--log-level", "error"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.Count(out.String(), "<> Caught icmp packet"); got != 1 {
		t.Errorf("reports = %d, want 1", got)
	}
	if !strings.Contains(errOut.String(), "packets received") {
		t.Errorf("statistics table missing:\n%s", errOut.String())
	}
}
