package icmp

import (
	"errors"
	"io"
	"net/netip"
)

// fakeSource replays a fixed list of reads.
type fakeSource struct {
	reads []fakeRead
	next  int
}

type fakeRead struct {
	data []byte
	err  error
}

func (f *fakeSource) ReadPacket(buf []byte) (int, error) {
	if f.next >= len(f.reads) {
		return 0, io.EOF
	}
	r := f.reads[f.next]
	f.next++
	if r.err != nil {
		return 0, r.err
	}
	return copy(buf, r.data), nil
}

type fakeSink struct {
	sent [][]byte
	dsts []netip.Addr
	err  error
}

func (f *fakeSink) SendPacket(pkt []byte, dst netip.Addr) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, append([]byte(nil), pkt...))
	f.dsts = append(f.dsts, dst)
	return nil
}

type fakeTee struct {
	packets [][]byte
	err     error
}

func (f *fakeTee) WritePacket(data []byte) error {
	f.packets = append(f.packets, append([]byte(nil), data...))
	return f.err
}

var errBroken = errors.New("broken")
