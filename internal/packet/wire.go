package packet

import (
	"encoding/binary"
	"net/netip"
)

// cursor walks a byte slice. Every read is preceded by an explicit length
// check; take never slices past the end of the buffer.
type cursor struct {
	b   []byte
	off int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

// remaining returns the number of unread bytes.
func (c *cursor) remaining() int {
	return len(c.b) - c.off
}

// take returns the next n bytes and advances, or false if fewer remain.
func (c *cursor) take(n int) ([]byte, bool) {
	if n < 0 || c.remaining() < n {
		return nil, false
	}
	b := c.b[c.off : c.off+n : c.off+n]
	c.off += n
	return b, true
}

// peek returns the next n bytes without advancing.
func (c *cursor) peek(n int) ([]byte, bool) {
	if n < 0 || c.remaining() < n {
		return nil, false
	}
	return c.b[c.off : c.off+n : c.off+n], true
}

// rest returns all unread bytes and advances to the end.
func (c *cursor) rest() []byte {
	b := c.b[c.off:]
	c.off = len(c.b)
	return b
}

// field is a fixed-width view whose length has already been validated by
// the cursor. Offsets passed to its accessors are within that width.
type field []byte

func (f field) u8(off int) uint8 {
	return f[off]
}

func (f field) u16(off int) uint16 {
	return binary.BigEndian.Uint16(f[off : off+2])
}

func (f field) addr4(off int) netip.Addr {
	return netip.AddrFrom4([4]byte(f[off : off+4]))
}

func (f field) putU8(off int, v uint8) {
	f[off] = v
}

func (f field) putU16(off int, v uint16) {
	binary.BigEndian.PutUint16(f[off:off+2], v)
}

func (f field) putAddr4(off int, a netip.Addr) {
	b := a.As4()
	copy(f[off:off+4], b[:])
}
