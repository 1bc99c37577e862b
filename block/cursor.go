package block

import (
	"encoding/binary"

	"github.com/mattneel/zault/zaulterr"
)

// cursor is a length-prefixed little-endian reader, ported from the
// teacher's consensus.cursor / readU32le family (consensus/wire.go,
// consensus/wire_read.go) and generalized to serve both the signing/hash
// preimage builders and the on-disk codec.
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, zaulterr.New(zaulterr.InvalidBlock, "block.cursor", "truncated block")
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU8() (byte, error) {
	b, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64LE() (uint64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// writer is an append-only little-endian byte builder, ported from the
// teacher's AppendU32le/AppendU64le helpers (consensus/tx_marshal.go).
type writer struct {
	b []byte
}

func (w *writer) writeU8(v byte) { w.b = append(w.b, v) }

func (w *writer) writeU32LE(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }

func (w *writer) writeU64LE(v uint64) { w.b = binary.LittleEndian.AppendUint64(w.b, v) }

func (w *writer) writeBytes(b []byte) { w.b = append(w.b, b...) }
