// Package codec implements the fixed, deterministic little-endian wire
// format of spec.md §6: fixed-width hashes and amounts, varint
// length-prefixed variable fields. Two honest nodes encoding the same
// values must produce bit-identical output.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/qnet-project/qnet-core/qnet/types"
)

// Writer accumulates a canonical encoding.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteHash(h types.Hash) {
	w.buf.Write(h[:])
}

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

func (w *Writer) WriteAmount(a types.Amount) {
	w.WriteU64(uint64(a))
}

func (w *Writer) WriteBytes(b []byte) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(b)))
	w.buf.Write(tmp[:n])
	w.buf.Write(b)
}

func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

func (w *Writer) WriteByte(b byte) {
	w.buf.WriteByte(b)
}

// Reader parses a canonical encoding produced by Writer.
type Reader struct {
	b   []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{b: b} }

func (r *Reader) ReadHash() (types.Hash, error) {
	if r.off+types.HashSize > len(r.b) {
		return types.Hash{}, fmt.Errorf("codec: truncated hash")
	}
	h, err := types.HashFromBytes(r.b[r.off : r.off+types.HashSize])
	r.off += types.HashSize
	return h, err
}

func (r *Reader) ReadU64() (uint64, error) {
	if r.off+8 > len(r.b) {
		return 0, fmt.Errorf("codec: truncated u64")
	}
	v := binary.LittleEndian.Uint64(r.b[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadAmount() (types.Amount, error) {
	v, err := r.ReadU64()
	return types.Amount(v), err
}

func (r *Reader) ReadBytes() ([]byte, error) {
	l, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return nil, fmt.Errorf("codec: malformed length varint")
	}
	r.off += n
	if r.off+int(l) > len(r.b) {
		return nil, fmt.Errorf("codec: truncated bytes field")
	}
	out := make([]byte, l)
	copy(out, r.b[r.off:r.off+int(l)])
	r.off += int(l)
	return out, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	return string(b), err
}

func (r *Reader) ReadByte() (byte, error) {
	if r.off+1 > len(r.b) {
		return 0, fmt.Errorf("codec: truncated byte")
	}
	b := r.b[r.off]
	r.off++
	return b, nil
}

// Remaining reports whether unread bytes remain.
func (r *Reader) Remaining() int { return len(r.b) - r.off }
