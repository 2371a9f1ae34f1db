// Package codec encodes and decodes the on-flash records of the trusted
// storage engine: the block header, the commit marker and directory entries.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a read or write would cross the end of the
// underlying buffer.
var ErrShortBuffer = errors.New("short buffer")

// Reader helps with reading little endian fields from a fixed buffer. The
// first failure is sticky: later reads return zero values and Err reports it.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader creates a reader positioned at the start of buf
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.pos < n {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// ReadUint8 reads a uint8
func (r *Reader) ReadUint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadUint16 reads a uint16
func (r *Reader) ReadUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadUint32 reads a uint32
func (r *Reader) ReadUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadUint64 reads a uint64
func (r *Reader) ReadUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadBytes copies len(dst) bytes into dst
func (r *Reader) ReadBytes(dst []byte) {
	b := r.take(len(dst))
	if b != nil {
		copy(dst, b)
	}
}

// Skip advances the cursor by n bytes
func (r *Reader) Skip(n int) {
	r.take(n)
}

// Offset returns the cursor position
func (r *Reader) Offset() int {
	return r.pos
}

// Err returns the first error encountered
func (r *Reader) Err() error {
	return r.err
}

// Writer helps with writing little endian fields into a fixed buffer. Like
// Reader, the first failure is sticky.
type Writer struct {
	buf []byte
	pos int
	err error
}

// NewWriter creates a writer positioned at the start of buf
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) take(n int) []byte {
	if w.err != nil {
		return nil
	}
	if len(w.buf)-w.pos < n {
		w.err = ErrShortBuffer
		return nil
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b
}

// WriteUint8 writes a uint8
func (w *Writer) WriteUint8(v uint8) {
	if b := w.take(1); b != nil {
		b[0] = v
	}
}

// WriteUint16 writes a uint16
func (w *Writer) WriteUint16(v uint16) {
	if b := w.take(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// WriteUint32 writes a uint32
func (w *Writer) WriteUint32(v uint32) {
	if b := w.take(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// WriteUint64 writes a uint64
func (w *Writer) WriteUint64(v uint64) {
	if b := w.take(8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}

// WriteBytes writes a slice of bytes
func (w *Writer) WriteBytes(v []byte) {
	if b := w.take(len(v)); b != nil {
		copy(b, v)
	}
}

// Offset returns the cursor position
func (w *Writer) Offset() int {
	return w.pos
}

// Err returns the first error encountered
func (w *Writer) Err() error {
	return w.err
}
