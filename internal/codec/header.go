package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/google/uuid"
)

// ErrCorruptRecord is returned when a record fails magic, version, checksum or
// field validation.
var ErrCorruptRecord = errors.New("corrupt record")

// Header is the record at the start of every formatted block
type Header struct {
	// Generation increases by one with every compaction.
	Generation uint64

	// StoreID identifies the filesystem context that formatted the block.
	StoreID uuid.UUID

	// Geometry the block was formatted with.
	BlockSize   uint32
	ProgramUnit uint32
	SlotSize    uint32
}

// EncodeHeader serializes h into a HeaderSize record
func EncodeHeader(h Header) []byte {
	buf := make([]byte, types.HeaderSize)
	w := NewWriter(buf)
	w.WriteUint32(types.HeaderMagic)
	w.WriteUint16(types.HeaderVersion)
	w.WriteUint16(types.HeaderSize)
	w.WriteUint64(h.Generation)
	w.WriteBytes(h.StoreID[:])
	w.WriteUint32(h.BlockSize)
	w.WriteUint32(h.ProgramUnit)
	w.WriteUint32(h.SlotSize)
	w.WriteUint32(0)
	w.WriteUint64(Fletcher64(buf[:types.HeaderChecksumOffset]))
	return buf
}

// DecodeHeader parses a header record
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < types.HeaderSize {
		return h, fmt.Errorf("failed to decode header: %w", ErrShortBuffer)
	}

	r := NewReader(buf[:types.HeaderSize])
	magic := r.ReadUint32()
	version := r.ReadUint16()
	length := r.ReadUint16()
	h.Generation = r.ReadUint64()
	r.ReadBytes(h.StoreID[:])
	h.BlockSize = r.ReadUint32()
	h.ProgramUnit = r.ReadUint32()
	h.SlotSize = r.ReadUint32()
	r.Skip(4)
	checksum := r.ReadUint64()
	if err := r.Err(); err != nil {
		return Header{}, fmt.Errorf("failed to decode header: %w", err)
	}

	switch {
	case magic != types.HeaderMagic:
		return Header{}, fmt.Errorf("%w: header magic %#x", ErrCorruptRecord, magic)
	case version != types.HeaderVersion:
		return Header{}, fmt.Errorf("%w: header version %d", ErrCorruptRecord, version)
	case length != types.HeaderSize:
		return Header{}, fmt.Errorf("%w: header length %d", ErrCorruptRecord, length)
	case checksum != Fletcher64(buf[:types.HeaderChecksumOffset]):
		return Header{}, fmt.Errorf("%w: header checksum mismatch", ErrCorruptRecord)
	}
	return h, nil
}

// CommitMarker returns a copy of the commit marker record
func CommitMarker() []byte {
	m := types.CommitMarker
	return m[:]
}

// IsCommitted reports whether buf starts with an intact commit marker
func IsCommitted(buf []byte) bool {
	return len(buf) >= types.CommitMarkerSize && bytes.Equal(buf[:types.CommitMarkerSize], types.CommitMarker[:])
}

// IsErased reports whether every byte of buf holds the erased value
func IsErased(buf []byte, erased byte) bool {
	for _, b := range buf {
		if b != erased {
			return false
		}
	}
	return true
}

// Pad extends record to a multiple of unit. Padding bytes keep the erased
// value so they stay programmable.
func Pad(record []byte, unit uint32, erased byte) []byte {
	size := types.AlignUp(uint32(len(record)), unit)
	if size == uint32(len(record)) {
		return record
	}
	out := make([]byte, size)
	copy(out, record)
	for i := len(record); i < len(out); i++ {
		out[i] = erased
	}
	return out
}
