package codec

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/types"
)

// Entry is a directory record. A file entry describes the current state of a
// file and supersedes earlier entries with the same file id; a tombstone
// records its deletion.
type Entry struct {
	Kind          types.EntryKind
	FID           types.FileID
	Flags         types.CreateFlags
	SizeCurrent   uint32
	SizeMax       uint32
	DataOffset    uint32
	PlaintextSize uint32
	Nonce         [types.NonceSize]byte
	Tag           [types.TagSize]byte
}

// FileInfo returns the file attributes carried by the entry
func (e Entry) FileInfo() types.FileInfo {
	return types.FileInfo{
		SizeCurrent:   e.SizeCurrent,
		SizeMax:       e.SizeMax,
		Flags:         e.Flags,
		Nonce:         e.Nonce,
		Tag:           e.Tag,
		PlaintextSize: e.PlaintextSize,
	}
}

// EncodeEntry serializes e into an EntrySize record
func EncodeEntry(e Entry) []byte {
	buf := make([]byte, types.EntrySize)
	w := NewWriter(buf)
	w.WriteUint16(types.EntryMagic)
	w.WriteUint8(uint8(e.Kind))
	w.WriteUint8(types.EntryVersion)
	w.WriteBytes(e.FID[:])
	w.WriteUint32(uint32(e.Flags.User()))
	w.WriteUint32(e.SizeCurrent)
	w.WriteUint32(e.SizeMax)
	w.WriteUint32(e.DataOffset)
	w.WriteUint32(e.PlaintextSize)
	w.WriteBytes(e.Nonce[:])
	w.WriteBytes(e.Tag[:])
	w.WriteUint64(Fletcher64(buf[:types.EntryChecksumOffset]))
	return buf
}

// DecodeEntry parses a directory record
func DecodeEntry(buf []byte) (Entry, error) {
	var e Entry
	if len(buf) < types.EntrySize {
		return e, fmt.Errorf("failed to decode entry: %w", ErrShortBuffer)
	}

	r := NewReader(buf[:types.EntrySize])
	magic := r.ReadUint16()
	e.Kind = types.EntryKind(r.ReadUint8())
	version := r.ReadUint8()
	r.ReadBytes(e.FID[:])
	e.Flags = types.CreateFlags(r.ReadUint32())
	e.SizeCurrent = r.ReadUint32()
	e.SizeMax = r.ReadUint32()
	e.DataOffset = r.ReadUint32()
	e.PlaintextSize = r.ReadUint32()
	r.ReadBytes(e.Nonce[:])
	r.ReadBytes(e.Tag[:])
	checksum := r.ReadUint64()
	if err := r.Err(); err != nil {
		return Entry{}, fmt.Errorf("failed to decode entry: %w", err)
	}

	switch {
	case magic != types.EntryMagic:
		return Entry{}, fmt.Errorf("%w: entry magic %#x", ErrCorruptRecord, magic)
	case version != types.EntryVersion:
		return Entry{}, fmt.Errorf("%w: entry version %d", ErrCorruptRecord, version)
	case checksum != Fletcher64(buf[:types.EntryChecksumOffset]):
		return Entry{}, fmt.Errorf("%w: entry checksum mismatch", ErrCorruptRecord)
	case e.Kind != types.EntryKindFile && e.Kind != types.EntryKindTombstone:
		return Entry{}, fmt.Errorf("%w: entry kind %d", ErrCorruptRecord, e.Kind)
	case e.Flags != e.Flags.User():
		return Entry{}, fmt.Errorf("%w: entry flags %#x", ErrCorruptRecord, uint32(e.Flags))
	case e.SizeCurrent > e.SizeMax:
		return Entry{}, fmt.Errorf("%w: size %d exceeds allocation %d", ErrCorruptRecord, e.SizeCurrent, e.SizeMax)
	}
	return e, nil
}
