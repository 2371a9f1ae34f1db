package types

// Flash Layout
// Every filesystem context owns exactly two blocks. Each block starts with a
// header record and a commit marker, followed by directory entries growing
// upwards; file data is allocated downwards from the end of the block.

// BlocksPerContext is the number of blocks used by one filesystem context.
const BlocksPerContext = 2

// Block header record.
const (
	// HeaderMagic identifies a block header ("ITSB" little endian).
	HeaderMagic uint32 = 0x42535449

	// HeaderVersion is the current header layout version.
	HeaderVersion uint16 = 1

	// HeaderSize is the encoded size of the header record in bytes.
	HeaderSize = 56

	// HeaderChecksumOffset is the offset of the header checksum field.
	HeaderChecksumOffset = 48
)

// CommitMarkerSize is the encoded size of the commit marker in bytes.
const CommitMarkerSize = 8

// CommitMarker is the value programmed to promote a block to valid.
var CommitMarker = [CommitMarkerSize]byte{'I', 'T', 'S', 'V', 'A', 'L', 'I', 'D'}

// Directory entry record.
const (
	// EntryMagic identifies a directory entry.
	EntryMagic uint16 = 0x4645

	// EntryVersion is the current entry layout version.
	EntryVersion uint8 = 1

	// EntrySize is the encoded size of a directory entry in bytes.
	EntrySize = 72

	// EntryChecksumOffset is the offset of the entry checksum field.
	EntryChecksumOffset = 64
)

// EntryKind distinguishes live file records from delete records.
type EntryKind uint8

const (
	// EntryKindFile records the current state of a file.
	EntryKindFile EntryKind = 1

	// EntryKindTombstone records the deletion of a file.
	EntryKindTombstone EntryKind = 2
)

// String returns the kind name.
func (k EntryKind) String() string {
	switch k {
	case EntryKindFile:
		return "file"
	case EntryKindTombstone:
		return "tombstone"
	default:
		return "unknown"
	}
}

// FlashInfo describes a flash device as reported by its driver.
type FlashInfo struct {
	// Size of the smallest erasable unit in bytes.
	SectorSize uint32

	// Size of the smallest programmable unit in bytes.
	ProgramUnit uint32

	// Value every byte holds after an erase.
	ErasedValue byte

	// Total size of the device in bytes.
	Size uint32
}

// BlockGeometry describes how filesystem blocks map onto a flash area.
type BlockGeometry struct {
	// Byte address of the first block on the device.
	AreaAddr uint32

	// Size of one block in bytes, a multiple of the sector size.
	BlockSize uint32

	// Number of blocks in the area.
	NumBlocks uint32

	// Write alignment required by the block layer.
	ProgramUnit uint32

	// Value every byte holds after an erase.
	ErasedValue byte
}

// AlignUp rounds n up to the next multiple of unit.
func AlignUp(n, unit uint32) uint32 {
	if unit <= 1 {
		return n
	}
	return (n + unit - 1) / unit * unit
}

// AlignDown rounds n down to a multiple of unit.
func AlignDown(n, unit uint32) uint32 {
	if unit <= 1 {
		return n
	}
	return n / unit * unit
}
