package types

import (
	"encoding/binary"
	"encoding/hex"
)

// FileIDSize is the size in bytes of a file identifier: a 32-bit owner
// identifier followed by a 64-bit UID.
const FileIDSize = 12

// InvalidUID is the reserved UID that clients may never use.
const InvalidUID uint64 = 0

// FileID is the internal identifier of a stored asset.
type FileID [FileIDSize]byte

// NewFileID maps an owner identifier and a client UID to a file identifier.
// The mapping is a fixed-width concatenation and therefore injective.
func NewFileID(owner int32, uid uint64) FileID {
	var fid FileID
	binary.LittleEndian.PutUint32(fid[0:4], uint32(owner))
	binary.LittleEndian.PutUint64(fid[4:12], uid)
	return fid
}

// Owner returns the owner identifier encoded in the file identifier.
func (f FileID) Owner() int32 {
	return int32(binary.LittleEndian.Uint32(f[0:4]))
}

// UID returns the client UID encoded in the file identifier.
func (f FileID) UID() uint64 {
	return binary.LittleEndian.Uint64(f[4:12])
}

// String returns the hex representation of the identifier.
func (f FileID) String() string {
	return hex.EncodeToString(f[:])
}
