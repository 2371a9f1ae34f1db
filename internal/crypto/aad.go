package crypto

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-its/internal/types"
)

// AADSize is the length of the additional authenticated data
const AADSize = types.FileIDSize + 4 + 8

// AdditionalData binds a ciphertext to its file, persisted flags and size:
// fid || user flags (u32 LE) || size (u64 LE)
func AdditionalData(fid types.FileID, flags types.CreateFlags, size uint64) []byte {
	ad := make([]byte, AADSize)
	copy(ad, fid[:])
	binary.LittleEndian.PutUint32(ad[types.FileIDSize:], uint32(flags.User()))
	binary.LittleEndian.PutUint64(ad[types.FileIDSize+4:], size)
	return ad
}
