package types

// NonceSize is the size in bytes of the AEAD nonce stored with a file.
const NonceSize = 12

// TagSize is the size in bytes of the AEAD authentication tag stored with a
// file.
const TagSize = 16

// FileInfo describes a file as seen by the filesystem layer. On writes it
// carries the requested attributes together with the operation modifiers.
type FileInfo struct {
	// Current length of the stored data in bytes.
	SizeCurrent uint32

	// Allocated length in bytes. SizeCurrent never exceeds it.
	SizeMax uint32

	// User flags, plus FlagCreate/FlagTruncate on write requests.
	Flags CreateFlags

	// Nonce used to seal the data when encryption is enabled.
	Nonce [NonceSize]byte

	// Authentication tag produced when sealing the data.
	Tag [TagSize]byte

	// Length of the data before encryption.
	PlaintextSize uint32
}

// StorageInfo is the metadata returned to clients by a get-info request.
type StorageInfo struct {
	Capacity uint32      `json:"capacity" yaml:"capacity"`
	Size     uint32      `json:"size" yaml:"size"`
	Flags    CreateFlags `json:"flags" yaml:"flags"`
}
