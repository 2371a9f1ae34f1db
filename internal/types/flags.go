package types

// CreateFlags is the flag set a client supplies with a set request.
type CreateFlags uint32

// Persisted user flags.
const (
	// FlagWriteOnce marks an asset that can never be modified or removed.
	FlagWriteOnce CreateFlags = 1 << 0

	// FlagNoConfidentiality marks an asset that does not require
	// confidentiality protection.
	FlagNoConfidentiality CreateFlags = 1 << 1

	// FlagNoReplayProtection marks an asset that does not require replay
	// protection.
	FlagNoReplayProtection CreateFlags = 1 << 2
)

// SupportedCreateFlags is the set of flags accepted from clients.
const SupportedCreateFlags = FlagWriteOnce | FlagNoConfidentiality | FlagNoReplayProtection

// Filesystem operation modifiers. They travel with a write request and are
// never persisted.
const (
	// FlagCreate creates the file if it does not exist.
	FlagCreate CreateFlags = 1 << 30

	// FlagTruncate discards the current contents and allocation.
	FlagTruncate CreateFlags = 1 << 31
)

// UserFlagsMask selects the flags stored in a directory entry.
const UserFlagsMask CreateFlags = 0x0000FFFF

// User returns the persisted part of the flag set.
func (f CreateFlags) User() CreateFlags {
	return f & UserFlagsMask
}

// IsWriteOnce reports whether the write-once flag is set.
func (f CreateFlags) IsWriteOnce() bool {
	return f&FlagWriteOnce != 0
}

// IsCreate reports whether the create modifier is set.
func (f CreateFlags) IsCreate() bool {
	return f&FlagCreate != 0
}

// IsTruncate reports whether the truncate modifier is set.
func (f CreateFlags) IsTruncate() bool {
	return f&FlagTruncate != 0
}

// Supported reports whether only client-settable flags are present.
func (f CreateFlags) Supported() bool {
	return f&^SupportedCreateFlags == 0
}
