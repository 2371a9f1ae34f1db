// File: internal/interfaces/filesystem.go
package interfaces

import (
	"github.com/deploymenttheory/go-its/internal/types"
)

// FileStore is the filesystem surface used by the storage service
type FileStore interface {
	// Name identifies the store in logs and metrics
	Name() string

	// Prepare validates or recovers the flash layout
	Prepare() error

	// Wipe erases the flash area and formats an empty store
	Wipe() error

	// FileGetInfo returns the directory information of a file
	FileGetInfo(fid types.FileID) (types.FileInfo, error)

	// FileRead reads size bytes at offset into buf
	FileRead(fid types.FileID, size, offset uint32, buf []byte) error

	// FileWrite writes data at offset according to info
	FileWrite(fid types.FileID, info types.FileInfo, data []byte, offset uint32) error

	// FileDelete removes a file
	FileDelete(fid types.FileID) error

	// MaxFileSize returns the largest allocation a file may have
	MaxFileSize() uint32
}
