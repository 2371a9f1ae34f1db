// File: internal/interfaces/block_device.go
package interfaces

import (
	"github.com/deploymenttheory/go-its/internal/types"
)

// FlashDriver is the raw flash capability supplied by the platform
type FlashDriver interface {
	// Info returns the device properties
	Info() types.FlashInfo

	// Read copies len(buf) bytes starting at the device address into buf
	Read(addr uint32, buf []byte) error

	// Program writes data at the device address. Programming can only move
	// bits away from the erased value.
	Program(addr uint32, data []byte) error

	// EraseSector returns the sector starting at addr to the erased value
	EraseSector(addr uint32) error
}

// BlockDeviceReader provides methods for reading filesystem blocks
type BlockDeviceReader interface {
	// ReadBlock reads len(buf) bytes at offset within the block
	ReadBlock(block uint32, offset uint32, buf []byte) error

	// Geometry returns the block layout of the device
	Geometry() types.BlockGeometry
}

// BlockDeviceWriter provides methods for modifying filesystem blocks
type BlockDeviceWriter interface {
	// WriteBlock programs data at offset within the block. Offset and length
	// must be multiples of the program unit.
	WriteBlock(block uint32, offset uint32, data []byte) error

	// EraseBlock erases every sector of the block
	EraseBlock(block uint32) error

	// Flush makes buffered writes to the block durable
	Flush(block uint32) error

	// SingleProgram reports whether a block can only be programmed once
	// between erases
	SingleProgram() bool
}

// BlockDevice represents the complete flash block abstraction
type BlockDevice interface {
	BlockDeviceReader
	BlockDeviceWriter
}
