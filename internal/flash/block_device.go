package flash

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
)

// BlockDevice maps filesystem blocks onto a region of a NOR flash driver
type BlockDevice struct {
	drv interfaces.FlashDriver
	geo types.BlockGeometry
	fi  types.FlashInfo
}

var _ interfaces.BlockDevice = (*BlockDevice)(nil)

// NewBlockDevice validates geo against the driver and returns a block device.
// A zero program unit or erased value in geo is taken from the driver.
func NewBlockDevice(drv interfaces.FlashDriver, geo types.BlockGeometry) (*BlockDevice, error) {
	fi := drv.Info()
	if geo.ProgramUnit == 0 {
		geo.ProgramUnit = fi.ProgramUnit
	}
	geo.ErasedValue = fi.ErasedValue

	if err := validateGeometry(geo, fi); err != nil {
		return nil, err
	}
	return &BlockDevice{drv: drv, geo: geo, fi: fi}, nil
}

func validateGeometry(geo types.BlockGeometry, fi types.FlashInfo) error {
	if geo.NumBlocks < types.BlocksPerContext {
		return fmt.Errorf("%w: need at least %d blocks, have %d", types.ErrGenericError, types.BlocksPerContext, geo.NumBlocks)
	}
	if geo.BlockSize == 0 || geo.BlockSize%fi.SectorSize != 0 {
		return fmt.Errorf("%w: block size %d is not a multiple of sector size %d", types.ErrGenericError, geo.BlockSize, fi.SectorSize)
	}
	if geo.AreaAddr%fi.SectorSize != 0 {
		return fmt.Errorf("%w: area address %#x is not sector aligned", types.ErrGenericError, geo.AreaAddr)
	}
	if geo.ProgramUnit%fi.ProgramUnit != 0 || geo.BlockSize%geo.ProgramUnit != 0 {
		return fmt.Errorf("%w: program unit %d does not match device program unit %d", types.ErrProgrammerError, geo.ProgramUnit, fi.ProgramUnit)
	}
	end := uint64(geo.AreaAddr) + uint64(geo.BlockSize)*uint64(geo.NumBlocks)
	if end > uint64(fi.Size) {
		return fmt.Errorf("%w: flash area ends at %#x beyond device size %#x", types.ErrGenericError, end, fi.Size)
	}
	return nil
}

// Geometry returns the block layout
func (b *BlockDevice) Geometry() types.BlockGeometry {
	return b.geo
}

// ReadBlock reads len(buf) bytes at offset within the block
func (b *BlockDevice) ReadBlock(block, offset uint32, buf []byte) error {
	addr, err := b.address(block, offset, len(buf))
	if err != nil {
		return err
	}
	if err := b.drv.Read(addr, buf); err != nil {
		return fmt.Errorf("failed to read block %d at %#x: %w: %w", block, offset, types.ErrHardwareFailure, err)
	}
	return nil
}

// WriteBlock programs data at offset within the block
func (b *BlockDevice) WriteBlock(block, offset uint32, data []byte) error {
	addr, err := b.address(block, offset, len(data))
	if err != nil {
		return err
	}
	if offset%b.geo.ProgramUnit != 0 || uint32(len(data))%b.geo.ProgramUnit != 0 {
		return ErrMisalignedAccess
	}
	if err := b.drv.Program(addr, data); err != nil {
		return fmt.Errorf("failed to program block %d at %#x: %w: %w", block, offset, types.ErrHardwareFailure, err)
	}
	return nil
}

// EraseBlock erases every sector of the block
func (b *BlockDevice) EraseBlock(block uint32) error {
	addr, err := b.address(block, 0, int(b.geo.BlockSize))
	if err != nil {
		return err
	}
	for off := uint32(0); off < b.geo.BlockSize; off += b.fi.SectorSize {
		if err := b.drv.EraseSector(addr + off); err != nil {
			return fmt.Errorf("failed to erase block %d: %w: %w", block, types.ErrHardwareFailure, err)
		}
	}
	return nil
}

// Flush is a no-op, NOR writes are durable once programmed
func (b *BlockDevice) Flush(block uint32) error {
	if block >= b.geo.NumBlocks {
		return ErrInvalidAddress
	}
	return nil
}

// SingleProgram is false for NOR, a block can be programmed incrementally
func (b *BlockDevice) SingleProgram() bool {
	return false
}

func (b *BlockDevice) address(block, offset uint32, n int) (uint32, error) {
	if block >= b.geo.NumBlocks {
		return 0, ErrInvalidAddress
	}
	if uint64(offset)+uint64(n) > uint64(b.geo.BlockSize) {
		return 0, ErrInvalidAddress
	}
	return b.geo.AreaAddr + block*b.geo.BlockSize + offset, nil
}
