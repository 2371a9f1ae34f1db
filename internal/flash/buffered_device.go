package flash

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
)

// BufferedBlockDevice adapts NAND-style flash, where each page can be
// programmed once per erase, to the block interface. Writes to a block are
// collected in a RAM buffer and reach the device on Flush, last page first,
// so the block header becomes durable after everything it describes.
type BufferedBlockDevice struct {
	inner    *BlockDevice
	pageSize uint32

	buffered int64
	buf      []byte
	dirty    []bool
}

var _ interfaces.BlockDevice = (*BufferedBlockDevice)(nil)

// NewBufferedBlockDevice creates a buffered device. The page size is the
// program unit in geo, or the driver program unit when zero.
func NewBufferedBlockDevice(drv interfaces.FlashDriver, geo types.BlockGeometry) (*BufferedBlockDevice, error) {
	inner, err := NewBlockDevice(drv, geo)
	if err != nil {
		return nil, err
	}

	page := inner.geo.ProgramUnit
	return &BufferedBlockDevice{
		inner:    inner,
		pageSize: page,
		buffered: -1,
		buf:      make([]byte, inner.geo.BlockSize),
		dirty:    make([]bool, inner.geo.BlockSize/page),
	}, nil
}

// Geometry returns the block layout. Buffering removes the write alignment
// constraint so the reported program unit is 1.
func (b *BufferedBlockDevice) Geometry() types.BlockGeometry {
	geo := b.inner.geo
	geo.ProgramUnit = 1
	return geo
}

// PageSize returns the device page size
func (b *BufferedBlockDevice) PageSize() uint32 {
	return b.pageSize
}

// ReadBlock reads from the buffer when it holds unflushed data for the block
func (b *BufferedBlockDevice) ReadBlock(block, offset uint32, buf []byte) error {
	if int64(block) != b.buffered {
		return b.inner.ReadBlock(block, offset, buf)
	}
	if _, err := b.inner.address(block, offset, len(buf)); err != nil {
		return err
	}
	copy(buf, b.buf[offset:])
	return nil
}

// WriteBlock records data in the block buffer
func (b *BufferedBlockDevice) WriteBlock(block, offset uint32, data []byte) error {
	if _, err := b.inner.address(block, offset, len(data)); err != nil {
		return err
	}
	if int64(block) != b.buffered {
		if b.buffered >= 0 && b.pending() {
			return fmt.Errorf("%w: block %d has unflushed writes", types.ErrProgrammerError, b.buffered)
		}
		if err := b.load(block); err != nil {
			return err
		}
	}
	if len(data) == 0 {
		return nil
	}

	if err := programBytes(b.buf[offset:offset+uint32(len(data))], data, b.inner.geo.ErasedValue); err != nil {
		return fmt.Errorf("failed to program block %d at %#x: %w: %w", block, offset, types.ErrHardwareFailure, err)
	}
	first := offset / b.pageSize
	last := (offset + uint32(len(data)) - 1) / b.pageSize
	for p := first; p <= last; p++ {
		b.dirty[p] = true
	}
	return nil
}

// EraseBlock erases the block and drops any buffered data for it
func (b *BufferedBlockDevice) EraseBlock(block uint32) error {
	if int64(block) == b.buffered {
		b.reset()
	}
	return b.inner.EraseBlock(block)
}

// Flush programs every dirty page of the block, highest address first
func (b *BufferedBlockDevice) Flush(block uint32) error {
	if block >= b.inner.geo.NumBlocks {
		return ErrInvalidAddress
	}
	if int64(block) != b.buffered {
		return nil
	}

	for p := len(b.dirty) - 1; p >= 0; p-- {
		if !b.dirty[p] {
			continue
		}
		off := uint32(p) * b.pageSize
		if err := b.inner.WriteBlock(block, off, b.buf[off:off+b.pageSize]); err != nil {
			b.reset()
			return err
		}
		b.dirty[p] = false
	}
	b.reset()
	return nil
}

// SingleProgram is true, pages cannot be reprogrammed before an erase
func (b *BufferedBlockDevice) SingleProgram() bool {
	return true
}

func (b *BufferedBlockDevice) load(block uint32) error {
	if err := b.inner.ReadBlock(block, 0, b.buf); err != nil {
		return err
	}
	for i := range b.dirty {
		b.dirty[i] = false
	}
	b.buffered = int64(block)
	return nil
}

func (b *BufferedBlockDevice) pending() bool {
	for _, d := range b.dirty {
		if d {
			return true
		}
	}
	return false
}

func (b *BufferedBlockDevice) reset() {
	b.buffered = -1
	for i := range b.dirty {
		b.dirty[i] = false
	}
}
