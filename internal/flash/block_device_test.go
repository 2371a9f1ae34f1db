package flash

import (
	"bytes"
	"testing"

	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBlockDevice(t *testing.T, pu uint32) (*RAMDriver, *BlockDevice) {
	t.Helper()

	drv, err := NewRAMDriver(testInfo(pu))
	require.NoError(t, err)
	bd, err := NewBlockDevice(drv, types.BlockGeometry{AreaAddr: 4096, BlockSize: 4096, NumBlocks: 2})
	require.NoError(t, err)
	return drv, bd
}

func TestNewBlockDevice_Validation(t *testing.T) {
	drv, err := NewRAMDriver(testInfo(4))
	require.NoError(t, err)

	tests := []struct {
		name    string
		geo     types.BlockGeometry
		wantErr error
	}{
		{"valid", types.BlockGeometry{AreaAddr: 0, BlockSize: 4096, NumBlocks: 2}, nil},
		{"multi sector blocks", types.BlockGeometry{AreaAddr: 0, BlockSize: 8192, NumBlocks: 2}, nil},
		{"single block", types.BlockGeometry{AreaAddr: 0, BlockSize: 4096, NumBlocks: 1}, types.ErrGenericError},
		{"block not sector multiple", types.BlockGeometry{AreaAddr: 0, BlockSize: 1000, NumBlocks: 2}, types.ErrGenericError},
		{"unaligned area", types.BlockGeometry{AreaAddr: 100, BlockSize: 4096, NumBlocks: 2}, types.ErrGenericError},
		{"area beyond device", types.BlockGeometry{AreaAddr: 8192, BlockSize: 8192, NumBlocks: 2}, types.ErrGenericError},
		{"program unit mismatch", types.BlockGeometry{AreaAddr: 0, BlockSize: 4096, NumBlocks: 2, ProgramUnit: 6}, types.ErrProgrammerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bd, err := NewBlockDevice(drv, tt.geo)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint32(4), bd.Geometry().ProgramUnit)
			assert.Equal(t, byte(0xFF), bd.Geometry().ErasedValue)
		})
	}
}

func TestBlockDevice_ReadWriteErase(t *testing.T) {
	drv, bd := newTestBlockDevice(t, 4)

	require.NoError(t, bd.WriteBlock(1, 8, []byte("blk1")))

	// block 1 maps to device address AreaAddr + BlockSize
	raw := make([]byte, 4)
	require.NoError(t, drv.Read(4096+4096+8, raw))
	assert.Equal(t, []byte("blk1"), raw)

	buf := make([]byte, 4)
	require.NoError(t, bd.ReadBlock(1, 8, buf))
	assert.Equal(t, []byte("blk1"), buf)

	require.NoError(t, bd.ReadBlock(0, 8, buf))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 4), buf)

	require.NoError(t, bd.EraseBlock(1))
	require.NoError(t, bd.ReadBlock(1, 8, buf))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 4), buf)

	assert.NoError(t, bd.Flush(1))
	assert.False(t, bd.SingleProgram())
}

func TestBlockDevice_Errors(t *testing.T) {
	_, bd := newTestBlockDevice(t, 4)

	assert.ErrorIs(t, bd.ReadBlock(2, 0, make([]byte, 4)), ErrInvalidAddress)
	assert.ErrorIs(t, bd.ReadBlock(0, 4094, make([]byte, 4)), ErrInvalidAddress)
	assert.ErrorIs(t, bd.WriteBlock(0, 2, []byte("abcd")), ErrMisalignedAccess)
	assert.ErrorIs(t, bd.EraseBlock(5), ErrInvalidAddress)
	assert.ErrorIs(t, bd.Flush(2), ErrInvalidAddress)

	require.NoError(t, bd.WriteBlock(0, 0, []byte{0x00, 0x00, 0x00, 0x00}))
	err := bd.WriteBlock(0, 0, []byte{0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, types.ErrHardwareFailure)
	assert.ErrorIs(t, err, ErrProgramConflict)
}

func TestFaultyDriver(t *testing.T) {
	t.Run("torn program keeps first half", func(t *testing.T) {
		ram, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)
		drv := NewFaultyDriver(ram)

		drv.FailAt(1)
		require.NoError(t, drv.Program(0, []byte("aaaa")))
		err = drv.Program(16, []byte("bbbbcccc"))
		assert.ErrorIs(t, err, ErrPowerLoss)
		assert.True(t, drv.Tripped())

		raw := make([]byte, 8)
		require.NoError(t, ram.Read(16, raw))
		assert.Equal(t, []byte("bbbb\xff\xff\xff\xff"), raw)

		assert.ErrorIs(t, drv.Read(0, raw), ErrPowerLoss)
		assert.ErrorIs(t, drv.EraseSector(0), ErrPowerLoss)
		assert.Equal(t, 2, drv.Ops())
	})

	t.Run("failed erase never starts", func(t *testing.T) {
		ram, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)
		require.NoError(t, ram.Program(0, []byte("keep")))
		drv := NewFaultyDriver(ram)

		drv.FailAt(0)
		assert.ErrorIs(t, drv.EraseSector(0), ErrPowerLoss)

		raw := make([]byte, 4)
		require.NoError(t, ram.Read(0, raw))
		assert.Equal(t, []byte("keep"), raw)
	})

	t.Run("torn erase clears the first half", func(t *testing.T) {
		ram, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)
		require.NoError(t, ram.Program(0, []byte("keep")))
		require.NoError(t, ram.Program(4092, []byte("tail")))
		drv := NewFaultyDriver(ram)
		drv.TearErases(true)

		drv.FailAt(0)
		assert.ErrorIs(t, drv.EraseSector(0), ErrPowerLoss)
		assert.True(t, drv.Tripped())

		raw := make([]byte, 4)
		require.NoError(t, ram.Read(0, raw))
		assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, raw)
		require.NoError(t, ram.Read(2044, raw))
		assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, raw)
		require.NoError(t, ram.Read(4092, raw))
		assert.Equal(t, []byte("tail"), raw)
	})

	t.Run("disarmed", func(t *testing.T) {
		ram, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)
		drv := NewFaultyDriver(ram)

		for i := 0; i < 10; i++ {
			require.NoError(t, drv.EraseSector(0))
		}
		assert.Equal(t, 10, drv.Ops())
		assert.False(t, drv.Tripped())
	})
}

func TestBufferedBlockDevice(t *testing.T) {
	info := types.FlashInfo{SectorSize: 4096, ProgramUnit: 512, ErasedValue: 0xFF, Size: 4 * 4096}

	t.Run("writes stay buffered until flush", func(t *testing.T) {
		ram, err := NewRAMDriver(info)
		require.NoError(t, err)
		bd, err := NewBufferedBlockDevice(ram, types.BlockGeometry{BlockSize: 4096, NumBlocks: 2})
		require.NoError(t, err)

		assert.Equal(t, uint32(1), bd.Geometry().ProgramUnit)
		assert.Equal(t, uint32(512), bd.PageSize())
		assert.True(t, bd.SingleProgram())

		require.NoError(t, bd.WriteBlock(0, 3, []byte("hello")))
		require.NoError(t, bd.WriteBlock(0, 1000, []byte("world")))

		buf := make([]byte, 5)
		require.NoError(t, bd.ReadBlock(0, 3, buf))
		assert.Equal(t, []byte("hello"), buf)

		raw := make([]byte, 5)
		require.NoError(t, ram.Read(3, raw))
		assert.Equal(t, bytes.Repeat([]byte{0xFF}, 5), raw, "nothing programmed before flush")

		require.NoError(t, bd.Flush(0))
		require.NoError(t, ram.Read(3, raw))
		assert.Equal(t, []byte("hello"), raw)
		require.NoError(t, ram.Read(1000, raw))
		assert.Equal(t, []byte("world"), raw)
	})

	t.Run("flush programs last page first", func(t *testing.T) {
		ram, err := NewRAMDriver(info)
		require.NoError(t, err)
		faulty := NewFaultyDriver(ram)
		bd, err := NewBufferedBlockDevice(faulty, types.BlockGeometry{BlockSize: 4096, NumBlocks: 2})
		require.NoError(t, err)

		require.NoError(t, bd.WriteBlock(0, 0, []byte("head")))
		require.NoError(t, bd.WriteBlock(0, 4000, []byte("tail")))

		faulty.FailAt(1)
		assert.ErrorIs(t, bd.Flush(0), ErrPowerLoss)

		raw := make([]byte, 4)
		require.NoError(t, ram.Read(4000, raw))
		assert.Equal(t, []byte("tail"), raw)
		require.NoError(t, ram.Read(0, raw))
		assert.Equal(t, bytes.Repeat([]byte{0xFF}, 4), raw, "header page is programmed last")
	})

	t.Run("second block needs flush first", func(t *testing.T) {
		ram, err := NewRAMDriver(info)
		require.NoError(t, err)
		bd, err := NewBufferedBlockDevice(ram, types.BlockGeometry{BlockSize: 4096, NumBlocks: 2})
		require.NoError(t, err)

		require.NoError(t, bd.WriteBlock(0, 0, []byte("a")))
		assert.ErrorIs(t, bd.WriteBlock(1, 0, []byte("b")), types.ErrProgrammerError)

		require.NoError(t, bd.EraseBlock(0))
		assert.NoError(t, bd.WriteBlock(1, 0, []byte("b")))
	})
}
