package flash

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInfo(pu uint32) types.FlashInfo {
	return types.FlashInfo{SectorSize: 4096, ProgramUnit: pu, ErasedValue: 0xFF, Size: 4 * 4096}
}

func TestProgramByte(t *testing.T) {
	tests := []struct {
		name   string
		erased byte
		old    byte
		data   byte
		want   byte
		ok     bool
	}{
		{"erased ff onto erased", 0xFF, 0xFF, 0x5A, 0x5A, true},
		{"erased ff clears more bits", 0xFF, 0x5A, 0x50, 0x50, true},
		{"erased ff cannot set bits", 0xFF, 0x50, 0x5A, 0x50, false},
		{"erased 00 onto erased", 0x00, 0x00, 0x5A, 0x5A, true},
		{"erased 00 cannot clear bits", 0x00, 0x5A, 0x50, 0x5A, false},
		{"same value rewrite", 0xFF, 0x33, 0x33, 0x33, true},
		{"other erased value", 0xA5, 0xA5, 0x11, 0x11, true},
		{"other erased value conflict", 0xA5, 0x12, 0x11, 0x11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := programByte(tt.old, tt.data, tt.erased)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRAMDriver(t *testing.T) {
	t.Run("starts erased", func(t *testing.T) {
		drv, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)

		buf := make([]byte, 16)
		require.NoError(t, drv.Read(100, buf))
		assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16), buf)
	})

	t.Run("program and read back", func(t *testing.T) {
		drv, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)

		require.NoError(t, drv.Program(8, []byte("abcd")))
		buf := make([]byte, 4)
		require.NoError(t, drv.Read(8, buf))
		assert.Equal(t, []byte("abcd"), buf)
	})

	t.Run("conflicting program leaves memory untouched", func(t *testing.T) {
		drv, err := NewRAMDriver(testInfo(1))
		require.NoError(t, err)

		require.NoError(t, drv.Program(0, []byte{0x00, 0xF0}))
		err = drv.Program(0, []byte{0x00, 0x0F})
		assert.ErrorIs(t, err, ErrProgramConflict)

		buf := make([]byte, 2)
		require.NoError(t, drv.Read(0, buf))
		assert.Equal(t, []byte{0x00, 0xF0}, buf)
	})

	t.Run("misaligned program", func(t *testing.T) {
		drv, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)

		assert.ErrorIs(t, drv.Program(2, []byte("abcd")), ErrMisalignedAccess)
		assert.ErrorIs(t, drv.Program(0, []byte("abc")), ErrMisalignedAccess)
	})

	t.Run("out of range", func(t *testing.T) {
		drv, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)

		assert.ErrorIs(t, drv.Read(4*4096-2, make([]byte, 4)), ErrInvalidAddress)
		assert.ErrorIs(t, drv.Program(4*4096, []byte("abcd")), ErrInvalidAddress)
		assert.ErrorIs(t, drv.EraseSector(4*4096), ErrInvalidAddress)
	})

	t.Run("erase restores erased value", func(t *testing.T) {
		drv, err := NewRAMDriver(testInfo(4))
		require.NoError(t, err)

		require.NoError(t, drv.Program(4096, []byte("abcd")))
		assert.ErrorIs(t, drv.EraseSector(100), ErrMisalignedAccess)
		require.NoError(t, drv.EraseSector(4096))

		buf := make([]byte, 4)
		require.NoError(t, drv.Read(4096, buf))
		assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)
	})

	t.Run("invalid info", func(t *testing.T) {
		_, err := NewRAMDriver(types.FlashInfo{SectorSize: 4096, ProgramUnit: 3, Size: 8192})
		assert.Error(t, err)
		_, err = NewRAMDriver(types.FlashInfo{SectorSize: 4096, ProgramUnit: 4, Size: 5000})
		assert.Error(t, err)
	})
}

func TestFileDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")
	info := testInfo(4)

	drv, err := OpenFileDriver(path, info)
	require.NoError(t, err)

	require.NoError(t, drv.Program(16, []byte("data")))
	assert.ErrorIs(t, drv.Program(16, []byte("zzzz")), ErrProgramConflict)
	require.NoError(t, drv.Close())

	drv, err = OpenFileDriver(path, info)
	require.NoError(t, err)
	defer drv.Close()

	buf := make([]byte, 4)
	require.NoError(t, drv.Read(16, buf))
	assert.Equal(t, []byte("data"), buf)

	require.NoError(t, drv.EraseSector(0))
	require.NoError(t, drv.Read(16, buf))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)

	stats := drv.Statistics()
	assert.Equal(t, int64(1), stats.Erases)
	assert.Equal(t, int64(2), stats.Reads)

	bigger := testInfo(8)
	bigger.Size = 8 * 4096
	_, err = OpenFileDriver(path, bigger)
	assert.Error(t, err, "size mismatch must be rejected")
}
