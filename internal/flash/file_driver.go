package flash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
)

// FileDriver emulates a NOR flash device backed by an image file
type FileDriver struct {
	file  *os.File
	info  types.FlashInfo
	mu    sync.Mutex
	stats *FileDriverStatistics
}

// FileDriverStatistics tracks image access statistics
type FileDriverStatistics struct {
	Reads           int64 `json:"reads" yaml:"reads"`
	BytesRead       int64 `json:"bytes_read" yaml:"bytes_read"`
	Programs        int64 `json:"programs" yaml:"programs"`
	BytesProgrammed int64 `json:"bytes_programmed" yaml:"bytes_programmed"`
	Erases          int64 `json:"erases" yaml:"erases"`
}

var _ interfaces.FlashDriver = (*FileDriver)(nil)

// OpenFileDriver opens the flash image at path, creating an erased image of
// info.Size bytes if it does not exist yet
func OpenFileDriver(path string, info types.FlashInfo) (*FileDriver, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		file, err = createImage(path, info)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open flash image: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat flash image: %w", err)
	}
	if stat.Size() != int64(info.Size) {
		file.Close()
		return nil, fmt.Errorf("flash image %s is %d bytes, expected %d", path, stat.Size(), info.Size)
	}

	return &FileDriver{
		file:  file,
		info:  info,
		stats: &FileDriverStatistics{},
	}, nil
}

func createImage(path string, info types.FlashInfo) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	sector := make([]byte, info.SectorSize)
	fill(sector, info.ErasedValue)
	for addr := uint32(0); addr < info.Size; addr += info.SectorSize {
		if _, err := file.WriteAt(sector, int64(addr)); err != nil {
			file.Close()
			return nil, err
		}
	}
	return file, nil
}

// Info returns the device properties
func (d *FileDriver) Info() types.FlashInfo {
	return d.info
}

// Read copies image contents into buf
func (d *FileDriver) Read(addr uint32, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inRange(addr, len(buf)) {
		return ErrInvalidAddress
	}
	if err := d.readAt(buf, addr); err != nil {
		return err
	}
	d.stats.Reads++
	d.stats.BytesRead += int64(len(buf))
	return nil
}

// Program writes data following NOR rules
func (d *FileDriver) Program(addr uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inRange(addr, len(data)) {
		return ErrInvalidAddress
	}
	if addr%d.info.ProgramUnit != 0 || uint32(len(data))%d.info.ProgramUnit != 0 {
		return ErrMisalignedAccess
	}

	current := make([]byte, len(data))
	if err := d.readAt(current, addr); err != nil {
		return err
	}
	if err := programBytes(current, data, d.info.ErasedValue); err != nil {
		return err
	}
	if _, err := d.file.WriteAt(current, int64(addr)); err != nil {
		return fmt.Errorf("failed to write flash image: %w", err)
	}

	d.stats.Programs++
	d.stats.BytesProgrammed += int64(len(data))
	return nil
}

// EraseSector erases the sector starting at addr
func (d *FileDriver) EraseSector(addr uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if addr%d.info.SectorSize != 0 {
		return ErrMisalignedAccess
	}
	if !d.inRange(addr, int(d.info.SectorSize)) {
		return ErrInvalidAddress
	}

	sector := make([]byte, d.info.SectorSize)
	fill(sector, d.info.ErasedValue)
	if _, err := d.file.WriteAt(sector, int64(addr)); err != nil {
		return fmt.Errorf("failed to erase flash image: %w", err)
	}
	d.stats.Erases++
	return nil
}

// Sync flushes the image file to stable storage
func (d *FileDriver) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Sync()
}

// Close syncs and closes the image file
func (d *FileDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.file.Sync(); err != nil {
		d.file.Close()
		return err
	}
	return d.file.Close()
}

// Statistics returns a copy of the access statistics
func (d *FileDriver) Statistics() FileDriverStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.stats
}

func (d *FileDriver) readAt(buf []byte, addr uint32) error {
	n, err := d.file.ReadAt(buf, int64(addr))
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return fmt.Errorf("failed to read flash image: %w", err)
	}
	return nil
}

func (d *FileDriver) inRange(addr uint32, n int) bool {
	return uint64(addr)+uint64(n) <= uint64(d.info.Size)
}
