package its

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/flash"
	"github.com/deploymenttheory/go-its/internal/flashfs"
	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/metrics"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/sirupsen/logrus"
)

// StoreConfig places a store on a flash device and sets its limits
type StoreConfig struct {
	Name            string
	AreaOffset      uint32
	AreaSize        uint32
	SectorsPerBlock uint32

	// ProgramUnit is the write granularity the store was configured for.
	// It must match the driver; zero accepts whatever the driver reports.
	ProgramUnit uint32

	MaxFileSize uint32
	MaxNumFiles uint32

	// Buffered stages each block in RAM for flash that allows a single
	// program per page.
	Buffered bool

	// CreateLayout wipes the area and formats it when Prepare fails.
	CreateLayout bool
}

// Store is a filesystem context managed by the service
type Store struct {
	FS           interfaces.FileStore
	CreateLayout bool
}

// OpenStore builds the block device and filesystem context described by sc.
// The context is not prepared.
func OpenStore(drv interfaces.FlashDriver, sc StoreConfig, log logrus.FieldLogger, m *metrics.Collector) (*flashfs.FS, error) {
	fi := drv.Info()
	if sc.ProgramUnit != 0 && fi.ProgramUnit != sc.ProgramUnit {
		return nil, fmt.Errorf("%w: %s configured for program unit %d, driver reports %d", types.ErrProgrammerError, sc.Name, sc.ProgramUnit, fi.ProgramUnit)
	}
	if sc.SectorsPerBlock == 0 {
		return nil, fmt.Errorf("%w: %s sectors per block must be non-zero", types.ErrGenericError, sc.Name)
	}

	blockSize := fi.SectorSize * sc.SectorsPerBlock
	geo := types.BlockGeometry{
		AreaAddr:  sc.AreaOffset,
		BlockSize: blockSize,
		NumBlocks: sc.AreaSize / blockSize,
	}

	var dev interfaces.BlockDevice
	var err error
	if sc.Buffered {
		dev, err = flash.NewBufferedBlockDevice(drv, geo)
	} else {
		dev, err = flash.NewBlockDevice(drv, geo)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create block device for %s: %w", sc.Name, err)
	}

	fs, err := flashfs.New(dev, flashfs.Config{
		Name:        sc.Name,
		MaxFileSize: sc.MaxFileSize,
		MaxNumFiles: sc.MaxNumFiles,
		Logger:      log,
		Metrics:     m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem %s: %w", sc.Name, err)
	}
	return fs, nil
}
