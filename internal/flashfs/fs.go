// Package flashfs implements the log-structured flash filesystem used by the
// trusted storage service. A context owns two blocks: the active block holds
// the header, the commit marker, an append-only directory and file data; the
// scratch block receives a compacted copy when the active block fills up.
package flashfs

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-its/internal/codec"
	"github.com/deploymenttheory/go-its/internal/flash"
	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/metrics"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const copyChunk = 256

// Config holds the limits of a filesystem context
type Config struct {
	// Name identifies the store in logs and metrics.
	Name string

	// MaxFileSize is the largest allocation a file may request.
	MaxFileSize uint32

	// MaxNumFiles is the largest number of live files.
	MaxNumFiles uint32

	Logger  logrus.FieldLogger
	Metrics *metrics.Collector
}

// FS is a filesystem context. It is not safe for concurrent use.
type FS struct {
	cfg     Config
	dev     interfaces.BlockDevice
	geo     types.BlockGeometry
	log     logrus.FieldLogger
	metrics *metrics.Collector

	// derived layout
	commitOff uint32
	dirStart  uint32
	slotSize  uint32

	state  State
	active uint32
	header codec.Header
	dir    directory

	contentBuf []byte
	copyBuf    []byte
}

var _ interfaces.FileStore = (*FS)(nil)

// New creates an unprepared filesystem context on dev
func New(dev interfaces.BlockDevice, cfg Config) (*FS, error) {
	geo := dev.Geometry()
	if geo.NumBlocks < types.BlocksPerContext {
		return nil, fmt.Errorf("%w: filesystem needs %d blocks, device has %d", types.ErrGenericError, types.BlocksPerContext, geo.NumBlocks)
	}
	if cfg.MaxNumFiles == 0 {
		return nil, fmt.Errorf("%w: max number of files must be non-zero", types.ErrGenericError)
	}
	if cfg.Name == "" {
		cfg.Name = "its"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	pu := geo.ProgramUnit
	fs := &FS{
		cfg:       cfg,
		dev:       dev,
		geo:       geo,
		metrics:   cfg.Metrics,
		commitOff: types.AlignUp(types.HeaderSize, pu),
		slotSize:  types.AlignUp(types.EntrySize, pu),
		state:     StateUninitialized,
	}
	fs.dirStart = fs.commitOff + types.AlignUp(types.CommitMarkerSize, pu)
	fs.log = cfg.Logger.WithField("store", cfg.Name)

	// one maximal file plus a spare slot for each file so a replacement
	// record always fits beside the live directory
	need := uint64(fs.dirStart) + uint64(cfg.MaxNumFiles+1)*uint64(fs.slotSize) + uint64(types.AlignUp(cfg.MaxFileSize, pu))
	if need > uint64(geo.BlockSize) {
		return nil, fmt.Errorf("%w: block size %d cannot hold %d files of up to %d bytes", types.ErrGenericError, geo.BlockSize, cfg.MaxNumFiles, cfg.MaxFileSize)
	}
	if geo.NumBlocks > types.BlocksPerContext {
		fs.log.WithField("blocks", geo.NumBlocks).Warn("flash area has more blocks than a context uses, extra blocks stay unused")
	}

	chunk := types.AlignUp(copyChunk, pu)
	fs.contentBuf = make([]byte, types.AlignUp(cfg.MaxFileSize, pu)+pu)
	fs.copyBuf = make([]byte, chunk)
	return fs, nil
}

// Name returns the store name
func (fs *FS) Name() string {
	return fs.cfg.Name
}

// MaxFileSize returns the largest allocation a file may have
func (fs *FS) MaxFileSize() uint32 {
	return fs.cfg.MaxFileSize
}

// State returns the lifecycle state
func (fs *FS) State() State {
	return fs.state
}

// Prepare selects the authoritative block, repairing the area after an
// interrupted operation, and rebuilds the directory cache
func (fs *FS) Prepare() error {
	fs.state = StateUninitialized

	var status [types.BlocksPerContext]BlockStatus
	var headers [types.BlocksPerContext]codec.Header
	var dirs [types.BlocksPerContext]directory
	for b := uint32(0); b < types.BlocksPerContext; b++ {
		st, hdr, dir, err := fs.classify(b)
		if err != nil {
			return err
		}
		status[b], headers[b], dirs[b] = st, hdr, dir
		fs.log.WithFields(logrus.Fields{"block": b, "class": st.Class, "generation": st.Generation}).Debug("classified block")
	}

	plan := SelectActive(status[0], status[1])
	log := fs.log.WithFields(logrus.Fields{"block": plan.Active, "reason": plan.Reason})

	if plan.Action == ActionFormat {
		log.Info("formatting store")
		if err := fs.format(plan.Active, 1, uuid.New(), plan.EraseOther); err != nil {
			return err
		}
		fs.metrics.RecordRecovery(fs.cfg.Name, "format")
		return fs.finishPrepare()
	}

	if plan.EraseOther {
		other := 1 - plan.Active
		log.WithField("stale", other).Info("erasing stale block")
		if err := fs.dev.EraseBlock(other); err != nil {
			return fs.deviceErr("erase stale block", err)
		}
		fs.metrics.RecordRecovery(fs.cfg.Name, "erase_stale")
	}

	fs.active = plan.Active
	fs.header = headers[plan.Active]
	fs.dir = dirs[plan.Active]
	if fs.dir.dirtyData {
		fs.metrics.RecordRecovery(fs.cfg.Name, "dirty_data")
	}
	if err := fs.checkTails(); err != nil {
		return err
	}
	if err := fs.checkLimits(); err != nil {
		return err
	}
	log.WithField("generation", fs.header.Generation).Debug("adopted active block")
	return fs.finishPrepare()
}

func (fs *FS) finishPrepare() error {
	if err := fs.transition(StatePrepared); err != nil {
		return err
	}
	fs.updateUsage()
	return nil
}

// Wipe erases both blocks and formats an empty store with a new identity
func (fs *FS) Wipe() error {
	fs.state = StateUninitialized
	fs.log.Warn("wiping store")
	if err := fs.format(0, 1, uuid.New(), true); err != nil {
		return err
	}
	return fs.finishPrepare()
}

// format erases block and, if requested, the other block, then writes a
// committed empty header
func (fs *FS) format(block uint32, generation uint64, id uuid.UUID, eraseOther bool) error {
	if eraseOther {
		if err := fs.dev.EraseBlock(1 - block); err != nil {
			return fs.deviceErr("erase block", err)
		}
	}
	if err := fs.dev.EraseBlock(block); err != nil {
		return fs.deviceErr("erase block", err)
	}

	hdr := fs.newHeader(generation, id)
	if err := fs.write(block, 0, codec.Pad(codec.EncodeHeader(hdr), fs.geo.ProgramUnit, fs.geo.ErasedValue)); err != nil {
		return err
	}
	if err := fs.write(block, fs.commitOff, codec.Pad(codec.CommitMarker(), fs.geo.ProgramUnit, fs.geo.ErasedValue)); err != nil {
		return err
	}
	if err := fs.dev.Flush(block); err != nil {
		return fs.deviceErr("flush block", err)
	}

	fs.active = block
	fs.header = hdr
	fs.dir = newDirectory(fs.dirStart, fs.geo.BlockSize)
	return nil
}

func (fs *FS) newHeader(generation uint64, id uuid.UUID) codec.Header {
	return codec.Header{
		Generation:  generation,
		StoreID:     id,
		BlockSize:   fs.geo.BlockSize,
		ProgramUnit: fs.geo.ProgramUnit,
		SlotSize:    fs.slotSize,
	}
}

// checkLimits rejects a recovered directory that the configured limits
// cannot represent
func (fs *FS) checkLimits() error {
	if uint32(len(fs.dir.files)) > fs.cfg.MaxNumFiles {
		return fmt.Errorf("%w: store holds %d files, limit is %d", types.ErrStorageCorrupt, len(fs.dir.files), fs.cfg.MaxNumFiles)
	}
	for fid, f := range fs.dir.files {
		if f.entry.SizeMax > fs.cfg.MaxFileSize {
			return fmt.Errorf("%w: file %s allocation %d exceeds limit %d", types.ErrStorageCorrupt, fid, f.entry.SizeMax, fs.cfg.MaxFileSize)
		}
	}
	return nil
}

func (fs *FS) ready() error {
	if fs.state != StatePrepared {
		return fmt.Errorf("%w: filesystem is %s", types.ErrGenericError, fs.state)
	}
	return nil
}

// write programs data and accounts for it
func (fs *FS) write(block, offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := fs.dev.WriteBlock(block, offset, data); err != nil {
		return fs.deviceErr("write block", err)
	}
	fs.metrics.AddProgrammed(fs.cfg.Name, len(data))
	return nil
}

func (fs *FS) read(block, offset uint32, buf []byte) error {
	if err := fs.dev.ReadBlock(block, offset, buf); err != nil {
		return fs.deviceErr("read block", err)
	}
	return nil
}

// deviceErr maps block layer errors onto status errors. Hardware failures
// already carry their status; addressing errors indicate a layout bug.
func (fs *FS) deviceErr(op string, err error) error {
	if errors.Is(err, flash.ErrInvalidAddress) || errors.Is(err, flash.ErrMisalignedAccess) {
		return fmt.Errorf("failed to %s: %w: %w", op, types.ErrProgrammerError, err)
	}
	if types.StatusOf(err) == types.StatusGenericError && !errors.Is(err, types.ErrGenericError) {
		return fmt.Errorf("failed to %s: %w: %w", op, types.ErrHardwareFailure, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (fs *FS) updateUsage() {
	fs.metrics.SetUsage(fs.cfg.Name, len(fs.dir.files), fs.dir.free())
}
