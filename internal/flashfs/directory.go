package flashfs

import (
	"bytes"
	"sort"

	"github.com/deploymenttheory/go-its/internal/codec"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/sirupsen/logrus"
)

type file struct {
	entry codec.Entry

	// tailDirty marks programmed bytes past SizeCurrent inside the
	// allocation, left by an interrupted append. Such a file is relocated on
	// its next write.
	tailDirty bool
}

// directory is the in-memory cache of the active block directory
type directory struct {
	files map[types.FileID]*file

	// dirHigh is the offset of the next free slot, dataLow the lowest byte
	// of allocated or unaccounted data. Free space is [dirHigh, dataLow).
	dirHigh uint32
	dataLow uint32

	entries int
	corrupt int

	// dirtyData is set when the scan found uncommitted bytes in free space
	dirtyData bool
}

func newDirectory(dirStart, blockSize uint32) directory {
	return directory{
		files:   make(map[types.FileID]*file),
		dirHigh: dirStart,
		dataLow: blockSize,
	}
}

func (d *directory) free() uint32 {
	if d.dataLow < d.dirHigh {
		return 0
	}
	return d.dataLow - d.dirHigh
}

func (d *directory) stale() int {
	return d.entries - len(d.files)
}

// sortedIDs returns the live file ids in byte order
func (d *directory) sortedIDs() []types.FileID {
	ids := make([]types.FileID, 0, len(d.files))
	for fid := range d.files {
		ids = append(ids, fid)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// apply replays one directory record
func (d *directory) apply(e codec.Entry) {
	d.entries++
	switch e.Kind {
	case types.EntryKindFile:
		d.files[e.FID] = &file{entry: e}
		if e.DataOffset < d.dataLow {
			d.dataLow = e.DataOffset
		}
	case types.EntryKindTombstone:
		delete(d.files, e.FID)
	}
}

// classify reads the header and commit marker of a block and, for valid
// blocks, its directory
func (fs *FS) classify(block uint32) (BlockStatus, codec.Header, directory, error) {
	head := make([]byte, fs.dirStart)
	if err := fs.read(block, 0, head); err != nil {
		return BlockStatus{}, codec.Header{}, directory{}, err
	}

	hdr, err := codec.DecodeHeader(head)
	if err != nil || !fs.geometryMatches(hdr) || !codec.IsCommitted(head[fs.commitOff:]) {
		erased, err := fs.isErased(block, 0, fs.geo.BlockSize)
		if err != nil {
			return BlockStatus{}, codec.Header{}, directory{}, err
		}
		if erased {
			return BlockStatus{Class: BlockErased}, codec.Header{}, directory{}, nil
		}
		return BlockStatus{Class: BlockInvalid}, codec.Header{}, directory{}, nil
	}

	dir, err := fs.scan(block)
	if err != nil {
		return BlockStatus{}, codec.Header{}, directory{}, err
	}
	st := BlockStatus{Class: BlockValid, Generation: hdr.Generation, Clean: dir.corrupt == 0}
	return st, hdr, dir, nil
}

func (fs *FS) geometryMatches(h codec.Header) bool {
	return h.BlockSize == fs.geo.BlockSize && h.ProgramUnit == fs.geo.ProgramUnit && h.SlotSize == fs.slotSize
}

// scan replays the directory of a block. Slots are read in order until the
// first erased slot; a slot that does not decode, or that points outside the
// data region, is counted as corrupt and skipped. The free region is then
// checked for data that no committed entry accounts for.
func (fs *FS) scan(block uint32) (directory, error) {
	dir := newDirectory(fs.dirStart, fs.geo.BlockSize)
	slot := make([]byte, fs.slotSize)

	off := fs.dirStart
	for ; off+fs.slotSize <= dir.dataLow; off += fs.slotSize {
		if err := fs.read(block, off, slot); err != nil {
			return directory{}, err
		}
		if codec.IsErased(slot, fs.geo.ErasedValue) {
			break
		}

		e, err := codec.DecodeEntry(slot)
		if err != nil || !fs.entryInBounds(e, off) {
			fs.log.WithFields(logrus.Fields{"block": block, "offset": off}).Warn("skipping corrupt directory slot")
			dir.corrupt++
			dir.entries++
			continue
		}
		dir.apply(e)
	}
	dir.dirHigh = off

	// bytes programmed in the free region belong to a write whose entry was
	// never committed; they shrink the free space until the next compaction
	if dir.dataLow > dir.dirHigh {
		low, err := fs.lowestProgrammed(block, dir.dirHigh, dir.dataLow)
		if err != nil {
			return directory{}, err
		}
		if low < dir.dataLow {
			fs.log.WithFields(logrus.Fields{"block": block, "offset": low}).Info("reclaiming uncommitted data")
			dir.dirtyData = true
			dir.dataLow = types.AlignDown(low, fs.geo.ProgramUnit)
		}
	}
	return dir, nil
}

func (fs *FS) entryInBounds(e codec.Entry, slotOff uint32) bool {
	if e.Kind != types.EntryKindFile {
		return true
	}
	alloc := types.AlignUp(e.SizeMax, fs.geo.ProgramUnit)
	return e.DataOffset%fs.geo.ProgramUnit == 0 &&
		e.DataOffset >= slotOff+fs.slotSize &&
		uint64(e.DataOffset)+uint64(alloc) <= uint64(fs.geo.BlockSize)
}

// checkTails marks files whose allocation past SizeCurrent is not erased
func (fs *FS) checkTails() error {
	for fid, f := range fs.dir.files {
		alloc := types.AlignUp(f.entry.SizeMax, fs.geo.ProgramUnit)
		if f.entry.SizeCurrent >= alloc {
			continue
		}
		clean, err := fs.isErased(fs.active, f.entry.DataOffset+f.entry.SizeCurrent, alloc-f.entry.SizeCurrent)
		if err != nil {
			return err
		}
		if !clean {
			fs.log.WithField("fid", fid.String()).Info("file tail holds uncommitted data")
			f.tailDirty = true
		}
	}
	return nil
}

func (fs *FS) isErased(block, offset, length uint32) (bool, error) {
	low, err := fs.lowestProgrammed(block, offset, offset+length)
	if err != nil {
		return false, err
	}
	return low == offset+length, nil
}

// lowestProgrammed returns the offset of the first non-erased byte in
// [from, to), or to when the range is erased
func (fs *FS) lowestProgrammed(block, from, to uint32) (uint32, error) {
	buf := fs.copyBuf
	for off := from; off < to; {
		n := uint32(len(buf))
		if to-off < n {
			n = to - off
		}
		if err := fs.read(block, off, buf[:n]); err != nil {
			return 0, err
		}
		for i := uint32(0); i < n; i++ {
			if buf[i] != fs.geo.ErasedValue {
				return off + i, nil
			}
		}
		off += n
	}
	return to, nil
}
