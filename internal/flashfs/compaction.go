package flashfs

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/codec"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/sirupsen/logrus"
)

// compact rebuilds the store in the scratch block without stale entries.
// The target file is dropped (next == nil) or replaced by next with the given
// contents. The swap becomes durable with the commit marker; until then the
// active block stays authoritative and the in-memory state is untouched.
func (fs *FS) compact(target types.FileID, next *codec.Entry, content []byte) error {
	ids := fs.dir.sortedIDs()
	pu := fs.geo.ProgramUnit

	need := uint64(fs.dirStart)
	count := 0
	for _, id := range ids {
		if id == target {
			continue
		}
		need += uint64(fs.slotSize) + uint64(types.AlignUp(fs.dir.files[id].entry.SizeMax, pu))
		count++
	}
	if next != nil {
		need += uint64(fs.slotSize) + uint64(types.AlignUp(next.SizeMax, pu))
		count++
	}
	if need > uint64(fs.geo.BlockSize) {
		return fmt.Errorf("%w: compacted store needs %d bytes, block holds %d", types.ErrInsufficientStorage, need, fs.geo.BlockSize)
	}

	if err := fs.transition(StateCompacting); err != nil {
		return err
	}

	old := fs.active
	scratch := 1 - old
	log := fs.log.WithFields(logrus.Fields{"block": scratch, "generation": fs.header.Generation + 1, "files": count})
	log.Debug("compacting")

	hdr, dir, err := fs.buildScratch(scratch, ids, target, next, content)
	if err != nil {
		log.WithError(err).Warn("compaction aborted, active block unchanged")
		if terr := fs.transition(StatePrepared); terr != nil {
			return terr
		}
		return err
	}

	if err := fs.transition(StateSwapped); err != nil {
		return err
	}
	fs.active = scratch
	fs.header = hdr
	fs.dir = dir
	fs.metrics.RecordCompaction(fs.cfg.Name)

	// a failed erase leaves an older valid block behind, which Prepare and
	// the next compaction both discard
	if err := fs.dev.EraseBlock(old); err != nil {
		fs.log.WithError(err).WithField("block", old).Warn("failed to erase previous active block")
	}
	return fs.transition(StatePrepared)
}

func (fs *FS) buildScratch(scratch uint32, ids []types.FileID, target types.FileID, next *codec.Entry, content []byte) (codec.Header, directory, error) {
	if err := fs.dev.EraseBlock(scratch); err != nil {
		return codec.Header{}, directory{}, fs.deviceErr("erase scratch block", err)
	}

	hdr := fs.newHeader(fs.header.Generation+1, fs.header.StoreID)
	if err := fs.write(scratch, 0, codec.Pad(codec.EncodeHeader(hdr), fs.geo.ProgramUnit, fs.geo.ErasedValue)); err != nil {
		return codec.Header{}, directory{}, err
	}

	dir := newDirectory(fs.dirStart, fs.geo.BlockSize)
	place := func(e codec.Entry, fill func(dst uint32) error) error {
		dir.dataLow -= types.AlignUp(e.SizeMax, fs.geo.ProgramUnit)
		e.DataOffset = dir.dataLow
		if err := fill(e.DataOffset); err != nil {
			return err
		}
		rec := codec.Pad(codec.EncodeEntry(e), fs.geo.ProgramUnit, fs.geo.ErasedValue)
		if err := fs.write(scratch, dir.dirHigh, rec); err != nil {
			return err
		}
		dir.dirHigh += fs.slotSize
		dir.apply(e)
		return nil
	}

	for _, id := range ids {
		if id == target {
			continue
		}
		src := fs.dir.files[id].entry
		err := place(src, func(dst uint32) error {
			return fs.copyData(fs.active, src.DataOffset, scratch, dst, src.SizeCurrent)
		})
		if err != nil {
			return codec.Header{}, directory{}, err
		}
	}

	if next != nil {
		err := place(*next, func(dst uint32) error {
			if len(content) == 0 {
				return nil
			}
			return fs.write(scratch, dst, fs.pad(fs.contentBuf, uint32(len(content))))
		})
		if err != nil {
			return codec.Header{}, directory{}, err
		}
	}

	err := fs.write(scratch, fs.commitOff, codec.Pad(codec.CommitMarker(), fs.geo.ProgramUnit, fs.geo.ErasedValue))
	if err == nil {
		if ferr := fs.dev.Flush(scratch); ferr != nil {
			err = fs.deviceErr("flush scratch block", ferr)
		}
	}
	if err != nil {
		if !fs.committed(scratch) {
			return codec.Header{}, directory{}, err
		}
		fs.log.WithError(err).Warn("commit reported an error but the marker is intact")
	}
	return hdr, dir, nil
}

// committed re-reads the commit marker of a block
func (fs *FS) committed(block uint32) bool {
	buf := make([]byte, types.CommitMarkerSize)
	if err := fs.dev.ReadBlock(block, fs.commitOff, buf); err != nil {
		return false
	}
	return codec.IsCommitted(buf)
}

// copyData copies size bytes between blocks through the copy buffer. The
// final program unit is padded with erased bytes rather than copied, so a
// dirty tail in the source never reaches the destination.
func (fs *FS) copyData(src, srcOff, dst, dstOff, size uint32) error {
	buf := fs.copyBuf
	for done := uint32(0); done < size; {
		n := uint32(len(buf))
		if size-done < n {
			n = size - done
		}
		if err := fs.read(src, srcOff+done, buf[:n]); err != nil {
			return err
		}
		if err := fs.write(dst, dstOff+done, fs.padCopy(n)); err != nil {
			return err
		}
		done += n
	}
	return nil
}

func (fs *FS) padCopy(n uint32) []byte {
	end := types.AlignUp(n, fs.geo.ProgramUnit)
	for i := n; i < end; i++ {
		fs.copyBuf[i] = fs.geo.ErasedValue
	}
	return fs.copyBuf[:end]
}
