package flashfs

import (
	"fmt"
	"math"

	"github.com/deploymenttheory/go-its/internal/codec"
	"github.com/deploymenttheory/go-its/internal/types"
)

// FileGetInfo returns the directory information of a file
func (fs *FS) FileGetInfo(fid types.FileID) (types.FileInfo, error) {
	if err := fs.ready(); err != nil {
		return types.FileInfo{}, err
	}
	f, ok := fs.dir.files[fid]
	if !ok {
		return types.FileInfo{}, types.ErrDoesNotExist
	}
	return f.entry.FileInfo(), nil
}

// FileRead reads size bytes at offset into buf
func (fs *FS) FileRead(fid types.FileID, size, offset uint32, buf []byte) error {
	if err := fs.ready(); err != nil {
		return err
	}
	f, ok := fs.dir.files[fid]
	if !ok {
		return types.ErrDoesNotExist
	}
	if uint32(len(buf)) < size {
		return fmt.Errorf("%w: read of %d bytes into %d byte buffer", types.ErrBufferTooSmall, size, len(buf))
	}
	if offset > f.entry.SizeCurrent || size > f.entry.SizeCurrent-offset {
		return fmt.Errorf("%w: read [%d, +%d) beyond file size %d", types.ErrInvalidArgument, offset, size, f.entry.SizeCurrent)
	}
	if size == 0 {
		return nil
	}
	return fs.read(fs.active, f.entry.DataOffset+offset, buf[:size])
}

// FileWrite writes data at offset. FlagCreate in info.Flags creates a missing
// file with an allocation of info.SizeMax; FlagTruncate discards the current
// contents and allocation first. The user flags, nonce, tag and plaintext
// size of info replace the stored ones.
func (fs *FS) FileWrite(fid types.FileID, info types.FileInfo, data []byte, offset uint32) error {
	if err := fs.ready(); err != nil {
		return err
	}
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("%w: write of %d bytes", types.ErrInvalidArgument, len(data))
	}
	size := uint32(len(data))

	f, exists := fs.dir.files[fid]
	if !exists && !info.Flags.IsCreate() {
		return types.ErrDoesNotExist
	}

	fresh := !exists || info.Flags.IsTruncate()
	var cur, sizeMax uint32
	if fresh {
		if info.SizeMax > fs.cfg.MaxFileSize {
			return fmt.Errorf("%w: allocation %d exceeds maximum file size %d", types.ErrInvalidArgument, info.SizeMax, fs.cfg.MaxFileSize)
		}
		if !exists && uint32(len(fs.dir.files)) >= fs.cfg.MaxNumFiles {
			return fmt.Errorf("%w: store already holds %d files", types.ErrInsufficientStorage, len(fs.dir.files))
		}
		sizeMax = info.SizeMax
	} else {
		cur, sizeMax = f.entry.SizeCurrent, f.entry.SizeMax
	}
	if offset > cur {
		return fmt.Errorf("%w: offset %d beyond file size %d", types.ErrInvalidArgument, offset, cur)
	}
	if uint64(offset)+uint64(size) > uint64(sizeMax) {
		return fmt.Errorf("%w: write [%d, +%d) beyond allocation %d", types.ErrInvalidArgument, offset, size, sizeMax)
	}

	next := codec.Entry{
		Kind:          types.EntryKindFile,
		FID:           fid,
		Flags:         info.Flags.User(),
		SizeCurrent:   max(cur, offset+size),
		SizeMax:       sizeMax,
		PlaintextSize: info.PlaintextSize,
		Nonce:         info.Nonce,
		Tag:           info.Tag,
	}

	var err error
	switch {
	case !fs.dev.SingleProgram() && !fresh && offset == cur && !f.tailDirty && fs.dir.free() >= fs.slotSize:
		err = fs.appendInPlace(f, next, data, offset)
	case !fs.dev.SingleProgram() && fs.dir.free() >= fs.slotSize && fs.dir.free()-fs.slotSize >= types.AlignUp(sizeMax, fs.geo.ProgramUnit):
		err = fs.relocate(f, fresh, next, data, offset)
	default:
		var content []byte
		if content, err = fs.assemble(f, fresh, data, offset, next.SizeCurrent); err == nil {
			err = fs.compact(fid, &next, content)
		}
	}
	fs.updateUsage()
	return err
}

// FileDelete removes a file
func (fs *FS) FileDelete(fid types.FileID) error {
	if err := fs.ready(); err != nil {
		return err
	}
	if _, ok := fs.dir.files[fid]; !ok {
		return types.ErrDoesNotExist
	}

	var err error
	if !fs.dev.SingleProgram() && fs.dir.free() >= fs.slotSize {
		err = fs.commitEntry(codec.Entry{Kind: types.EntryKindTombstone, FID: fid})
	} else {
		err = fs.compact(fid, nil, nil)
	}
	fs.updateUsage()
	return err
}

// appendInPlace programs data into the erased tail of the current allocation.
// The program unit holding the current end is rewritten with its existing
// bytes, which NOR programming accepts.
func (fs *FS) appendInPlace(f *file, next codec.Entry, data []byte, offset uint32) error {
	pu := fs.geo.ProgramUnit
	start := types.AlignDown(offset, pu)
	prefix := offset - start

	if len(data) > 0 {
		buf := fs.contentBuf
		if prefix > 0 {
			if err := fs.read(fs.active, f.entry.DataOffset+start, buf[:prefix]); err != nil {
				return err
			}
		}
		copy(buf[prefix:], data)
		padded := fs.pad(buf, prefix+uint32(len(data)))

		// until the entry lands the tail may hold partial data
		f.tailDirty = true
		if err := fs.write(fs.active, f.entry.DataOffset+start, padded); err != nil {
			return err
		}
	}

	next.DataOffset = f.entry.DataOffset
	return fs.commitEntry(next)
}

// relocate writes the complete new contents to a fresh allocation in the
// active block, then commits the entry pointing at it
func (fs *FS) relocate(f *file, fresh bool, next codec.Entry, data []byte, offset uint32) error {
	content, err := fs.assemble(f, fresh, data, offset, next.SizeCurrent)
	if err != nil {
		return err
	}

	alloc := types.AlignUp(next.SizeMax, fs.geo.ProgramUnit)
	fs.dir.dataLow -= alloc
	next.DataOffset = fs.dir.dataLow

	if err := fs.write(fs.active, next.DataOffset, fs.pad(fs.contentBuf, uint32(len(content)))); err != nil {
		return err
	}
	return fs.commitEntry(next)
}

// assemble builds the new file contents in the content buffer
func (fs *FS) assemble(f *file, fresh bool, data []byte, offset, newSize uint32) ([]byte, error) {
	buf := fs.contentBuf[:newSize]
	if !fresh && f.entry.SizeCurrent > 0 {
		if err := fs.read(fs.active, f.entry.DataOffset, buf[:f.entry.SizeCurrent]); err != nil {
			return nil, err
		}
	}
	copy(buf[offset:], data)
	return buf, nil
}

// commitEntry appends a directory record. The slot is consumed even when the
// write fails, a torn slot is skipped by the next scan.
func (fs *FS) commitEntry(e codec.Entry) error {
	off := fs.dir.dirHigh
	fs.dir.dirHigh += fs.slotSize

	rec := codec.Pad(codec.EncodeEntry(e), fs.geo.ProgramUnit, fs.geo.ErasedValue)
	if err := fs.write(fs.active, off, rec); err != nil {
		return err
	}
	fs.dir.apply(e)
	return nil
}

// pad extends buf[:n] with erased bytes up to the program unit. buf must have
// room for the padding.
func (fs *FS) pad(buf []byte, n uint32) []byte {
	end := types.AlignUp(n, fs.geo.ProgramUnit)
	for i := n; i < end; i++ {
		buf[i] = fs.geo.ErasedValue
	}
	return buf[:end]
}
