package flashfs

import (
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/google/uuid"
)

// Stats summarizes the state of a filesystem context
type Stats struct {
	Name           string    `json:"name" yaml:"name"`
	State          string    `json:"state" yaml:"state"`
	StoreID        uuid.UUID `json:"store_id" yaml:"store_id"`
	Generation     uint64    `json:"generation" yaml:"generation"`
	ActiveBlock    uint32    `json:"active_block" yaml:"active_block"`
	LiveFiles      int       `json:"live_files" yaml:"live_files"`
	StaleEntries   int       `json:"stale_entries" yaml:"stale_entries"`
	CorruptEntries int       `json:"corrupt_entries" yaml:"corrupt_entries"`
	FreeBytes      uint32    `json:"free_bytes" yaml:"free_bytes"`
	BlockSize      uint32    `json:"block_size" yaml:"block_size"`
	ProgramUnit    uint32    `json:"program_unit" yaml:"program_unit"`
}

// Stats returns counters describing the active block
func (fs *FS) Stats() Stats {
	return Stats{
		Name:           fs.cfg.Name,
		State:          fs.state.String(),
		StoreID:        fs.header.StoreID,
		Generation:     fs.header.Generation,
		ActiveBlock:    fs.active,
		LiveFiles:      len(fs.dir.files),
		StaleEntries:   fs.dir.stale(),
		CorruptEntries: fs.dir.corrupt,
		FreeBytes:      fs.dir.free(),
		BlockSize:      fs.geo.BlockSize,
		ProgramUnit:    fs.geo.ProgramUnit,
	}
}

// FileSummary describes one live file
type FileSummary struct {
	Owner       int32             `json:"owner" yaml:"owner"`
	UID         uint64            `json:"uid" yaml:"uid"`
	Flags       types.CreateFlags `json:"flags" yaml:"flags"`
	SizeCurrent uint32            `json:"size" yaml:"size"`
	SizeMax     uint32            `json:"capacity" yaml:"capacity"`
	DataOffset  uint32            `json:"data_offset" yaml:"data_offset"`
	TailDirty   bool              `json:"tail_dirty,omitempty" yaml:"tail_dirty,omitempty"`
}

// BlockReport is the on-flash view of one block
type BlockReport struct {
	Block      uint32 `json:"block" yaml:"block"`
	Class      string `json:"class" yaml:"class"`
	Generation uint64 `json:"generation,omitempty" yaml:"generation,omitempty"`
	Active     bool   `json:"active" yaml:"active"`
}

// Report is the result of Inspect
type Report struct {
	Stats  Stats         `json:"stats" yaml:"stats"`
	Blocks []BlockReport `json:"blocks" yaml:"blocks"`
	Files  []FileSummary `json:"files" yaml:"files"`
}

// Inspect classifies both blocks as Prepare would and lists the live files of
// the active block. It does not modify the flash.
func (fs *FS) Inspect() (Report, error) {
	r := Report{Stats: fs.Stats()}
	for b := uint32(0); b < types.BlocksPerContext; b++ {
		st, _, _, err := fs.classify(b)
		if err != nil {
			return Report{}, err
		}
		r.Blocks = append(r.Blocks, BlockReport{
			Block:      b,
			Class:      st.Class.String(),
			Generation: st.Generation,
			Active:     fs.state == StatePrepared && b == fs.active,
		})
	}

	for _, fid := range fs.dir.sortedIDs() {
		f := fs.dir.files[fid]
		r.Files = append(r.Files, summarize(f))
	}
	return r, nil
}

func summarize(f *file) FileSummary {
	e := f.entry
	return FileSummary{
		Owner:       e.FID.Owner(),
		UID:         e.FID.UID(),
		Flags:       e.Flags,
		SizeCurrent: e.SizeCurrent,
		SizeMax:     e.SizeMax,
		DataOffset:  e.DataOffset,
		TailDirty:   f.tailDirty,
	}
}

