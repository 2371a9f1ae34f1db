package flashfs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/deploymenttheory/go-its/internal/types"
	"pgregory.net/rapid"
)

type modelFile struct {
	data    []byte
	sizeMax uint32
}

// fsMachine drives a filesystem against a map model
type fsMachine struct {
	r     *rig
	fs    *FS
	model map[uint64]*modelFile
}

func (m *fsMachine) Init(t *rapid.T, nand bool) {
	m.r = newRig(t, rapid.SampledFrom([]uint32{1, 4, 16}).Draw(t, "pu"), nand)
	fs, err := m.r.mount()
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	m.fs = fs
	m.model = make(map[uint64]*modelFile)
}

func (m *fsMachine) Put(t *rapid.T) {
	uid := rapid.Uint64Range(1, 5).Draw(t, "uid")
	data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "data")
	sizeMax := rapid.Uint32Range(uint32(len(data)), 96).Draw(t, "sizeMax")

	if err := putMax(m.fs, uid, data, sizeMax); err != nil {
		t.Fatalf("put %d: %v", uid, err)
	}
	m.model[uid] = &modelFile{data: data, sizeMax: sizeMax}
}

func (m *fsMachine) Write(t *rapid.T) {
	uid := rapid.Uint64Range(1, 5).Draw(t, "uid")
	f, ok := m.model[uid]
	if !ok {
		err := m.fs.FileWrite(fid(uid), types.FileInfo{}, []byte("x"), 0)
		if !errors.Is(err, types.ErrDoesNotExist) {
			t.Fatalf("write to missing file: %v", err)
		}
		return
	}

	offset := rapid.Uint32Range(0, uint32(len(f.data))).Draw(t, "offset")
	data := rapid.SliceOfN(rapid.Byte(), 0, int(f.sizeMax-offset)).Draw(t, "data")
	if err := m.fs.FileWrite(fid(uid), types.FileInfo{}, data, offset); err != nil {
		t.Fatalf("write %d at %d: %v", uid, offset, err)
	}

	end := int(offset) + len(data)
	if end > len(f.data) {
		f.data = append(f.data, make([]byte, end-len(f.data))...)
	}
	copy(f.data[offset:], data)
}

func (m *fsMachine) Delete(t *rapid.T) {
	uid := rapid.Uint64Range(1, 5).Draw(t, "uid")
	err := m.fs.FileDelete(fid(uid))
	if _, ok := m.model[uid]; !ok {
		if !errors.Is(err, types.ErrDoesNotExist) {
			t.Fatalf("delete of missing file: %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("delete %d: %v", uid, err)
	}
	delete(m.model, uid)
}

func (m *fsMachine) Reboot(t *rapid.T) {
	fs, err := m.r.mount()
	if err != nil {
		t.Fatalf("reboot: %v", err)
	}
	m.fs = fs
}

func (m *fsMachine) Check(t *rapid.T) {
	if got := m.fs.Stats().LiveFiles; got != len(m.model) {
		t.Fatalf("live files %d, model has %d", got, len(m.model))
	}
	for uid, f := range m.model {
		info, err := m.fs.FileGetInfo(fid(uid))
		if err != nil {
			t.Fatalf("info %d: %v", uid, err)
		}
		if info.SizeCurrent != uint32(len(f.data)) || info.SizeMax != f.sizeMax {
			t.Fatalf("file %d sizes %d/%d, model %d/%d", uid, info.SizeCurrent, info.SizeMax, len(f.data), f.sizeMax)
		}
		buf := make([]byte, info.SizeCurrent)
		if err := m.fs.FileRead(fid(uid), info.SizeCurrent, 0, buf); err != nil {
			t.Fatalf("read %d: %v", uid, err)
		}
		if !bytes.Equal(buf, f.data) {
			t.Fatalf("file %d content %x, model %x", uid, buf, f.data)
		}
	}
}

func TestFilesystemStateMachine(t *testing.T) {
	for _, nand := range []bool{false, true} {
		name := "nor"
		if nand {
			name = "nand"
		}
		t.Run(name, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				m := &fsMachine{}
				m.Init(t, nand)

				t.Repeat(map[string]func(*rapid.T){
					"Put":    m.Put,
					"Write":  m.Write,
					"Delete": m.Delete,
					"Reboot": m.Reboot,
					"":       m.Check,
				})
			})
		})
	}
}
