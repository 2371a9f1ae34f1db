package codec

import (
	"bytes"
	"testing"

	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() Entry {
	e := Entry{
		Kind:          types.EntryKindFile,
		FID:           types.NewFileID(1, 42),
		Flags:         types.FlagWriteOnce,
		SizeCurrent:   16,
		SizeMax:       32,
		DataOffset:    4064,
		PlaintextSize: 16,
	}
	copy(e.Nonce[:], "nonce-012345")
	copy(e.Tag[:], "tag-0123456789ab")
	return e
}

func TestReaderWriter(t *testing.T) {
	buf := make([]byte, 15)
	w := NewWriter(buf)
	w.WriteUint8(0x01)
	w.WriteUint16(0x0302)
	w.WriteUint32(0x07060504)
	w.WriteUint64(0x0f0e0d0c0b0a0908)
	require.NoError(t, w.Err())
	assert.Equal(t, 15, w.Offset())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, buf)

	w.WriteUint8(0)
	assert.ErrorIs(t, w.Err(), ErrShortBuffer)

	r := NewReader(buf)
	assert.Equal(t, uint8(0x01), r.ReadUint8())
	assert.Equal(t, uint16(0x0302), r.ReadUint16())
	assert.Equal(t, uint32(0x07060504), r.ReadUint32())
	assert.Equal(t, uint64(0x0f0e0d0c0b0a0908), r.ReadUint64())
	require.NoError(t, r.Err())

	assert.Equal(t, uint32(0), r.ReadUint32())
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)

	r = NewReader(buf[:3])
	r.Skip(2)
	assert.Equal(t, uint16(0), r.ReadUint16(), "read past end yields zero")
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)
	assert.Equal(t, uint8(0), r.ReadUint8(), "errors are sticky")
}

func TestFletcher64(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint64
	}{
		{"empty", nil, 0},
		{"single word", []byte{1, 0, 0, 0}, 1<<32 | 1},
		{"two words", []byte{1, 0, 0, 0, 2, 0, 0, 0}, 4<<32 | 3},
		{"partial word padded", []byte{1, 0}, 1<<32 | 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fletcher64(tt.data))
		})
	}

	a := bytes.Repeat([]byte{0xAB}, 8192)
	b := bytes.Repeat([]byte{0xAB}, 8192)
	b[5000] ^= 0x01
	assert.NotEqual(t, Fletcher64(a), Fletcher64(b))
}

func TestHeader(t *testing.T) {
	h := Header{
		Generation:  7,
		StoreID:     uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		BlockSize:   4096,
		ProgramUnit: 4,
		SlotSize:    72,
	}

	raw := EncodeHeader(h)
	require.Len(t, raw, types.HeaderSize)

	got, err := DecodeHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	tests := []struct {
		name   string
		mutate func([]byte)
	}{
		{"bad magic", func(b []byte) { b[0] ^= 0xFF }},
		{"bad version", func(b []byte) { b[4] = 9 }},
		{"flipped generation", func(b []byte) { b[8] ^= 0x01 }},
		{"flipped checksum", func(b []byte) { b[50] ^= 0x01 }},
		{"erased", func(b []byte) {
			for i := range b {
				b[i] = 0xFF
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte(nil), raw...)
			tt.mutate(buf)
			_, err := DecodeHeader(buf)
			assert.ErrorIs(t, err, ErrCorruptRecord)
		})
	}

	_, err = DecodeHeader(raw[:20])
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestCommitMarker(t *testing.T) {
	assert.True(t, IsCommitted(CommitMarker()))
	assert.True(t, IsCommitted(Pad(CommitMarker(), 16, 0xFF)))

	torn := CommitMarker()
	torn[7] = 0xFF
	assert.False(t, IsCommitted(torn))
	assert.False(t, IsCommitted(bytes.Repeat([]byte{0xFF}, 8)))
	assert.False(t, IsCommitted([]byte("ITS")))

	m := CommitMarker()
	m[0] = 'X'
	assert.True(t, IsCommitted(CommitMarker()), "returned marker is a copy")
}

func TestEntry(t *testing.T) {
	e := sampleEntry()
	raw := EncodeEntry(e)
	require.Len(t, raw, types.EntrySize)

	got, err := DecodeEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, uint32(16), got.FileInfo().SizeCurrent)

	t.Run("transient flags are not persisted", func(t *testing.T) {
		in := sampleEntry()
		in.Flags |= types.FlagCreate | types.FlagTruncate
		out, err := DecodeEntry(EncodeEntry(in))
		require.NoError(t, err)
		assert.Equal(t, types.FlagWriteOnce, out.Flags)
	})

	t.Run("size beyond allocation", func(t *testing.T) {
		in := sampleEntry()
		in.SizeCurrent = 64
		_, err := DecodeEntry(EncodeEntry(in))
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})

	t.Run("unknown kind", func(t *testing.T) {
		in := sampleEntry()
		in.Kind = 9
		_, err := DecodeEntry(EncodeEntry(in))
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})

	t.Run("every single byte flip is detected", func(t *testing.T) {
		for i := 0; i < types.EntrySize; i++ {
			buf := append([]byte(nil), raw...)
			buf[i] ^= 0x10
			_, err := DecodeEntry(buf)
			assert.ErrorIs(t, err, ErrCorruptRecord, "offset %d", i)
		}
	})

	t.Run("torn entry", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0xFF}, types.EntrySize)
		copy(buf, raw[:types.EntrySize/2])
		_, err := DecodeEntry(buf)
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
}

func TestPadAndErased(t *testing.T) {
	rec := []byte{1, 2, 3}
	assert.Equal(t, []byte{1, 2, 3, 0xFF}, Pad(rec, 4, 0xFF))
	assert.Equal(t, rec, Pad(rec, 1, 0xFF))
	assert.Len(t, Pad(make([]byte, types.EntrySize), 64, 0xFF), 128)

	assert.True(t, IsErased([]byte{0xFF, 0xFF}, 0xFF))
	assert.False(t, IsErased([]byte{0xFF, 0xFE}, 0xFF))
	assert.True(t, IsErased(nil, 0x00))
}

func TestRecordRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("header round trip", prop.ForAll(
		func(gen64 uint64, id []byte, blockSize, pu, slot uint32) bool {
			h := Header{Generation: gen64, BlockSize: blockSize, ProgramUnit: pu, SlotSize: slot}
			copy(h.StoreID[:], id)
			got, err := DecodeHeader(EncodeHeader(h))
			return err == nil && got == h
		},
		gen.UInt64(),
		gen.SliceOfN(16, gen.UInt8()),
		gen.UInt32(),
		gen.UInt32(),
		gen.UInt32(),
	))

	properties.Property("entry round trip", prop.ForAll(
		func(owner int32, uid uint64, flags uint16, sizeMax, used uint32, offset uint32, nonce, tag []byte) bool {
			e := Entry{
				Kind:          types.EntryKindFile,
				FID:           types.NewFileID(owner, uid),
				Flags:         types.CreateFlags(flags),
				SizeMax:       sizeMax,
				SizeCurrent:   used,
				DataOffset:    offset,
				PlaintextSize: used,
			}
			if sizeMax < ^uint32(0) {
				e.SizeCurrent = used % (sizeMax + 1)
			}
			copy(e.Nonce[:], nonce)
			copy(e.Tag[:], tag)

			got, err := DecodeEntry(EncodeEntry(e))
			return err == nil && got == e
		},
		gen.Int32(),
		gen.UInt64(),
		gen.UInt16(),
		gen.UInt32(),
		gen.UInt32(),
		gen.UInt32(),
		gen.SliceOfN(types.NonceSize, gen.UInt8()),
		gen.SliceOfN(types.TagSize, gen.UInt8()),
	))

	properties.TestingRun(t)
}
