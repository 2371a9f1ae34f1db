package flash

import (
	"fmt"
	"sync"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
)

// RAMDriver emulates a NOR flash device in memory
type RAMDriver struct {
	mu   sync.Mutex
	mem  []byte
	info types.FlashInfo
}

var _ interfaces.FlashDriver = (*RAMDriver)(nil)

// NewRAMDriver creates an erased in-memory flash device
func NewRAMDriver(info types.FlashInfo) (*RAMDriver, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}
	mem := make([]byte, info.Size)
	fill(mem, info.ErasedValue)
	return &RAMDriver{mem: mem, info: info}, nil
}

func validateInfo(info types.FlashInfo) error {
	if info.SectorSize == 0 || info.ProgramUnit == 0 {
		return fmt.Errorf("sector size and program unit must be non-zero")
	}
	if info.Size == 0 || info.Size%info.SectorSize != 0 {
		return fmt.Errorf("device size %d is not a multiple of sector size %d", info.Size, info.SectorSize)
	}
	if info.SectorSize%info.ProgramUnit != 0 {
		return fmt.Errorf("sector size %d is not a multiple of program unit %d", info.SectorSize, info.ProgramUnit)
	}
	return nil
}

// Info returns the device properties
func (r *RAMDriver) Info() types.FlashInfo {
	return r.info
}

// Read copies device memory into buf
func (r *RAMDriver) Read(addr uint32, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(addr, len(buf)) {
		return ErrInvalidAddress
	}
	copy(buf, r.mem[addr:])
	return nil
}

// Program writes data following NOR rules
func (r *RAMDriver) Program(addr uint32, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(addr, len(data)) {
		return ErrInvalidAddress
	}
	if addr%r.info.ProgramUnit != 0 || uint32(len(data))%r.info.ProgramUnit != 0 {
		return ErrMisalignedAccess
	}
	return programBytes(r.mem[addr:addr+uint32(len(data))], data, r.info.ErasedValue)
}

// EraseSector erases the sector starting at addr
func (r *RAMDriver) EraseSector(addr uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if addr%r.info.SectorSize != 0 {
		return ErrMisalignedAccess
	}
	if !r.inRange(addr, int(r.info.SectorSize)) {
		return ErrInvalidAddress
	}
	fill(r.mem[addr:addr+r.info.SectorSize], r.info.ErasedValue)
	return nil
}

// Snapshot returns a copy of the whole device contents
func (r *RAMDriver) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, len(r.mem))
	copy(out, r.mem)
	return out
}

// Restore replaces the device contents with a previous snapshot
func (r *RAMDriver) Restore(snapshot []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snapshot) != len(r.mem) {
		return fmt.Errorf("snapshot size %d does not match device size %d", len(snapshot), len(r.mem))
	}
	copy(r.mem, snapshot)
	return nil
}

// Corrupt XORs mask into the byte at addr, bypassing programming rules. It
// models an attacker or a failing cell.
func (r *RAMDriver) Corrupt(addr uint32, mask byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(addr, 1) {
		return ErrInvalidAddress
	}
	r.mem[addr] ^= mask
	return nil
}

// Overwrite replaces bytes at addr, bypassing programming rules
func (r *RAMDriver) Overwrite(addr uint32, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(addr, len(data)) {
		return ErrInvalidAddress
	}
	copy(r.mem[addr:], data)
	return nil
}

func (r *RAMDriver) inRange(addr uint32, n int) bool {
	return uint64(addr)+uint64(n) <= uint64(len(r.mem))
}
