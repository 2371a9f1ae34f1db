package flash

import (
	"bytes"
	"sync"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
)

// FaultyDriver wraps a driver and cuts the simulated power supply at a chosen
// program or erase operation. The failing program is torn: only the first
// half of its program units reach the flash. After the cut every operation
// fails with ErrPowerLoss.
type FaultyDriver struct {
	mu         sync.Mutex
	inner      interfaces.FlashDriver
	ops        int
	failAt     int
	dead       bool
	tearErases bool
}

// overwriter is implemented by drivers that can force raw bytes, such as
// RAMDriver.
type overwriter interface {
	Overwrite(addr uint32, data []byte) error
}

var _ interfaces.FlashDriver = (*FaultyDriver)(nil)

// NewFaultyDriver wraps inner without any armed fault
func NewFaultyDriver(inner interfaces.FlashDriver) *FaultyDriver {
	return &FaultyDriver{inner: inner, failAt: -1}
}

// FailAt arms a power cut at the n-th (zero based) mutating operation,
// counted from now. A negative n disarms the fault.
func (f *FaultyDriver) FailAt(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ops = 0
	f.failAt = n
	f.dead = false
}

// TearErases makes the armed erase stop halfway: the first half of the
// sector reads erased and the rest keeps its old contents. Only drivers with
// an Overwrite method can be torn; others see the erase never start.
func (f *FaultyDriver) TearErases(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tearErases = on
}

// Ops returns the number of mutating operations since the last FailAt
func (f *FaultyDriver) Ops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

// Tripped reports whether the power cut happened
func (f *FaultyDriver) Tripped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dead
}

// Info returns the device properties
func (f *FaultyDriver) Info() types.FlashInfo {
	return f.inner.Info()
}

// Read forwards to the wrapped driver while powered
func (f *FaultyDriver) Read(addr uint32, buf []byte) error {
	f.mu.Lock()
	dead := f.dead
	f.mu.Unlock()

	if dead {
		return ErrPowerLoss
	}
	return f.inner.Read(addr, buf)
}

// Program forwards to the wrapped driver, tearing the armed operation
func (f *FaultyDriver) Program(addr uint32, data []byte) error {
	trip, err := f.step()
	if err != nil {
		return err
	}
	if !trip {
		return f.inner.Program(addr, data)
	}

	unit := f.inner.Info().ProgramUnit
	half := types.AlignDown(uint32(len(data))/2, unit)
	if half > 0 {
		_ = f.inner.Program(addr, data[:half])
	}
	return ErrPowerLoss
}

// EraseSector forwards to the wrapped driver. The armed erase never starts
// unless TearErases is on.
func (f *FaultyDriver) EraseSector(addr uint32) error {
	trip, err := f.step()
	if err != nil {
		return err
	}
	if !trip {
		return f.inner.EraseSector(addr)
	}

	f.mu.Lock()
	tear := f.tearErases
	f.mu.Unlock()
	if ow, ok := f.inner.(overwriter); ok && tear {
		info := f.inner.Info()
		_ = ow.Overwrite(addr, bytes.Repeat([]byte{info.ErasedValue}, int(info.SectorSize/2)))
	}
	return ErrPowerLoss
}

func (f *FaultyDriver) step() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dead {
		return false, ErrPowerLoss
	}
	n := f.ops
	f.ops++
	if n == f.failAt {
		f.dead = true
		return true, nil
	}
	return false, nil
}
