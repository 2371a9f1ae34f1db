// Package flash implements the flash block abstraction of the trusted
// storage engine together with software flash drivers.
package flash

import "errors"

var (
	// ErrInvalidAddress is returned for accesses outside the device or block.
	ErrInvalidAddress = errors.New("invalid flash address")

	// ErrMisalignedAccess is returned for writes not aligned to the program
	// unit and erases not aligned to a sector.
	ErrMisalignedAccess = errors.New("misaligned flash access")

	// ErrProgramConflict is returned when a program operation would have to
	// move a bit back to the erased value.
	ErrProgramConflict = errors.New("program over non-erased flash")

	// ErrPowerLoss is returned by FaultyDriver once the simulated supply is cut.
	ErrPowerLoss = errors.New("simulated power loss")
)

// programBytes applies NOR programming rules of data onto mem. Nothing is
// modified if any byte conflicts.
func programBytes(mem, data []byte, erased byte) error {
	for i, d := range data {
		if _, ok := programByte(mem[i], d, erased); !ok {
			return ErrProgramConflict
		}
	}
	for i, d := range data {
		mem[i], _ = programByte(mem[i], d, erased)
	}
	return nil
}

func programByte(old, d, erased byte) (byte, bool) {
	switch erased {
	case 0xFF:
		n := old & d
		return n, n == d
	case 0x00:
		n := old | d
		return n, n == d
	default:
		return d, old == erased || old == d
	}
}

func fill(buf []byte, v byte) {
	for i := range buf {
		buf[i] = v
	}
}
