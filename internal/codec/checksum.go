package codec

import "encoding/binary"

// Fletcher64 computes the Fletcher-64 checksum over 32-bit little endian
// words. A trailing partial word is zero padded.
func Fletcher64(data []byte) uint64 {
	const mod = uint64(0xFFFFFFFF)
	const chunkWords = 1024

	var sum1, sum2 uint64
	for offset := 0; offset < len(data); offset += chunkWords * 4 {
		end := offset + chunkWords*4
		if end > len(data) {
			end = len(data)
		}

		for i := offset; i < end; i += 4 {
			var word uint32
			if i+4 <= end {
				word = binary.LittleEndian.Uint32(data[i : i+4])
			} else {
				var tail [4]byte
				copy(tail[:], data[i:end])
				word = binary.LittleEndian.Uint32(tail[:])
			}
			sum1 += uint64(word)
			sum2 += sum1
		}

		// reduce per chunk so the sums cannot overflow
		sum1 %= mod
		sum2 %= mod
	}

	return sum2<<32 | sum1
}
