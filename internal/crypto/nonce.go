package crypto

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
)

// NonceSeedSize is the size of the per-boot random part of a nonce
const NonceSeedSize = 8

// NonceGenerator produces nonces made of a random per-boot seed followed by
// a 32-bit counter. Nonces are unique within a boot; the generator refuses
// to wrap the counter.
type NonceGenerator struct {
	mu        sync.Mutex
	seed      [NonceSeedSize]byte
	counter   uint32
	exhausted bool
}

// NewNonceGenerator draws a fresh seed from hal
func NewNonceGenerator(hal interfaces.CryptoHAL) (*NonceGenerator, error) {
	seed, err := hal.GenerateNonceSeed(NonceSeedSize)
	if err != nil {
		return nil, err
	}
	if len(seed) != NonceSeedSize {
		return nil, fmt.Errorf("%w: nonce seed of %d bytes", types.ErrGenericError, len(seed))
	}
	g := &NonceGenerator{}
	copy(g.seed[:], seed)
	return g, nil
}

// Next returns the next nonce
func (g *NonceGenerator) Next() ([types.NonceSize]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var nonce [types.NonceSize]byte
	if g.exhausted {
		return nonce, fmt.Errorf("%w: nonce counter exhausted", types.ErrGenericError)
	}
	copy(nonce[:], g.seed[:])
	binary.LittleEndian.PutUint32(nonce[NonceSeedSize:], g.counter)

	if g.counter == math.MaxUint32 {
		g.exhausted = true
	} else {
		g.counter++
	}
	return nonce, nil
}
