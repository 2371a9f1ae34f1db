// Package crypto implements authenticated encryption of stored assets. Keys
// are derived per file from a hardware unique root key (HUK) held by a
// CryptoHAL; this package ships a software HAL backed by HKDF-SHA256 and
// ChaCha20-Poly1305.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// RootKeySize is the size of the hardware unique key in bytes
const RootKeySize = 32

// keyLabel prefixes every derivation label
const keyLabel = "ITS_ENCRYPTION_KEY"

// SoftwareHAL emulates a crypto accelerator holding the root key
type SoftwareHAL struct {
	huk  [RootKeySize]byte
	rand io.Reader
}

var _ interfaces.CryptoHAL = (*SoftwareHAL)(nil)

// NewSoftwareHAL creates a HAL around a copy of huk
func NewSoftwareHAL(huk []byte) (*SoftwareHAL, error) {
	if len(huk) != RootKeySize {
		return nil, fmt.Errorf("%w: root key must be %d bytes, got %d", types.ErrInvalidArgument, RootKeySize, len(huk))
	}
	h := &SoftwareHAL{rand: rand.Reader}
	copy(h.huk[:], huk)
	return h, nil
}

// ParseRootKey decodes a hex encoded root key
func ParseRootKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode root key: %w", err)
	}
	if len(key) != RootKeySize {
		return nil, fmt.Errorf("%w: root key must be %d bytes, got %d", types.ErrInvalidArgument, RootKeySize, len(key))
	}
	return key, nil
}

// ReadRootKey loads a root key file holding either raw or hex encoded bytes
func ReadRootKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read root key file: %w", err)
	}
	if len(data) == RootKeySize {
		return data, nil
	}
	return ParseRootKey(string(data))
}

// DeriveAndSeal encrypts plaintext into ciphertext under a key derived from
// the root key and label
func (h *SoftwareHAL) DeriveAndSeal(label, nonce, ad, plaintext, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < len(plaintext) {
		return nil, fmt.Errorf("%w: ciphertext buffer of %d bytes for %d byte plaintext", types.ErrBufferTooSmall, len(ciphertext), len(plaintext))
	}
	aead, err := h.derive(label)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", types.ErrInvalidArgument, aead.NonceSize())
	}

	sealed := aead.Seal(make([]byte, 0, len(plaintext)+aead.Overhead()), nonce, plaintext, ad)
	n := copy(ciphertext, sealed[:len(plaintext)])
	tag := append([]byte(nil), sealed[n:]...)
	clear(sealed)
	return tag, nil
}

// DeriveAndOpen decrypts ciphertext into plaintext. On authentication
// failure plaintext is zeroed.
func (h *SoftwareHAL) DeriveAndOpen(label, nonce, ad, ciphertext, tag, plaintext []byte) error {
	if len(plaintext) < len(ciphertext) {
		return fmt.Errorf("%w: plaintext buffer of %d bytes for %d byte ciphertext", types.ErrBufferTooSmall, len(plaintext), len(ciphertext))
	}
	aead, err := h.derive(label)
	if err != nil {
		return err
	}
	if len(nonce) != aead.NonceSize() || len(tag) != aead.Overhead() {
		return fmt.Errorf("%w: nonce or tag has the wrong size", types.ErrInvalidArgument)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(append(sealed, ciphertext...), tag...)
	out, err := aead.Open(sealed[:0], nonce, sealed, ad)
	if err != nil {
		clear(sealed)
		clear(plaintext)
		return fmt.Errorf("failed to open sealed data: %w", types.ErrAuthenticationFailure)
	}
	copy(plaintext, out)
	clear(sealed)
	return nil
}

// GenerateNonceSeed returns size random bytes
func (h *SoftwareHAL) GenerateNonceSeed(size int) ([]byte, error) {
	seed := make([]byte, size)
	if _, err := io.ReadFull(h.rand, seed); err != nil {
		return nil, fmt.Errorf("failed to generate nonce seed: %w: %w", types.ErrHardwareFailure, err)
	}
	return seed, nil
}

func (h *SoftwareHAL) derive(label []byte) (cipher.AEAD, error) {
	info := make([]byte, 0, len(keyLabel)+len(label))
	info = append(append(info, keyLabel...), label...)

	key := make([]byte, chacha20poly1305.KeySize)
	defer clear(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, h.huk[:], nil, info), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w: %w", types.ErrGenericError, err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w: %w", types.ErrGenericError, err)
	}
	return aead, nil
}
