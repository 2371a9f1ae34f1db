package crypto

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
)

// CryptContext collects the parameters of one AEAD operation. The derivation
// label, nonce and additional data must all be set before Encrypt or Decrypt.
type CryptContext struct {
	hal   interfaces.CryptoHAL
	label []byte
	nonce []byte
	ad    []byte
}

// NewCryptContext returns an empty context bound to hal
func NewCryptContext(hal interfaces.CryptoHAL) *CryptContext {
	return &CryptContext{hal: hal}
}

// SetDerivLabel sets the label mixed into the key derivation
func (c *CryptContext) SetDerivLabel(label []byte) error {
	if len(label) == 0 {
		return fmt.Errorf("%w: empty derivation label", types.ErrInvalidArgument)
	}
	c.label = append(c.label[:0], label...)
	return nil
}

// SetNonce sets the AEAD nonce
func (c *CryptContext) SetNonce(nonce []byte) error {
	if len(nonce) != types.NonceSize {
		return fmt.Errorf("%w: nonce must be %d bytes, got %d", types.ErrInvalidArgument, types.NonceSize, len(nonce))
	}
	c.nonce = append(c.nonce[:0], nonce...)
	return nil
}

// SetAD sets the additional authenticated data
func (c *CryptContext) SetAD(ad []byte) error {
	if len(ad) == 0 {
		return fmt.Errorf("%w: empty additional data", types.ErrInvalidArgument)
	}
	c.ad = append(c.ad[:0], ad...)
	return nil
}

func (c *CryptContext) complete() error {
	switch {
	case c.label == nil:
		return fmt.Errorf("%w: derivation label not set", types.ErrGenericError)
	case c.nonce == nil:
		return fmt.Errorf("%w: nonce not set", types.ErrGenericError)
	case c.ad == nil:
		return fmt.Errorf("%w: additional data not set", types.ErrGenericError)
	}
	return nil
}

// Encrypt seals plaintext into ciphertext and returns the tag
func (c *CryptContext) Encrypt(plaintext, ciphertext []byte) ([types.TagSize]byte, error) {
	var tag [types.TagSize]byte
	if err := c.complete(); err != nil {
		return tag, err
	}
	t, err := c.hal.DeriveAndSeal(c.label, c.nonce, c.ad, plaintext, ciphertext)
	if err != nil {
		return tag, fmt.Errorf("failed to encrypt: %w", err)
	}
	if len(t) != types.TagSize {
		return tag, fmt.Errorf("%w: crypto provider returned a %d byte tag", types.ErrGenericError, len(t))
	}
	copy(tag[:], t)
	return tag, nil
}

// Decrypt opens ciphertext into plaintext. plaintext is zeroed on failure.
func (c *CryptContext) Decrypt(ciphertext []byte, tag [types.TagSize]byte, plaintext []byte) error {
	if err := c.complete(); err != nil {
		return err
	}
	if err := c.hal.DeriveAndOpen(c.label, c.nonce, c.ad, ciphertext, tag[:], plaintext); err != nil {
		clear(plaintext)
		return fmt.Errorf("failed to decrypt: %w", err)
	}
	return nil
}
