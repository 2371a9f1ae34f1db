package crypto

import (
	"fmt"

	"github.com/deploymenttheory/go-its/internal/interfaces"
	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/sirupsen/logrus"
)

// Layer encrypts file contents before they reach the filesystem and
// authenticates them on the way back
type Layer struct {
	hal    interfaces.CryptoHAL
	nonces *NonceGenerator
	log    logrus.FieldLogger
}

// NewLayer creates an encryption layer. It draws the boot nonce seed.
func NewLayer(hal interfaces.CryptoHAL, log logrus.FieldLogger) (*Layer, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	nonces, err := NewNonceGenerator(hal)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise nonce generator: %w", err)
	}
	return &Layer{hal: hal, nonces: nonces, log: log}, nil
}

// Seal encrypts plaintext into ciphertext and records the nonce, tag and
// plaintext size in info. info.Flags must already hold the flags that will
// be persisted.
func (l *Layer) Seal(fid types.FileID, info *types.FileInfo, plaintext, ciphertext []byte) error {
	nonce, err := l.nonces.Next()
	if err != nil {
		return err
	}

	ctx, err := l.context(fid, nonce, info.Flags, uint64(len(plaintext)))
	if err != nil {
		return err
	}
	tag, err := ctx.Encrypt(plaintext, ciphertext)
	if err != nil {
		return err
	}

	info.Nonce = nonce
	info.Tag = tag
	info.PlaintextSize = uint32(len(plaintext))
	return nil
}

// Open authenticates and decrypts ciphertext read for fid using the nonce,
// tag and flags in info
func (l *Layer) Open(fid types.FileID, info types.FileInfo, ciphertext, plaintext []byte) error {
	if info.PlaintextSize != uint32(len(ciphertext)) {
		clear(plaintext)
		return fmt.Errorf("%w: plaintext size %d does not match stored size %d", types.ErrAuthenticationFailure, info.PlaintextSize, len(ciphertext))
	}

	ctx, err := l.context(fid, info.Nonce, info.Flags, uint64(len(ciphertext)))
	if err != nil {
		return err
	}
	if err := ctx.Decrypt(ciphertext, info.Tag, plaintext); err != nil {
		l.log.WithField("fid", fid.String()).Warn("stored asset failed authentication")
		return err
	}
	return nil
}

func (l *Layer) context(fid types.FileID, nonce [types.NonceSize]byte, flags types.CreateFlags, size uint64) (*CryptContext, error) {
	ctx := NewCryptContext(l.hal)
	if err := ctx.SetDerivLabel(fid[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrGenericError, err)
	}
	if err := ctx.SetNonce(nonce[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrGenericError, err)
	}
	if err := ctx.SetAD(AdditionalData(fid, flags, size)); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrGenericError, err)
	}
	return ctx, nil
}
