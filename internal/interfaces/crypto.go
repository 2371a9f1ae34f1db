// File: internal/interfaces/crypto.go
package interfaces

// CryptoHAL is the hardware crypto capability. Keys are derived inside the
// provider from a root key slot and never leave it.
type CryptoHAL interface {
	// DeriveAndSeal derives a key from the root key and label, then seals
	// plaintext into ciphertext (same length) and returns the tag
	DeriveAndSeal(label, nonce, ad, plaintext, ciphertext []byte) (tag []byte, err error)

	// DeriveAndOpen is the inverse of DeriveAndSeal. A tag mismatch must be
	// reported as types.ErrAuthenticationFailure.
	DeriveAndOpen(label, nonce, ad, ciphertext, tag, plaintext []byte) error

	// GenerateNonceSeed returns fresh random seed material. It is called
	// once per boot.
	GenerateNonceSeed(size int) ([]byte, error)
}
