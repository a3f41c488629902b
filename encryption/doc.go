// Package encryption seals data at rest with an AEAD cipher.
//
// Keys are derived from a passphrase with SHA-256. Sealed output is the
// random nonce followed by the ciphertext, so each Seal of the same
// plaintext differs:
//
//	c, err := encryption.New(passphrase, encryption.AlgorithmChaCha20)
//	sealed, err := c.Seal(data)
//	data, err = c.Open(sealed)
package encryption
