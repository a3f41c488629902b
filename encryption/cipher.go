package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names a supported AEAD.
type Algorithm string

const (
	// AlgorithmAESGCM is AES-256-GCM, the default.
	AlgorithmAESGCM Algorithm = "aes-256-gcm"
	// AlgorithmChaCha20 is ChaCha20-Poly1305, faster without AES hardware.
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// ErrOpen is returned when sealed data fails authentication, usually
// because it was written with another key.
var ErrOpen = stderrors.New("encryption: message authentication failed")

// Cipher seals and opens byte slices.
type Cipher struct {
	alg  Algorithm
	aead cipher.AEAD
}

// New derives a key from passphrase and returns a Cipher for alg. An
// empty alg selects AES-256-GCM.
func New(passphrase string, alg Algorithm) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption: passphrase is required")
	}
	key := sha256.Sum256([]byte(passphrase))

	var (
		aead cipher.AEAD
		err  error
	)
	switch alg {
	case "", AlgorithmAESGCM:
		alg = AlgorithmAESGCM
		var block cipher.Block
		if block, err = aes.NewCipher(key[:]); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(key[:])
	default:
		return nil, fmt.Errorf("encryption: unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: create %s: %w", alg, err)
	}
	return &Cipher{alg: alg, aead: aead}, nil
}

// Algorithm returns the cipher's algorithm.
func (c *Cipher) Algorithm() Algorithm { return c.alg }

// Seal encrypts plaintext and returns nonce || ciphertext.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(sealed) < n+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: input too short", ErrOpen)
	}
	plaintext, err := c.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}
