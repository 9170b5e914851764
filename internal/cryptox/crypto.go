// Package cryptox implements the payload cipher (AES-256-GCM with 128-bit
// nonces) and the envelope key vault that protects per-file data keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length used for data keys and wrapping keys.
	KeySize = common.DataKeySize
	// NonceSize is the GCM nonce length. 16 bytes rather than Go's default 12.
	NonceSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
	// SaltSize is the PBKDF2 salt length used by envelope wrapping.
	SaltSize = 32
	// MinIterations is the lowest PBKDF2 iteration count accepted.
	MinIterations = 100_000
)

// ErrInvalidKey is returned when a key is not KeySize bytes long.
var ErrInvalidKey = errors.New("invalid key size")

// DeriveMasterKey derives a KeySize-byte key from password and salt with
// PBKDF2-HMAC-SHA256. The result is deterministic for identical inputs.
func DeriveMasterKey(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// Seal encrypts plaintext under key with AES-256-GCM.
//
// A fresh random NonceSize-byte nonce is drawn for every call. The GCM tag is
// split from the end of the sealed output and returned separately, so the
// ciphertext has the same length as plaintext.
//
// Example:
//
//	key, _ := vault.NewDataKey()
//	ct, nonce, tag, err := cryptox.Seal([]byte("hello"), key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pt, err := cryptox.Open(ct, key, nonce, tag)
func Seal(plaintext, key []byte) (ciphertext, nonce, tag []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce, err = common.GenerateRandByteArray(NonceSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return sealed[:split:split], nonce, sealed[split:], nil
}

// Open authenticates and decrypts ciphertext produced by Seal.
//
// Any modification of ciphertext, nonce or tag yields common.ErrIntegrity and
// no plaintext is returned.
func Open(ciphertext, key, nonce, tag []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return nil, common.ErrIntegrity
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, common.ErrIntegrity
	}
	return plaintext, nil
}
