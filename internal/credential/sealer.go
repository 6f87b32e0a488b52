// Package credential seals organizer gateway secrets at rest with
// NaCl secretbox.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrEmptyKey  = errors.New("credential: empty sealing key")
	ErrMalformed = errors.New("credential: sealed value is malformed")
	ErrOpen      = errors.New("credential: cannot open sealed value")
)

// Sealer encrypts and authenticates short secrets.  The 32-byte box key is
// the SHA-256 of the configured passphrase.
type Sealer struct {
	key [32]byte
}

func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}
	return &Sealer{key: sha256.Sum256([]byte(passphrase))}, nil
}

// Seal returns nonce || box.
func (s *Sealer) Seal(plain string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrOpen
	}
	return string(out), nil
}

// ValidPublicKey reports whether k looks like a gateway public key.
func ValidPublicKey(k string) bool {
	return strings.HasPrefix(k, "pk_test_") || strings.HasPrefix(k, "pk_live_")
}

// ValidSecretKey reports whether k looks like a gateway secret key.
func ValidSecretKey(k string) bool {
	return strings.HasPrefix(k, "sk_test_") || strings.HasPrefix(k, "sk_live_")
}
