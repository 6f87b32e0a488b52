package credential

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	t.Parallel()

	s, err := NewSealer("correct horse")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	a, err := s.Seal("sk_test_secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, _ := s.Seal("sk_test_secret")
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same secret must differ")
	}
	if bytes.Contains(a, []byte("sk_test_secret")) {
		t.Fatal("sealed value leaks plaintext")
	}
	got, err := s.Open(a)
	if err != nil || got != "sk_test_secret" {
		t.Fatalf("Open = %q, %v", got, err)
	}
}

func TestOpenRejectsTamperingAndWrongKey(t *testing.T) {
	t.Parallel()

	s, _ := NewSealer("k1")
	other, _ := NewSealer("k2")
	sealed, _ := s.Seal("sk_live_x")

	if _, err := other.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Fatalf("wrong key: %v", err)
	}
	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 1
	if _, err := s.Open(tampered); !errors.Is(err, ErrOpen) {
		t.Fatalf("tampered: %v", err)
	}
	if _, err := s.Open([]byte("short")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("short: %v", err)
	}
	if _, err := NewSealer(""); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("empty key: %v", err)
	}
}

func TestKeyPrefixes(t *testing.T) {
	t.Parallel()

	if !ValidPublicKey("pk_test_1") || !ValidPublicKey("pk_live_1") || ValidPublicKey("sk_test_1") {
		t.Fatal("public key prefix check wrong")
	}
	if !ValidSecretKey("sk_test_1") || ValidSecretKey("pk_test_1") {
		t.Fatal("secret key prefix check wrong")
	}
}
