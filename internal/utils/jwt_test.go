package utils

import (
    "crypto/rand"
    "crypto/rsa"
    "crypto/x509"
    "encoding/pem"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenClaims(t *testing.T) {
    t.Parallel()

    tok, err := NewAccessToken("s3cret", "user-1", "ada@example.com", "Ada", time.Hour)
    if err != nil {
        t.Fatalf("NewAccessToken: %v", err)
    }
    parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil },
        jwt.WithValidMethods([]string{"HS256"}))
    if err != nil || !parsed.Valid {
        t.Fatalf("parse: %v", err)
    }
    cl := parsed.Claims.(jwt.MapClaims)
    if cl["sub"] != "user-1" || cl["email"] != "ada@example.com" || cl["name"] != "Ada" {
        t.Fatalf("claims = %v", cl)
    }
    if _, err := NewAccessToken("", "user-1", "", "", time.Hour); err == nil {
        t.Fatal("empty secret accepted")
    }
}

func writeKey(t *testing.T) (string, *rsa.PrivateKey) {
    t.Helper()
    key, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil {
        t.Fatal(err)
    }
    der, err := x509.MarshalPKCS8PrivateKey(key)
    if err != nil {
        t.Fatal(err)
    }
    path := filepath.Join(t.TempDir(), "meeting.pk")
    if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600); err != nil {
        t.Fatal(err)
    }
    return path, key
}

func TestMeetingTokenClaims(t *testing.T) {
    t.Parallel()

    path, key := writeKey(t)
    signer, err := NewMeetingSigner(path, "vpaas-magic-cookie-test", "vpaas-magic-cookie-test/abc")
    if err != nil {
        t.Fatalf("NewMeetingSigner: %v", err)
    }
    fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    signer.now = func() time.Time { return fixed }

    tok, err := signer.Sign("ev1", MeetingUser{ID: "u1", Name: "Ada", Moderator: true})
    if err != nil {
        t.Fatalf("Sign: %v", err)
    }
    if !tok.Exp.Equal(fixed.Add(time.Hour)) {
        t.Fatalf("exp = %v", tok.Exp)
    }

    parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
        jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
    if err != nil {
        t.Fatalf("parse: %v", err)
    }
    cl := parsed.Claims.(jwt.MapClaims)
    if cl["aud"] != "jitsi" || cl["sub"] != "8x8.vc" || cl["iss"] != "vpaas-magic-cookie-test" || cl["room"] != "adas-event-ev1" {
        t.Fatalf("claims = %v", cl)
    }
    if parsed.Header["kid"] != "vpaas-magic-cookie-test/abc" {
        t.Fatalf("kid = %v", parsed.Header["kid"])
    }
    user := cl["context"].(map[string]any)["user"].(map[string]any)
    if user["moderator"] != true || user["name"] != "Ada" {
        t.Fatalf("context user = %v", user)
    }
}

func TestLoadRSAPrivateKeyErrors(t *testing.T) {
    t.Parallel()

    if _, err := LoadRSAPrivateKey(filepath.Join(t.TempDir(), "missing.pk")); err == nil {
        t.Fatal("missing file accepted")
    }
    bad := filepath.Join(t.TempDir(), "bad.pk")
    _ = os.WriteFile(bad, []byte("not a key"), 0o600)
    if _, err := LoadRSAPrivateKey(bad); err == nil {
        t.Fatal("garbage accepted")
    }
}
