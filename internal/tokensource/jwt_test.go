package tokensource

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"
)

func generateTestKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func TestJWTFetchProducesThreePartToken(t *testing.T) {
	pemKey := generateTestKey(t)
	auth, err := NewJWT(ServiceAccountKey{ClientEmail: "svc@example.com", PrivateKey: pemKey})
	if err != nil {
		t.Fatalf("new jwt: %v", err)
	}

	cred, err := auth.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if parts := strings.Split(cred.Token, "."); len(parts) != 3 {
		t.Fatalf("expected 3-part JWT, got %d parts", len(parts))
	}
}

func TestJWTFetchSetsOneHourExpiry(t *testing.T) {
	pemKey := generateTestKey(t)
	auth, err := NewJWT(ServiceAccountKey{ClientEmail: "svc@example.com", PrivateKey: pemKey})
	if err != nil {
		t.Fatalf("new jwt: %v", err)
	}
	fixedNow := time.Unix(2_000_000, 0)
	auth.now = func() time.Time { return fixedNow }

	cred, err := auth.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	wantExpiry := fixedNow.Unix() + 3600
	if cred.ExpiresAt != wantExpiry {
		t.Fatalf("expected expiry %d, got %d", wantExpiry, cred.ExpiresAt)
	}
}

func TestJWTFetchRejectsInvalidKey(t *testing.T) {
	_, err := NewJWT(ServiceAccountKey{ClientEmail: "svc@example.com", PrivateKey: "not a key"})
	if err == nil {
		t.Fatal("expected error for invalid key")
	}
}
