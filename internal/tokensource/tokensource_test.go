package tokensource

import (
	"context"
	"testing"
	"time"

	"github.com/foldnet/gameserver/internal/domain"
)

type fakeAuthority struct {
	fetches int
	cred    domain.Credential
	err     error
}

func (f *fakeAuthority) Fetch(ctx context.Context) (domain.Credential, error) {
	f.fetches++
	return f.cred, f.err
}

func TestSourceCachesUntilNearExpiry(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	auth := &fakeAuthority{cred: domain.Credential{Token: "a", ExpiresAt: now.Add(time.Hour).Unix()}}
	src := New(auth)
	src.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		cred, err := src.Token(context.Background())
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		if cred.Token != "a" {
			t.Fatalf("expected token a, got %s", cred.Token)
		}
	}
	if auth.fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", auth.fetches)
	}
}

func TestSourceRefreshesWithinRefreshWindow(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	auth := &fakeAuthority{cred: domain.Credential{Token: "a", ExpiresAt: now.Add(3 * time.Minute).Unix()}}
	src := New(auth)
	src.now = func() time.Time { return now }

	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	auth.cred = domain.Credential{Token: "b", ExpiresAt: now.Add(time.Hour).Unix()}

	cred, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if cred.Token != "b" {
		t.Fatalf("expected refreshed token b, got %s", cred.Token)
	}
	if auth.fetches != 2 {
		t.Fatalf("expected 2 fetches, got %d", auth.fetches)
	}
}

func TestSourcePropagatesFetchError(t *testing.T) {
	auth := &fakeAuthority{err: domain.ErrAuth}
	src := New(auth)

	if _, err := src.Token(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
