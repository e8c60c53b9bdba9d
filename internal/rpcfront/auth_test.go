package rpcfront

import (
	"context"
	"testing"

	"github.com/foldnet/gameserver/internal/domain"
	"google.golang.org/grpc/metadata"
)

type fixedAuthenticator domain.Credential

func (a fixedAuthenticator) Token(ctx context.Context) (domain.Credential, error) {
	return domain.Credential(a), nil
}

func TestCheckAuthRejectsMissingMetadata(t *testing.T) {
	s := &Server{auth: fixedAuthenticator{Token: "secret"}}
	if err := s.checkAuth(context.Background()); err == nil {
		t.Fatal("expected error without authorization metadata")
	}
}

func TestCheckAuthRejectsWrongToken(t *testing.T) {
	s := &Server{auth: fixedAuthenticator{Token: "secret"}}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(authorizationMetadataKey, "Bearer wrong"))
	if err := s.checkAuth(ctx); err == nil {
		t.Fatal("expected error for mismatched bearer token")
	}
}

func TestCheckAuthAcceptsMatchingToken(t *testing.T) {
	s := &Server{auth: fixedAuthenticator{Token: "secret"}}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(authorizationMetadataKey, "Bearer secret"))
	if err := s.checkAuth(ctx); err != nil {
		t.Fatalf("expected matching token to pass, got %v", err)
	}
}
