package rpcfront

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/foldnet/gameserver/internal/domain"
)

// Authenticator is the subset of tokensource.Source this server depends
// on: the current bearer credential, refreshed as needed.
type Authenticator interface {
	Token(ctx context.Context) (domain.Credential, error)
}

const authorizationMetadataKey = "authorization"

func (s *Server) checkAuth(ctx context.Context) error {
	cred, err := s.auth.Token(ctx)
	if err != nil {
		return status.Error(codes.Unauthenticated, "authenticator unavailable")
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	values := md.Get(authorizationMetadataKey)
	if len(values) == 0 || values[0] != "Bearer "+cred.Token {
		return status.Error(codes.Unauthenticated, "invalid bearer token")
	}
	return nil
}

func (s *Server) authUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if err := s.checkAuth(ctx); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (s *Server) authStream(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := s.checkAuth(stream.Context()); err != nil {
		return err
	}
	return handler(srv, stream)
}
