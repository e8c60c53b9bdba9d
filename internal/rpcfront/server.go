// Package rpcfront is a minimal gRPC front end demonstrating that the
// version façade can sit behind any transport, not just an HTTP
// handler: actions and queries travel as opaque bytes wrapped in
// wrapperspb.BytesValue, so the service needs no generated .proto stubs
// — every envelope variant this server carries is already a
// self-describing, versioned blob by the time it reaches here.
package rpcfront

import (
	"context"
	"fmt"
	"net"

	"github.com/foldnet/gameserver/internal/action"
	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/logging"
	"github.com/foldnet/gameserver/internal/observability"
	"github.com/foldnet/gameserver/internal/query"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ActionHandler is the subset of action.Handler this server depends on.
type ActionHandler interface {
	Handle(ctx context.Context, moduleID domain.ModuleId, request domain.ActionBlob) (domain.ResponseBlob, error)
}

// Server exposes action append and query subscription over gRPC.
type Server struct {
	actions  ActionHandler
	queryRun query.Runner
	join     action.Joiner
	auth     Authenticator
	server   *grpc.Server
}

// Option configures optional Server behavior.
type Option func(*Server)

// WithAuthenticator requires every incoming call to present an
// "authorization: Bearer <token>" header matching auth's current
// credential, the same credential a tokensource.Source hands out to
// this host's own clients. This lets a single token source double as
// the shared bearer secret between a deployment's gRPC clients and its
// gameserver daemon, instead of managing a separate credential.
func WithAuthenticator(auth Authenticator) Option {
	return func(s *Server) { s.auth = auth }
}

// New constructs a Server. Unary Act calls go through actions, which
// observes the fold itself; join is the snapshot source behind
// streaming Query calls.
func New(actions ActionHandler, queryRun query.Runner, join action.Joiner, opts ...Option) *Server {
	s := &Server{actions: actions, queryRun: queryRun, join: join}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpcfront: listen: %w", err)
	}

	var serverOpts []grpc.ServerOption
	if s.auth != nil {
		serverOpts = append(serverOpts,
			grpc.UnaryInterceptor(s.authUnary),
			grpc.StreamInterceptor(s.authStream),
		)
	}

	s.server = grpc.NewServer(serverOpts...)
	s.server.RegisterService(&serviceDesc, s)

	logging.Op().Info("rpcfront server started", "addr", addr)

	go func() {
		if err := s.server.Serve(lis); err != nil {
			logging.Op().Error("rpcfront server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	if s.server != nil {
		s.server.GracefulStop()
	}
}

// Act appends req.Value as an action against the module named by the
// "module_id" gRPC metadata key and returns the fold's response to it.
func (s *Server) Act(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	ctx = traceContextFromIncoming(ctx)

	moduleID, err := moduleIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.actions.Handle(ctx, moduleID, domain.ActionBlob(req.GetValue()))
	if err != nil {
		logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).
			Error("act failed", "module_id", moduleID, "error", err)
		return nil, translateError(err)
	}
	return wrapperspb.Bytes(resp), nil
}

// Query streams one response per fold advance for the lifetime of the
// RPC, matching query_test.go's "one response per snapshot" contract
// over the wire.
func (s *Server) Query(req *wrapperspb.BytesValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	ctx := traceContextFromIncoming(stream.Context())
	moduleID, err := moduleIDFromContext(ctx)
	if err != nil {
		return err
	}

	snapshots := s.join(ctx, moduleID)
	items := query.Subscribe(ctx, s.queryRun, moduleID, snapshots, domain.QueryBlob(req.GetValue()))

	for item := range items {
		if item.Err != nil {
			logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).
				Error("query failed", "module_id", moduleID, "error", item.Err)
			return translateError(item.Err)
		}
		if err := stream.Send(wrapperspb.Bytes(item.Response)); err != nil {
			return err
		}
	}
	return nil
}
