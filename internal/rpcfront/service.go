package rpcfront

import (
	"context"
	"errors"
	"fmt"

	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/observability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	moduleIDMetadataKey    = "module_id"
	traceParentMetadataKey = "traceparent"
	traceStateMetadataKey  = "tracestate"
)

func moduleIDFromContext(ctx context.Context) (domain.ModuleId, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.InvalidArgument, "missing module_id metadata")
	}
	values := md.Get(moduleIDMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return "", status.Error(codes.InvalidArgument, "missing module_id metadata")
	}
	return domain.ModuleId(values[0]), nil
}

// traceContextFromIncoming carries a caller's W3C trace context, sent as
// traceparent/tracestate gRPC metadata, into ctx. The span action.Handle
// or query.invoke opens for this call then becomes a child of the
// caller's trace instead of a new root.
func traceContextFromIncoming(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	var tc observability.TraceContext
	if v := md.Get(traceParentMetadataKey); len(v) > 0 {
		tc.TraceParent = v[0]
	}
	if v := md.Get(traceStateMetadataKey); len(v) > 0 {
		tc.TraceState = v[0]
	}
	return observability.InjectTraceContext(ctx, tc)
}

// translateError maps the closed domain error taxonomy to gRPC status
// codes, the wire-protocol equivalent of an HTTP status mapping.
func translateError(err error) error {
	switch {
	case errors.Is(err, domain.ErrModuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrProtocolMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrAuth):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, domain.ErrSandboxTrap):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// serviceDesc is hand-written rather than protoc-generated, keeping the
// gRPC surface directly in Go with no .proto to regenerate since every
// message here is already the library type wrapperspb.BytesValue.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "gameserver.RPCFront",
	HandlerType: (*rpcFrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Act",
			Handler:    actHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Query",
			Handler:       queryHandler,
			ServerStreams: true,
		},
	},
}

// rpcFrontServer is the interface grpc's generic dispatch invokes
// against; *Server implements it.
type rpcFrontServer interface {
	Act(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Query(req *wrapperspb.BytesValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

func actHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(wrapperspb.BytesValue)
	if err := dec(req); err != nil {
		return nil, fmt.Errorf("rpcfront: decode request: %w", err)
	}
	if interceptor == nil {
		return srv.(rpcFrontServer).Act(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/gameserver.RPCFront/Act"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rpcFrontServer).Act(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, req, info, handler)
}

func queryHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(rpcFrontServer).Query(req, &queryServerStream{stream})
}

type queryServerStream struct {
	grpc.ServerStream
}

func (s *queryServerStream) Send(m *wrapperspb.BytesValue) error {
	return s.ServerStream.SendMsg(m)
}
