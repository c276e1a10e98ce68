package functionRuntime

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The gRPC endpoint carries task and completion JSON in google.protobuf.BytesValue
// messages, so no generated code is needed on either side.
const (
	ServiceName  = "oaas.runtime.FunctionRuntime"
	InvokeMethod = "/" + ServiceName + "/Invoke"
)

type functionRuntimeServer interface {
	Invoke(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*functionRuntimeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler:    invokeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oaas/runtime.proto",
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(functionRuntimeServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: InvokeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(functionRuntimeServer).Invoke(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcService struct {
	s *Server
}

func (g *grpcService) Invoke(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if int64(len(in.GetValue())) > g.s.cfg.MaxBodyBytes {
		return nil, status.Error(codes.ResourceExhausted, "task descriptor too large")
	}

	ic, completion, outcome, err := g.s.invoke(ctx, in.GetValue())
	switch outcome {
	case outcomeNotFound:
		return nil, status.Error(codes.NotFound, err.Error())
	case outcomeBadRequest:
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	md := metadata.MD{}
	for k, v := range ic.CreateReplyHeader(nil) {
		md.Append(strings.ToLower(k), v...)
	}
	if err := grpc.SetHeader(ctx, md); err != nil {
		g.s.logger.Warn("Failed to set reply headers", "task", ic.ID(), "error", err)
	}

	out, err := json.Marshal(completion)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(out), nil
}
