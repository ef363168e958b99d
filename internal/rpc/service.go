// Package rpc exposes the counter operations over gRPC.
//
// The service is declared by hand with protobuf well-known types as messages,
// so no generated code is needed:
//
//	service StateService {
//	  rpc Get(google.protobuf.Empty) returns (google.protobuf.UInt32Value);
//	  rpc Inc(google.protobuf.Empty) returns (google.protobuf.Empty);
//	  rpc Set(google.protobuf.UInt32Value) returns (google.protobuf.Empty);
//	  rpc Greeting(google.protobuf.Empty) returns (google.protobuf.StringValue);
//	}
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "spiralstate.v1.StateService"

const (
	methodGet      = "/" + ServiceName + "/Get"
	methodInc      = "/" + ServiceName + "/Inc"
	methodSet      = "/" + ServiceName + "/Set"
	methodGreeting = "/" + ServiceName + "/Greeting"
)

// #region server-interface
// StateServiceServer is the server side of StateService.
type StateServiceServer interface {
	Get(context.Context, *emptypb.Empty) (*wrapperspb.UInt32Value, error)
	Inc(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Set(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error)
	Greeting(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// RegisterStateServiceServer registers srv on s.
func RegisterStateServiceServer(s grpc.ServiceRegistrar, srv StateServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StateServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: unaryHandler(methodGet, StateServiceServer.Get)},
		{MethodName: "Inc", Handler: unaryHandler(methodInc, StateServiceServer.Inc)},
		{MethodName: "Set", Handler: unaryHandler(methodSet, StateServiceServer.Set)},
		{MethodName: "Greeting", Handler: unaryHandler(methodGreeting, StateServiceServer.Greeting)},
	},
	Metadata: "spiralstate/v1/state.proto",
}

// unaryHandler adapts a typed server method to grpc.MethodHandler, the same
// shape protoc-gen-go-grpc emits per method.
func unaryHandler[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](fullMethod string, call func(StateServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StateServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StateServiceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
// #endregion server-interface

// #region client-interface
// StateServiceClient is the client side of StateService.
type StateServiceClient interface {
	Get(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt32Value, error)
	Inc(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Set(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Greeting(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type stateServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStateServiceClient returns a client bound to cc.
func NewStateServiceClient(cc grpc.ClientConnInterface) StateServiceClient {
	return &stateServiceClient{cc: cc}
}

func (c *stateServiceClient) Get(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt32Value, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.cc.Invoke(ctx, methodGet, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *stateServiceClient) Inc(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, methodInc, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *stateServiceClient) Set(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, methodSet, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *stateServiceClient) Greeting(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodGreeting, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
// #endregion client-interface
