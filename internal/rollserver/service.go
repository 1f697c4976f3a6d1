// Package rollserver exposes the dice engine over gRPC as the
// rollbox.v1.DiceService. Requests and responses are google.protobuf.Struct
// values so clients need no generated stubs.
package rollserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rollbox.v1.DiceService"

const (
	methodValidate = "/" + ServiceName + "/Validate"
	methodRoll     = "/" + ServiceName + "/Roll"
	methodScan     = "/" + ServiceName + "/Scan"
	methodHistory  = "/" + ServiceName + "/History"
)

// DiceServiceServer is the server API for DiceService.
type DiceServiceServer interface {
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Roll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Scan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDiceServiceServer registers srv with s.
func RegisterDiceServiceServer(s grpc.ServiceRegistrar, srv DiceServiceServer) {
	s.RegisterService(&DiceServiceDesc, srv)
}

// DiceServiceDesc describes DiceService for grpc.ServiceRegistrar.
var DiceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: unaryHandler(methodValidate, DiceServiceServer.Validate)},
		{MethodName: "Roll", Handler: unaryHandler(methodRoll, DiceServiceServer.Roll)},
		{MethodName: "Scan", Handler: unaryHandler(methodScan, DiceServiceServer.Scan)},
		{MethodName: "History", Handler: unaryHandler(methodHistory, DiceServiceServer.History)},
	},
	Streams: []grpc.StreamDesc{},
}

type unaryMethod func(DiceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a DiceServiceServer method to grpc.MethodHandler,
// honouring any configured interceptor.
func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DiceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DiceServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DiceServiceClient is a thin client for DiceService.
type DiceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDiceServiceClient returns a client using cc.
func NewDiceServiceClient(cc grpc.ClientConnInterface) *DiceServiceClient {
	return &DiceServiceClient{cc: cc}
}

func (c *DiceServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks an expression without rolling it.
func (c *DiceServiceClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodValidate, in, opts...)
}

// Roll rolls an expression or preset.
func (c *DiceServiceClient) Roll(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodRoll, in, opts...)
}

// Scan locates expressions in free text and optionally rolls them.
func (c *DiceServiceClient) Scan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodScan, in, opts...)
}

// History lists an owner's recent rolls.
func (c *DiceServiceClient) History(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodHistory, in, opts...)
}
