package grpcx

import (
	"context"

	"google.golang.org/grpc"

	"github.com/joeydtaylor/steeze-exthost/pkg/wire"
)

const ServiceName = "extension.BicepExtension"

// BicepExtensionServer is the server API for the extension service.
type BicepExtensionServer interface {
	CreateOrUpdate(context.Context, *wire.ResourceSpecification) (*wire.Response, error)
	Preview(context.Context, *wire.ResourceSpecification) (*wire.Response, error)
	Get(context.Context, *wire.ResourceReference) (*wire.Response, error)
	Delete(context.Context, *wire.ResourceReference) (*wire.Response, error)
	Ping(context.Context, *wire.Empty) (*wire.Empty, error)
}

func RegisterBicepExtensionServer(s grpc.ServiceRegistrar, srv BicepExtensionServer) {
	s.RegisterService(&BicepExtension_ServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(BicepExtensionServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BicepExtensionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BicepExtensionServer), ctx, req.(*Req))
			})
		},
	}
}

var BicepExtension_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BicepExtensionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateOrUpdate", BicepExtensionServer.CreateOrUpdate),
		unary("Preview", BicepExtensionServer.Preview),
		unary("Get", BicepExtensionServer.Get),
		unary("Delete", BicepExtensionServer.Delete),
		unary("Ping", BicepExtensionServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "extension.proto",
}
