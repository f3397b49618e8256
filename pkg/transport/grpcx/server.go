package grpcx

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joeydtaylor/steeze-exthost/pkg/dispatch"
	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/auth"
	hmetrics "github.com/joeydtaylor/steeze-exthost/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-exthost/pkg/wire"
)

type service struct {
	d *dispatch.Dispatcher
}

func (s service) CreateOrUpdate(ctx context.Context, in *wire.ResourceSpecification) (*wire.Response, error) {
	return s.d.CreateOrUpdate(ctx, in), nil
}

func (s service) Preview(ctx context.Context, in *wire.ResourceSpecification) (*wire.Response, error) {
	return s.d.Preview(ctx, in), nil
}

func (s service) Get(ctx context.Context, in *wire.ResourceReference) (*wire.Response, error) {
	return s.d.Get(ctx, in), nil
}

func (s service) Delete(ctx context.Context, in *wire.ResourceReference) (*wire.Response, error) {
	return s.d.Delete(ctx, in), nil
}

func (s service) Ping(ctx context.Context, _ *wire.Empty) (*wire.Empty, error) {
	return s.d.Ping(ctx), nil
}

// NewServer builds a gRPC server exposing the dispatcher. Only transport
// level problems (auth, decoding) surface as gRPC status errors.
func NewServer(d *dispatch.Dispatcher, log *zap.Logger, ca *auth.Middleware, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(
		hmetrics.UnaryInterceptor(),
		accessLog(log),
		authenticate(ca),
	))
	s := grpc.NewServer(opts...)
	RegisterBicepExtensionServer(s, service{d: d})
	return s
}

func authenticate(ca *auth.Middleware) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !ca.Enabled() {
			return handler(ctx, req)
		}
		var raw string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("authorization"); len(v) > 0 {
				raw = v[0]
			}
		}
		c, err := ca.Verify(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(auth.WithCaller(ctx, c), req)
	}
}

func accessLog(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("access",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("lat", time.Since(start)),
		)
		return resp, err
	}
}
