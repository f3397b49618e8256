package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collect records per-route counters for the HTTP transport.
func Collect() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				if isSkipPath(r) {
					return
				}
				code := ww.Status()
				if code == 0 {
					code = http.StatusOK
				}
				if code == http.StatusUnauthorized {
					totalUnauthenticated.WithLabelValues("http").Inc()
				}
				totalRequestsToMethod.WithLabelValues("http", strconv.Itoa(code), normalizePath(r)).Inc()
				responseTime.WithLabelValues("http").Observe(time.Since(start).Seconds())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// UnaryInterceptor is the gRPC counterpart of Collect.
func UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if code == codes.Unauthenticated {
			totalUnauthenticated.WithLabelValues("grpc").Inc()
		}
		totalRequestsToMethod.WithLabelValues("grpc", code.String(), info.FullMethod).Inc()
		responseTime.WithLabelValues("grpc").Observe(time.Since(start).Seconds())
		return resp, err
	}
}
