package slogx

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tabtoken/pkg/idx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor is the gRPC counterpart of HTTPMiddleware. Install
// it ahead of any interceptor that logs so they pick up the request logger.
func UnaryServerInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx, logger := grpcLogger(ctx, base, info.FullMethod)

		resp, err := handler(ctx, req)

		logger.Info("grpc_request",
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// StreamServerInterceptor logs once per stream, when it ends.
func StreamServerInterceptor(base *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx, logger := grpcLogger(ss.Context(), base, info.FullMethod)

		err := handler(srv, &loggedStream{ServerStream: ss, ctx: ctx})

		logger.Info("grpc_stream",
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}

func grpcLogger(ctx context.Context, base *slog.Logger, method string) (context.Context, *slog.Logger) {
	var supplied string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(strings.ToLower(RequestIDHeader)); len(v) > 0 {
			supplied = v[0]
		}
	}

	logger := base.With("req_id", idx.OrNew(supplied), "method", method)
	return WithContext(ctx, logger), logger
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }
