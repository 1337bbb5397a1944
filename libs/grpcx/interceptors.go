package grpcx

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDMetadataKey carries the request id over gRPC metadata. It is the
// lowercase form of httpx.RequestIDHeader, and the id lands in the same
// context slot, so logs look the same for both transports.
var RequestIDMetadataKey = strings.ToLower(httpx.RequestIDHeader)

// NewServer returns a gRPC server with tracing, request-id propagation and
// access logging installed.
func NewServer(logger *slog.Logger, extra ...grpc.ServerOption) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestIDInterceptor(),
			UnaryServerLogInterceptor(logger),
		),
	}
	return grpc.NewServer(append(opts, extra...)...)
}

func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				id = httpx.SanitizeRequestID(vals[0])
			}
		}
		if id == "" {
			id = httpx.NewRequestID()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(httpx.ContextWithRequestID(ctx, id), req)
	}
}

// UnaryServerLogInterceptor logs health probes at debug and everything else
// at info, or at error for server-side failure codes.
func UnaryServerLogInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger == nil {
			return resp, err
		}
		code := status.Code(err)
		level := slog.LevelInfo
		switch {
		case strings.HasPrefix(info.FullMethod, "/grpc.health.v1."):
			level = slog.LevelDebug
		case code == codes.Internal || code == codes.Unavailable || code == codes.Unknown || code == codes.DataLoss:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc request",
			"request_id", httpx.RequestIDFromContext(ctx),
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
