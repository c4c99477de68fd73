package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
)

// NewGRPCServer returns a server carrying the annotation service plus the
// standard health and reflection services. The health server is returned so
// shutdown can flip it to NOT_SERVING.
func NewGRPCServer(svc AnnotationServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(unaryLogging(logger)))
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)

	RegisterAnnotationServer(s, svc)
	return s, hs
}

func unaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "duration", time.Since(start)}
		if err != nil {
			attrs = append(attrs, "code", common.ErrorCode(err))
			logger.Warn("grpc request failed", attrs...)
		} else {
			logger.Debug("grpc request", attrs...)
		}
		return resp, err
	}
}
