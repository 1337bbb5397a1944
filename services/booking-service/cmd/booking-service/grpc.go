package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// startHealthServer exposes grpc.health.v1 for orchestrators that probe over
// gRPC. Serving status follows the same dependency checks as /readyz.
// GRPC_PORT=0 disables it.
func startHealthServer(ctx context.Context, logger *slog.Logger, checks []runtime.ReadyCheck) error {
	if config.String("GRPC_PORT", "9093") == "0" {
		return nil
	}
	port, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			hs.SetServingStatus("", servingStatus(ctx, checks))
			select {
			case <-ctx.Done():
				hs.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func servingStatus(ctx context.Context, checks []runtime.ReadyCheck) healthpb.HealthCheckResponse_ServingStatus {
	if err := runtime.Probe(ctx, checks); err != nil {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
