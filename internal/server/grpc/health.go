// Package grpcserver serves the standard gRPC health protocol for the gateway.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "authgate.v1.AuthGateway"

// Probe reports whether the backing store is reachable.
type Probe func(ctx context.Context) bool

// Health keeps a grpc health.Server in line with a probe.
type Health struct {
	hs       *health.Server
	probe    Probe
	interval time.Duration
	log      *zap.Logger
}

// NewHealth returns a health tracker that starts in NOT_SERVING.
func NewHealth(probe Probe, interval time.Duration, log *zap.Logger) *Health {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{hs: hs, probe: probe, interval: interval, log: log}
}

// Check runs the probe once and publishes the result.
func (h *Health) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if h.probe(ctx) {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
	return st
}

// Run probes every interval until ctx is done, then reports NOT_SERVING for good.
func (h *Health) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	last := h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			if st := h.Check(ctx); st != last {
				h.log.Info("health status changed", zap.String("status", st.String()))
				last = st
			}
		}
	}
}

// NewServer builds a gRPC server with the recover and logging interceptors
// and registers h on it.
func NewServer(h *Health, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.hs)
	return s
}
