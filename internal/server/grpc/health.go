package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check name reported for the care API.
const ServiceName = "plantkeeper.v1.CareService"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health drives the standard grpc.health.v1 service from store pings.
type Health struct {
	srv      *health.Server
	pinger   Pinger
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration

	last healthpb.HealthCheckResponse_ServingStatus
}

// NewHealth returns a checker that pings every interval.
func NewHealth(p Pinger, log *zap.Logger, interval time.Duration) *Health {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Health{
		srv:      health.NewServer(),
		pinger:   p,
		log:      log.With(zap.String("service", "Health")),
		interval: interval,
		timeout:  2 * time.Second,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// Register adds the health service to gs.
func (h *Health) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, h.srv)
}

// Check pings the store once and publishes the result.
func (h *Health) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	err := h.pinger.Ping(cctx)
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if st != h.last {
		h.log.Info("serving status changed", zap.String("status", st.String()), zap.Error(err))
		h.last = st
	}
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
	return st
}

// Run checks until ctx is done, then reports NOT_SERVING for everything.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	tick := time.NewTicker(h.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-tick.C:
			h.Check(ctx)
		}
	}
}
