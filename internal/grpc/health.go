package grpc

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"quizhub/internal/logger"
)

// ServiceName is the health service key reported alongside the overall "" status.
const ServiceName = "quizhub"

// Health tracks whether the service can reach its storage and exposes it over grpc.health.v1.
type Health struct {
	server *health.Server
	log    *logger.Logger

	mu      sync.Mutex
	serving bool
}

func NewHealth(log *logger.Logger) *Health {
	h := &Health{server: health.NewServer(), log: log.With("component", "grpc_health")}
	h.setStatus(false)
	return h
}

func (h *Health) SetServing(serving bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if serving == h.serving {
		return
	}
	h.serving = serving
	h.log.Info("serving status changed", "serving", serving)
	h.setStatus(serving)
}

func (h *Health) setStatus(serving bool) {
	state := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		state = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", state)
	h.server.SetServingStatus(ServiceName, state)
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}

func (h *Health) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.server.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// NewServer builds the grpc server with request logging and registers the health service.
func NewServer(h *Health, log *logger.Logger) *grpc.Server {
	server := grpc.NewServer(grpc.UnaryInterceptor(NewLoggingUnaryInterceptor(log)))
	healthpb.RegisterHealthServer(server, h.server)
	return server
}

func NewLoggingUnaryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	log = log.With("component", "grpc")
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if err != nil {
			log.Warn("grpc call failed", "method", info.FullMethod, "code", code.String(), "latency", time.Since(start))
		} else {
			log.Debug("grpc call completed", "method", info.FullMethod, "latency", time.Since(start))
		}
		return resp, err
	}
}
