package server

import (
	"fmt"
	"net"

	"github.com/matheus3301/chatsync/internal/protocol"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the grpc health protocol so operators and chatctl
// can probe the daemon.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewHealthServer binds the configured grpc address. An empty address
// disables the probe and returns nil.
func NewHealthServer(p Params, logger *zap.Logger) (*HealthServer, error) {
	if p.Server.GRPCAddr == "" {
		return nil, nil
	}
	listener, err := net.Listen("tcp", p.Server.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", p.Server.GRPCAddr, err)
	}

	hs := health.NewServer()
	hs.SetServingStatus(protocol.HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		logger:     logger,
	}, nil
}

// Addr returns the bound address.
func (s *HealthServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Start begins serving grpc requests. Blocks until stopped.
func (s *HealthServer) Start() error {
	s.logger.Info("grpc health server starting", zap.String("addr", s.Addr().String()))
	return s.grpcServer.Serve(s.listener)
}

// SetServing flips the reported status of the chatsync service.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(protocol.HealthService, status)
}

// Stop marks every service NOT_SERVING and performs a graceful shutdown.
func (s *HealthServer) Stop() {
	s.logger.Info("grpc health server stopping")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
