// Package health serves the standard gRPC health protocol for the pipeline.
package health

import (
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/passport-photo/internal/logging"
)

// PipelineService is the service name reported alongside the overall status.
const PipelineService = "passport.Pipeline"

// Server owns the gRPC listener.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	lis    net.Listener
	logger *zap.Logger
}

// Listen binds addr; everything starts NOT_SERVING until SetServing(true).
func Listen(addr string, logger *zap.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, logging.NewOperationError("health.listen", "", err)
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: grpchealth.NewServer(),
		lis:    lis,
		logger: logger.Named("grpc_health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s, nil
}

// Addr is the bound address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// SetServing flips both the overall and the pipeline status.
func (s *Server) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(PipelineService, status)
}

// Serve blocks until Stop.
func (s *Server) Serve() error {
	s.logger.Info("gRPC health listening", zap.String("addr", s.lis.Addr().String()))
	return s.grpc.Serve(s.lis)
}

// Stop reports NOT_SERVING to watchers and drains connections.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
