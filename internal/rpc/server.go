package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/spiral-state/internal/state"
)

// Greeting is the static text returned by the Greeting RPC.
const Greeting = "Hello World"

// #region backend
// Backend is the counter surface the service dispatches to. lifecycle.Host
// satisfies it and serializes calls.
type Backend interface {
	Get() (uint32, error)
	Inc() (uint32, error)
	Set(v uint32) error
}
// #endregion backend

// #region server
// Server hosts StateService and the standard health service.
type Server struct {
	backend Backend
	logger  *zap.Logger
	grpc    *grpc.Server
	health  *health.Server
}

// NewServer builds a gRPC server for backend. Health reports NOT_SERVING
// until SetServing is called.
func NewServer(backend Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		logger:  logger,
		health:  health.NewServer(),
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	RegisterStateServiceServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetServing flips the health status of StateService.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc: %w", err)
	}
	return nil
}

// Stop drains in-flight calls and stops the server.
func (s *Server) Stop() {
	s.SetServing(false)
	s.grpc.GracefulStop()
}
// #endregion server

// #region handlers
// Get handles the Get RPC.
func (s *Server) Get(_ context.Context, _ *emptypb.Empty) (*wrapperspb.UInt32Value, error) {
	v, err := s.backend.Get()
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt32(v), nil
}

// Inc handles the Inc RPC.
func (s *Server) Inc(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if _, err := s.backend.Inc(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Set handles the Set RPC.
func (s *Server) Set(_ context.Context, in *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	if err := s.backend.Set(in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Greeting handles the Greeting RPC. It touches no state.
func (s *Server) Greeting(_ context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(Greeting), nil
}
// #endregion handlers

// #region errors
func toStatus(err error) error {
	switch {
	case errors.Is(err, state.ErrOverflow):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, state.ErrStateNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
// #endregion errors

// #region interceptor
func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("rpc",
		zap.String("method", info.FullMethod),
		zap.Stringer("code", status.Code(err)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, err
}
// #endregion interceptor
