package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ogurasousui/levy-engine/internal/adapters/grpc/handler"
)

// Services はサーバーに登録する gRPC 実装です。nil のサービスは登録しません。
type Services struct {
	Compliance handler.ComplianceServer
	Employees  handler.EmployeeServer
	Attendance handler.AttendanceServer
	Settings   handler.SettingsServer
}

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	health     *health.Server
	log        *zap.Logger
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
func New(listenAddr string, services Services, log *zap.Logger, opts ...grpc.ServerOption) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(recoveryInterceptor(log), loggingInterceptor(log)),
	}, opts...)
	srv := grpc.NewServer(opts...)

	if services.Compliance != nil {
		handler.RegisterComplianceServer(srv, services.Compliance)
	}
	if services.Employees != nil {
		handler.RegisterEmployeeServer(srv, services.Employees)
	}
	if services.Attendance != nil {
		handler.RegisterAttendanceServer(srv, services.Attendance)
	}
	if services.Settings != nil {
		handler.RegisterSettingsServer(srv, services.Settings)
	}

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		health:     healthSrv,
		log:        log,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は与えられたリスナーで待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
