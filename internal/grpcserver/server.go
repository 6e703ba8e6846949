// Package grpcserver exposes the gRPC health service.
package grpcserver

import (
	"fmt"
	"log"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"roomchat/internal/observability"
)

// FeedService is the health service name tracking the change feed listener.
const FeedService = "roomchat.feed"

// Server is a gRPC server carrying the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New builds the server. Everything reports NOT_SERVING until marked otherwise.
func New() *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(FeedService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{grpc: srv, health: hs}
}

// SetServing updates the status of the overall service.
func (s *Server) SetServing(serving bool) {
	s.health.SetServingStatus("", status(serving))
}

// SetFeedHealthy updates the change feed status. It matches the callback shape of
// realtime.Feed.Listen.
func (s *Server) SetFeedHealthy(healthy bool) {
	s.health.SetServingStatus(FeedService, status(healthy))
}

// Serve listens on addr until Stop.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	log.Printf("grpc health listening on %s", addr)
	return s.ServeListener(lis)
}

func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func status(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
