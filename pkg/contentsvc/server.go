package contentsvc

import (
	"fmt"
	"net"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
)

// Server hosts the content service on a gRPC listener, registered via
// the hand-rolled ContentServiceDesc (rpc.go).
//
// hclog is used at this boundary (and only here): the teacher splits
// logging the same way, slog/zap in application code and hclog where a
// gRPC server talks to its peers.
type Server struct {
	svc  *Service
	grpc *grpc.Server
	log  hclog.Logger
}

func NewServer(svc *Service, opts ...grpc.ServerOption) *Server {
	s := &Server{
		svc:  svc,
		grpc: grpc.NewServer(opts...),
		log: hclog.New(&hclog.LoggerOptions{
			Name:  "contentsvc",
			Level: hclog.Info,
		}),
	}
	s.grpc.RegisterService(&ContentServiceDesc, &rpcAdapter{svc: svc})
	return s
}

// Serve blocks serving the listener until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("content service listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("content service: %w", err)
	}
	return nil
}

// ListenAndServe serves on a TCP address.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("content service listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Stop gracefully drains in-flight streams and stops the server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
	s.log.Info("content service stopped")
}
