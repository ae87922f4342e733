package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthPath is the gRPC health socket that accompanies a responder socket.
func HealthPath(socketPath string) string {
	return socketPath + ".health"
}

type healthEndpoint struct {
	path   string
	server *grpc.Server
	status *health.Server
	done   chan error
}

func startHealth(path string, logger *slog.Logger) (*healthEndpoint, error) {
	if err := removeStale(path); err != nil {
		return nil, err
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod health socket: %w", err)
	}

	h := &healthEndpoint{
		path:   path,
		server: grpc.NewServer(),
		status: health.NewServer(),
		done:   make(chan error, 1),
	}
	healthpb.RegisterHealthServer(h.server, h.status)
	h.status.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		err := h.server.Serve(listener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Warn("health endpoint stopped", "error", err)
		}
		h.done <- err
	}()
	return h, nil
}

// drain flips every service to NOT_SERVING while connections finish.
func (h *healthEndpoint) drain() {
	h.status.Shutdown()
}

func (h *healthEndpoint) stop() {
	h.server.Stop()
	<-h.done
	_ = os.Remove(h.path)
}

// CheckHealth asks the responder behind socketPath for its serving status.
func CheckHealth(ctx context.Context, socketPath string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(
		"unix://"+HealthPath(socketPath),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("create health client: %w", err)
	}
	defer conn.Close()

	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health endpoint %s: %w", HealthPath(socketPath), err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}

// waitForReady blocks until the connection is Ready, fails, or ctx ends.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			return errors.New("grpc connection failed")
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
