// Package server runs a sysprobe responder on a UNIX stream socket.
//
// Each accepted connection gets its own goroutine that reads newline-delimited
// calls and answers each with exactly one response. Cancelling the Serve
// context stops accepting, lets in-flight calls finish, then removes the socket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/sysprobe/internal/frame"
	"github.com/rbright/sysprobe/internal/fsm"
	"github.com/rbright/sysprobe/internal/protocol"
)

const (
	defaultAcceptTimeout = time.Second
	defaultReadPoll      = time.Second
	defaultWriteTimeout  = 5 * time.Second
	acceptBackoff        = 50 * time.Millisecond
)

// Handler answers one decoded-or-not frame. Implementations must always
// return a response.
type Handler interface {
	HandleFrame(ctx context.Context, frame []byte) protocol.Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, []byte) protocol.Response

func (f HandlerFunc) HandleFrame(ctx context.Context, frame []byte) protocol.Response {
	return f(ctx, frame)
}

// Config describes one responder.
type Config struct {
	SocketPath    string
	AcceptTimeout time.Duration
	ReadPoll      time.Duration
	WriteTimeout  time.Duration
	Handler       Handler
	Logger        *slog.Logger
	// Health also serves the gRPC health protocol on HealthPath(SocketPath).
	Health bool
}

// BindError reports that the responder could not claim its socket.
type BindError struct {
	Path string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Path, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Server is a single-use responder: Listen, Serve, done.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	state    fsm.State
	listener *net.UnixListener
	health   *healthEndpoint

	conns  sync.WaitGroup
	nextID atomic.Uint64
}

// New applies defaults to cfg and returns a server in the starting state.
func New(cfg Config) *Server {
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = defaultAcceptTimeout
	}
	if cfg.ReadPoll <= 0 {
		cfg.ReadPoll = defaultReadPoll
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:    cfg,
		logger: logger.With("socket", cfg.SocketPath),
		state:  fsm.StateStarting,
	}
}

// State returns the current lifecycle state.
func (s *Server) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound socket path.
func (s *Server) Addr() string {
	return s.cfg.SocketPath
}

func (s *Server) transition(event fsm.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.logger.Debug("state change", "from", s.state, "state", next)
	s.state = next
	return nil
}

// Listen claims the socket path, replacing any stale socket file left by a
// previous responder. Callers must hold the role's instance lock first.
func (s *Server) Listen() error {
	if s.cfg.Handler == nil {
		return errors.New("server: nil handler")
	}
	path := s.cfg.SocketPath
	if err := s.bind(path); err != nil {
		_ = s.transition(fsm.EventFail)
		return &BindError{Path: path, Err: err}
	}

	if s.cfg.Health {
		health, err := startHealth(HealthPath(path), s.logger)
		if err != nil {
			_ = s.listener.Close()
			_ = os.Remove(path)
			_ = s.transition(fsm.EventFail)
			return &BindError{Path: HealthPath(path), Err: err}
		}
		s.mu.Lock()
		s.health = health
		s.mu.Unlock()
	}

	return s.transition(fsm.EventListen)
}

func (s *Server) bind(path string) error {
	if path == "" {
		return errors.New("empty socket path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure socket dir: %w", err)
	}
	if err := removeStale(path); err != nil {
		return err
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat socket path: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("socket path %s is a directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

// Serve accepts connections until ctx is cancelled, then drains. It calls
// Listen first when the server has not been bound yet.
func (s *Server) Serve(ctx context.Context) error {
	if s.State() == fsm.StateStarting {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	if state := s.State(); state != fsm.StateListening {
		return fmt.Errorf("serve: server is %s", state)
	}

	s.logger.Info("responder listening")
	s.acceptLoop(ctx)
	return s.drain()
}

func (s *Server) acceptLoop(ctx context.Context) {
	// Closing the listener wakes a pending accept as soon as shutdown starts.
	stop := context.AfterFunc(ctx, func() { _ = s.listener.Close() })
	defer stop()

	for ctx.Err() == nil {
		if err := s.listener.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("set accept deadline failed", "error", err)
			}
			return
		}

		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(acceptBackoff):
			}
			continue
		}

		id := s.nextID.Add(1)
		s.conns.Add(1)
		go s.serveConn(ctx, conn, id)
	}
}

func (s *Server) drain() error {
	if err := s.transition(fsm.EventDrain); err != nil {
		return err
	}
	s.logger.Info("responder draining")

	s.mu.Lock()
	health := s.health
	s.mu.Unlock()
	if health != nil {
		health.drain()
	}

	var errs []error
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close listener: %w", err))
	}
	s.conns.Wait()

	if health != nil {
		health.stop()
	}
	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove socket: %w", err))
	}
	if err := s.transition(fsm.EventStop); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("responder stopped")
	return errors.Join(errs...)
}

func (s *Server) serveConn(ctx context.Context, conn *net.UnixConn, id uint64) {
	defer s.conns.Done()
	defer conn.Close()

	logger := s.logger.With("conn", id)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("connection handler panicked", "panic", r)
		}
	}()

	// In-flight calls are answered even when shutdown starts mid-call.
	callCtx := context.WithoutCancel(ctx)
	reader := frame.NewReader(conn, frame.WithPollInterval(s.cfg.ReadPoll))
	for msg, err := range reader.Frames(ctx) {
		if err != nil {
			logger.Warn("read failed", "error", err)
			return
		}

		logger.Info("received call", "call", string(msg))
		resp := s.cfg.Handler.HandleFrame(callCtx, msg)
		out, err := protocol.EncodeResponse(resp)
		if err != nil {
			resp = protocol.Fail(err.Error())
			if out, err = protocol.EncodeResponse(resp); err != nil {
				logger.Error("encode response failed", "error", err)
				return
			}
		}

		logger.Info("sending response", "success", resp.Success, "response", string(out))
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := frame.Write(conn, out); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}
}
