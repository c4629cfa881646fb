package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/target"
	"go.uber.org/zap"
)

// DefaultPath is the websocket endpoint served by Server.
const DefaultPath = "/target"

// Config holds the server configuration.
type Config struct {
	Listen string // host:port to listen on
	Path   string // websocket endpoint, default DefaultPath
}

// Server exposes a target.Device over a websocket endpoint. Each connection
// is served by one goroutine that handles requests strictly in arrival
// order. Requests from different connections reach the device in no
// particular order; a single-writer client is expected.
type Server struct {
	config   Config
	device   target.Device
	logger   *zap.Logger
	upgrader websocket.Upgrader
	http     *http.Server

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// New creates a bridge server for device.
func New(config Config, device target.Device, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	s := &Server{
		config:      config,
		device:      device,
		logger:      logger,
		activeConns: make(map[string]*websocket.Conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// The bridge has no browser clients.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections, closes the active ones and waits
// for their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down bridge...")

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("Error closing listener", zap.Error(err))
		}
	}

	// Hijacked connections are not closed by http.Server.Shutdown.
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		s.logger.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All connections closed gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout, forcing close")
		return ctx.Err()
	}
}

// ActiveConnections returns the number of connected clients.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.logger.Error("Invalid WebSocket upgrade request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()
	s.wg.Add(1)

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(s.logger, remoteAddr, "websocket_closed")
		s.wg.Done()
	}()

	logging.LogConnection(s.logger, remoteAddr, "websocket_upgraded")

	if err := s.serveConn(r.Context(), conn, remoteAddr); err != nil {
		s.logger.Error("WebSocket connection error",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}
