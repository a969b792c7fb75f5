package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/enginedb/internal/core/events/bus"
	"github.com/zeusync/enginedb/internal/core/observability/log"
	"github.com/zeusync/enginedb/internal/core/storage"
)

// Config holds server configuration
type Config struct {
	ListenAddr string
	// MaxClients caps refresh-feed connections; zero disables the cap.
	MaxClients int
	// WriteTimeout bounds a single frame write to a feed client.
	WriteTimeout time.Duration
}

func DefaultServerConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8088",
		MaxClients:   64,
		WriteTimeout: 5 * time.Second,
	}
}

// Server exposes a store to out-of-process editor panels: JSON listings over
// HTTP and a websocket feed that pushes one frame per store refresh.
type Server struct {
	store  *storage.Store
	config Config
	logger log.Log

	httpServer *http.Server
	listener   net.Listener
	sub        bus.Subscription
	feed       *refreshFeed

	running int32 // atomic bool
	closed  int32 // atomic bool
	wg      sync.WaitGroup
}

func NewServer(store *storage.Store, config Config, logger log.Log) *Server {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultServerConfig().WriteTimeout
	}
	if logger == nil {
		logger = store.Logger()
	}
	logger = logger.With(log.String("component", "server"))

	s := &Server{
		store:  store,
		config: config,
		logger: logger,
		feed:   newRefreshFeed(config.MaxClients, config.WriteTimeout, logger),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listener, subscribes to store refreshes and serves in the
// background. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if s.config.MaxClients < 0 {
		return fmt.Errorf("%w: max clients %d", ErrInvalidConfig, s.config.MaxClients)
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = ln

	s.sub, err = s.store.EventBus().Subscribe(storage.EventRefresh, func(ev bus.Event) error {
		op, _ := ev.Data().(string)
		s.feed.broadcast(refreshFrame{Type: "refresh", Op: op})
		return nil
	})
	if err != nil {
		_ = ln.Close()
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop unsubscribes from the store, drains HTTP requests and closes every
// feed connection. A stopped server cannot be started again.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)

	s.logger.Info("Stopping server")

	if s.sub != nil {
		_ = s.sub.Cancel()
	}
	// hijacked websocket connections are invisible to Shutdown
	s.feed.closeAll()
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()

	s.logger.Info("Server stopped")
	return err
}

// ClientCount reports the number of connected feed clients.
func (s *Server) ClientCount() int {
	return s.feed.count()
}
