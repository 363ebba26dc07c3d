package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the reference ButemboChat server. It speaks the JSON frame
// protocol over WebSocket and keeps all state in memory.
type Server struct {
	config   ServerConfig
	sessions *SessionManager
	metrics  *Metrics
	registry *prometheus.Registry
	logger   zerolog.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	startTime  time.Time

	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry sets the Prometheus registry metrics are registered with
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewServer creates a new server instance
func NewServer(config ServerConfig, opts ...Option) *Server {
	s := &Server{
		config:    config,
		logger:    zerolog.Nop(),
		startTime: time.Now(),
		shutdown:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = NewMetrics(s.registry)
	s.sessions = NewSessionManager(config, s.metrics)
	return s
}

// Handler returns the HTTP handler serving the WebSocket endpoint, health
// and channel list, and metrics when configured
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.WebSocketPath, s.HandleWebSocket)
	// Bare host:port addresses dial the root path
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && websocket.IsWebSocketUpgrade(r) {
			s.HandleWebSocket(w, r)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/health", s.HealthHandler)
	mux.HandleFunc("/channels.json", s.ChannelsJSONHandler)
	if s.config.MetricsPath != "" {
		mux.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Str("path", s.config.WebSocketPath).
		Msg("server listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	return nil
}

// Addr returns the address the server listens on, once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Sessions exposes the session manager
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Stop gracefully stops the server and closes every session
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.shutdown)

		s.mu.Lock()
		httpServer := s.httpServer
		s.mu.Unlock()

		if httpServer != nil {
			err = httpServer.Shutdown(ctx)
		}

		// Hijacked WebSocket connections are not closed by Shutdown
		s.sessions.CloseAll()

		// Wait for goroutines to finish
		s.wg.Wait()
	})
	return err
}
