package sse

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/streamkit/logger"
)

// stopTimeout bounds graceful shutdown.
const stopTimeout = 5 * time.Second

// Server serves the event stream endpoint over HTTP/1.1 and HTTP/2
// cleartext on a single port. Event streams benefit from h2c: one
// connection multiplexes many streams and browsers cap h1 connections per
// host.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	cfg        ServerConfig
	addr       string
}

// NewServer builds the server from cfg as given; apply defaults and
// validate first, typically through the config loader.
func NewServer(cfg ServerConfig) *Server {
	// Gin mode follows the global log level.
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(recoveryMiddleware(), requestIDMiddleware(), requestLogger())

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      h2c.NewHandler(engine, h2s),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		engine:     engine,
		cfg:        cfg,
		addr:       addr,
	}
}

// Engine returns the underlying Gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a
// goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("sse server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.addr = listener.Addr().String()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()

	logger.Info("SSE server started", map[string]interface{}{
		"addr": s.addr,
	})
	return nil
}

// Stop gracefully shuts the server down, bounded by stopTimeout.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sse server shutdown: %w", err)
	}

	logger.Info("SSE server shut down")
	return nil
}

// Addr returns the listen address: the configured one before Start, the
// bound one after, which matters when the configured port is 0.
func (s *Server) Addr() string {
	return s.addr
}
