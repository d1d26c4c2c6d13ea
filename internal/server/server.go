// Package server exposes the dashboard and the assistant over a JSON HTTP API.
//
// Every request re-reads both survey tables through the configured loader;
// the only state kept between requests is the session store.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/padi-analytics/internal/access"
	"github.com/KaramelBytes/padi-analytics/internal/assistant"
	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// SessionCookie carries the opaque session id.
const SessionCookie = "padi_session"

// DatasetLoader yields a freshly fetched and normalized dataset.
type DatasetLoader interface {
	Load(ctx context.Context) (*survey.Dataset, error)
}

// Options wires the server's collaborators. Location defaults to UTC and
// Logger to slog.Default.
type Options struct {
	Sessions  *access.SessionStore
	Resolver  *access.Resolver
	Loader    DatasetLoader
	Assistant *assistant.Assistant
	Location  *time.Location
	Logger    *slog.Logger
}

// Server is the HTTP surface.
type Server struct {
	sessions  *access.SessionStore
	resolver  *access.Resolver
	loader    DatasetLoader
	assistant *assistant.Assistant
	loc       *time.Location
	logger    *slog.Logger
	engine    *gin.Engine
}

// New builds the router.
func New(o Options) *Server {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	s := &Server{
		sessions:  o.Sessions,
		resolver:  o.Resolver,
		loader:    o.Loader,
		assistant: o.Assistant,
		loc:       o.Location,
		logger:    o.Logger,
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.observe())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	api := r.Group("/api", s.requireSession())
	{
		api.GET("/dashboard", s.handleDashboard)
		api.GET("/chat", s.handleChatHistory)
		api.POST("/chat", s.handleChatAsk)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
