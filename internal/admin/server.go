package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/weatherbot/core/buildinfo"
	"github.com/m3rciful/weatherbot/core/logger"
)

// Options configures the admin server.
type Options struct {
	Listen string
	// Token guards the subscriber and credential routes when set.
	Token string
}

// Server runs the admin API.
type Server struct {
	opts    Options
	handler http.Handler
	srv     *http.Server
	done    chan struct{}
}

// NewServer builds the router. The server does not listen until Start.
func NewServer(opts Options, h *Handler) *Server {
	return &Server{opts: opts, handler: NewRouter(opts.Token, h)}
}

// NewRouter wires middleware, open endpoints and the guarded admin routes.
func NewRouter(token string, h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(token))
		h.RegisterRoutes(r)
	})
	return r
}

type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, healthBody{
		Status:  "ok",
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listener and serves in the background. Bind errors are returned.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("admin: listen %s: %w", s.opts.Listen, err)
	}
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.done = make(chan struct{})
	logger.Info(ctx, component, "server.start",
		slog.String("listen", ln.Addr().String()),
		slog.Bool("auth", s.opts.Token != ""),
	)
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(logger.Background(), component, "server.failed", slog.String("err", err.Error()))
		}
	}()
	return nil
}

// Shutdown stops the server gracefully. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	<-s.done
	logger.Info(ctx, component, "server.stop")
	if err != nil {
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	return nil
}
