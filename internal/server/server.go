package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/criteo/install-registry/internal/auth"
	"github.com/criteo/install-registry/internal/config"
	"github.com/criteo/install-registry/internal/server/middleware"
	"github.com/criteo/install-registry/internal/storage"
)

// HandlerSet contains all HTTP handlers
type HandlerSet struct {
	Health  http.HandlerFunc
	Metrics http.Handler
	Whoami  http.HandlerFunc

	// Registry handlers
	ListProducts   http.HandlerFunc
	GetProduct     http.HandlerFunc
	ListComponents http.HandlerFunc
	GetComponent   http.HandlerFunc
	ListDangling   http.HandlerFunc
	GetActivation  http.HandlerFunc

	// Operation handlers
	Check     http.HandlerFunc
	Discover  http.HandlerFunc
	Install   http.HandlerFunc
	Uninstall http.HandlerFunc
}

// Server represents the HTTP server
type Server struct {
	config        *config.Config
	logger        *slog.Logger
	store         storage.Store
	authenticator auth.Authenticator
	httpServer    *http.Server
	handlers      HandlerSet
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *slog.Logger, store storage.Store, authenticator auth.Authenticator) *Server {
	return &Server{
		config:        cfg,
		logger:        logger,
		store:         store,
		authenticator: authenticator,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // discover and install read remote sites
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server",
		"host", s.config.Server.Host,
		"port", s.config.Server.Port,
		"install_url", s.config.Install.URL,
		"storage_uri", s.config.Storage.URI,
		"auth_type", s.config.Auth.Type)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		s.logger.Info("Shutdown signal received", "signal", sig.String())
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("Initiating graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed", "error", err)
		return err
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("Storage close failed", "error", err)
		return err
	}

	s.logger.Info("Server stopped gracefully")
	return nil
}

// Handler returns the router with middleware and routes configured
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logging(s.logger))

	if s.handlers.Metrics != nil {
		router.Handle("/metrics", s.handlers.Metrics)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Health endpoint (no auth required)
		if s.handlers.Health != nil {
			r.Get("/health", s.handlers.Health)
		}

		// Whoami endpoint (credentials optional)
		if s.handlers.Whoami != nil {
			r.Get("/whoami", s.handlers.Whoami)
		}

		// Read endpoints (no auth required)
		r.Route("/products", func(r chi.Router) {
			if s.handlers.ListProducts != nil {
				r.Get("/", s.handlers.ListProducts)
			}
			if s.handlers.GetProduct != nil {
				r.Get("/{key}", s.handlers.GetProduct)
			}
		})
		r.Route("/components", func(r chi.Router) {
			if s.handlers.ListComponents != nil {
				r.Get("/", s.handlers.ListComponents)
			}
			if s.handlers.GetComponent != nil {
				r.Get("/{key}", s.handlers.GetComponent)
			}
		})
		if s.handlers.ListDangling != nil {
			r.Get("/dangling", s.handlers.ListDangling)
		}
		if s.handlers.GetActivation != nil {
			r.Get("/activation", s.handlers.GetActivation)
		}
		if s.handlers.Check != nil {
			r.Get("/check/{kind}/{key}", s.handlers.Check)
		}

		// Operations mutate the installation (auth required)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.authenticator))
			if s.handlers.Discover != nil {
				r.Post("/discover", s.handlers.Discover)
			}
			if s.handlers.Install != nil {
				r.Post("/install", s.handlers.Install)
			}
			if s.handlers.Uninstall != nil {
				r.Post("/uninstall", s.handlers.Uninstall)
			}
		})
	})

	return router
}

// SetHandlers sets all handlers (called from the CLI to avoid import cycle)
func (s *Server) SetHandlers(handlers HandlerSet) {
	s.handlers = handlers
}
