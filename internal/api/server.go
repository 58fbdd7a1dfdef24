package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spendlens/spendlens-backend/internal/api/handlers"
	"github.com/spendlens/spendlens-backend/internal/api/middleware"
	"github.com/spendlens/spendlens-backend/internal/application/service"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Services bundles the application services the server exposes.
type Services struct {
	Merchants    *service.MerchantService
	Transactions *service.TransactionService
	Patterns     *service.PatternService
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	services   Services
}

// NewServer creates a new API server.
func NewServer(cfg Config, services Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Transactions
		transactionsHandler := handlers.NewTransactionsHandler(s.services.Transactions, s.services.Patterns)
		r.Post("/transactions", transactionsHandler.Create)
		r.Get("/transactions", transactionsHandler.List)
		r.Get("/transactions/{id}", transactionsHandler.Get)
		r.Post("/transactions/upload", transactionsHandler.Upload)

		// Merchants and rules
		merchantsHandler := handlers.NewMerchantsHandler(s.services.Merchants)
		r.Post("/merchants", merchantsHandler.Create)
		r.Post("/merchants/normalize", merchantsHandler.Normalize)
		r.Get("/merchants/{id}", merchantsHandler.Get)
		r.Put("/merchants/{id}", merchantsHandler.Update)
		r.Delete("/merchants/{id}", merchantsHandler.Deactivate)
		r.Post("/merchants/{id}/rules", merchantsHandler.CreateRule)
		r.Get("/rules", merchantsHandler.ListRules)

		// Patterns
		patternsHandler := handlers.NewPatternsHandler(s.services.Patterns)
		r.Get("/patterns", patternsHandler.List)
		r.Get("/patterns/merchant/{merchantId}", patternsHandler.ListByMerchant)

		// Analysis
		analysisHandler := handlers.NewAnalysisHandler(s.services.Merchants, s.services.Patterns)
		r.Post("/analysis/patterns", analysisHandler.DetectPatterns)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
