package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soldash/soldash/service/config"
	"github.com/soldash/soldash/service/metrics"
	"github.com/soldash/soldash/service/swap"
)

// Server represents the HTTP server for the dashboard backend.
type Server struct {
	addr     string
	cfg      *config.Config
	ledger   Ledger
	balances BalanceReader
	swaps    *swap.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The balance reader is optional - if nil, balance endpoints return 503.
// The swap registry is optional - if nil, swap endpoints return 503.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, ledger Ledger, balances BalanceReader, swaps *swap.Registry, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		cfg:      cfg,
		ledger:   ledger,
		balances: balances,
		swaps:    swaps,
		metrics:  m,
		logger:   logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Transaction record routes
	mux.Handle("POST /api/v1/transactions", s.instrument("create_transaction",
		handleCreateTransaction(s.ledger, s.logger)))
	mux.Handle("PATCH /api/v1/transactions/{signature}", s.instrument("update_transaction_status",
		handleUpdateTransactionStatus(s.ledger, s.logger)))
	mux.Handle("GET /api/v1/transactions/{walletAddress}", s.instrument("list_transactions",
		handleListTransactions(s.ledger, s.logger)))

	// Balance routes
	if s.balances != nil {
		mux.Handle("GET /api/v1/balances/{address}", s.instrument("get_balance",
			handleGetBalance(s.balances, s.logger)))
	} else {
		s.logger.Warn("balance reader not configured, balance endpoint disabled")
	}

	// Swap routes
	if s.swaps != nil {
		mux.Handle("POST /api/v1/swap/quote", s.instrument("swap_quote",
			handleSwapQuote(s.swaps, s.cfg, s.logger)))
		mux.Handle("POST /api/v1/swap/transaction", s.instrument("swap_transaction",
			handleBuildSwapTransaction(s.swaps, s.logger)))
		s.logger.Info("swap endpoints enabled", "providers", s.swaps.Names())
	} else {
		s.logger.Warn("swap registry not configured, swap endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	return metrics.HTTPMetricsMiddleware(s.metrics, name, h)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS
// preflight requests. The dashboard is a browser app on another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
