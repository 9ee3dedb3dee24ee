// Package server exposes the engine host over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/server/handler"
	"github.com/alanyoungcy/marketengine/internal/server/middleware"
	"github.com/alanyoungcy/marketengine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string              // empty disables API-key auth
	Signer      *crypto.RequestAuth // nil disables request signing
	RateLimit   int                 // requests per RateWindow per client; 0 disables
	RateWindow  time.Duration
	MetricsPath string
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Orders  *handler.OrderHandler
	Admin   *handler.AdminHandler
	Metrics http.Handler // optional
}

// Server is the operator API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Routes registers every endpoint on a new mux and returns the API routes
// wrapped in the auth chain. Probes, metrics and the WebSocket stream stay
// outside auth.
func Routes(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/markets", h.Markets.ListMarkets)
	api.HandleFunc("POST /api/markets", h.Markets.CreateMarket)
	api.HandleFunc("GET /api/markets/{id}", h.Markets.GetMarket)
	api.HandleFunc("GET /api/markets/{id}/events", h.Markets.ListEvents)
	api.HandleFunc("GET /api/markets/{id}/accounts/{user}", h.Markets.GetAccount)
	api.HandleFunc("POST /api/markets/{id}/match", h.Orders.Match)
	api.HandleFunc("POST /api/markets/{id}/fill", h.Orders.Fill)
	api.HandleFunc("POST /api/markets/{id}/settle-trade", h.Orders.SettleTrade)
	api.HandleFunc("POST /api/markets/{id}/randomness", h.Admin.PublishRandomness)
	api.HandleFunc("POST /api/markets/{id}/termination-check", h.Markets.CheckTermination)
	api.HandleFunc("POST /api/markets/{id}/settle", h.Markets.Settle)
	api.HandleFunc("POST /api/markets/{id}/terminate-inactive", h.Markets.TerminateInactive)
	api.HandleFunc("POST /api/markets/{id}/split", h.Markets.Split)
	api.HandleFunc("POST /api/markets/{id}/merge", h.Markets.Merge)
	api.HandleFunc("POST /api/markets/{id}/redeem", h.Markets.Redeem)
	api.HandleFunc("POST /api/markets/{id}/deposit", h.Markets.Deposit)
	api.HandleFunc("POST /api/markets/{id}/withdraw", h.Markets.Withdraw)
	api.HandleFunc("POST /api/markets/{id}/pause", h.Markets.Pause)
	api.HandleFunc("POST /api/markets/{id}/resume", h.Markets.Resume)
	api.HandleFunc("POST /api/markets/{id}/params", h.Markets.UpdateParams)

	api.HandleFunc("POST /api/orders/cancel", h.Orders.Cancel)
	api.HandleFunc("GET /api/orders/{hash}/fill", h.Orders.GetFill)
	api.HandleFunc("GET /api/nonces/{user}", h.Orders.GetNonce)
	api.HandleFunc("POST /api/nonces/{user}/increment", h.Orders.IncrementNonce)
	api.HandleFunc("GET /api/users/{user}/positions", h.Orders.ListPositions)
	api.HandleFunc("GET /api/users/{user}/wallet", h.Orders.GetWallet)

	api.HandleFunc("GET /api/config", h.Admin.GetConfig)
	api.HandleFunc("POST /api/config/fees", h.Admin.UpdateFees)
	api.HandleFunc("POST /api/config/operators", h.Admin.AddOperator)
	api.HandleFunc("POST /api/config/operators/remove", h.Admin.RemoveOperator)
	api.HandleFunc("POST /api/config/keeper", h.Admin.SetKeeper)
	api.HandleFunc("POST /api/config/trading", h.Admin.SetTradingPaused)
	api.HandleFunc("POST /api/custody/credit", h.Admin.CreditCustody)
	api.HandleFunc("POST /api/treasury/withdraw", h.Admin.WithdrawTreasury)
	api.HandleFunc("GET /api/audit", h.Admin.ListAudit)

	var apiHandler http.Handler = api
	apiHandler = middleware.Auth(cfg.APIKey, cfg.Signer, nil)(apiHandler)
	if limiter != nil && cfg.RateLimit > 0 {
		apiHandler = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(apiHandler)
	}

	root := http.NewServeMux()
	root.Handle("/api/", apiHandler)
	root.HandleFunc("GET /healthz", h.Health.Live)
	root.HandleFunc("GET /readyz", h.Health.Ready)
	if h.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		root.Handle("GET "+path, h.Metrics)
	}
	if hub != nil {
		root.HandleFunc("GET /ws", hub.HandleWS)
	}

	var out http.Handler = root
	out = middleware.Recover(logger)(out)
	out = middleware.Logging(logger)(out)
	out = middleware.CORS(cfg.CORSOrigins)(out)
	return out
}

// NewServer creates a Server for the given routes.
func NewServer(cfg Config, routes http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           routes,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
