package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/matching"
	"github.com/alanyoungcy/marketengine/internal/service"
)

// OrderHandler serves matching, fills, trade settlement and order
// housekeeping.
type OrderHandler struct {
	markets  *MarketHandler
	exchange *service.ExchangeService
	admin    *service.AdminService
	query    *service.QueryService
	logger   *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(exchange *service.ExchangeService, admin *service.AdminService, query *service.QueryService, logger *slog.Logger) *OrderHandler {
	logger = logger.With(slog.String("handler", "order"))
	return &OrderHandler{
		markets:  &MarketHandler{exchange: exchange, query: query, logger: logger},
		exchange: exchange,
		admin:    admin,
		query:    query,
		logger:   logger,
	}
}

// Match matches a taker order against up to five makers.
// POST /api/markets/{id}/match
func (h *OrderHandler) Match(w http.ResponseWriter, r *http.Request) {
	marketCall(h.markets, w, r, http.StatusOK, func(id domain.Pubkey, req matching.MatchRequest) (*engine.Result, error) {
		return h.exchange.MatchOrders(r.Context(), id, req)
	})
}

type fillRequest struct {
	Operator domain.Pubkey      `json:"operator"`
	Order    domain.SignedOrder `json:"order"`
	Amount   uint64             `json:"amount"`
}

// Fill fills one maker order against the operator.
// POST /api/markets/{id}/fill
func (h *OrderHandler) Fill(w http.ResponseWriter, r *http.Request) {
	marketCall(h.markets, w, r, http.StatusOK, func(id domain.Pubkey, req fillRequest) (*engine.Result, error) {
		return h.exchange.FillOrder(r.Context(), id, req.Operator, req.Order, req.Amount)
	})
}

// SettleTrade applies an exchange-signed trade.
// POST /api/markets/{id}/settle-trade
func (h *OrderHandler) SettleTrade(w http.ResponseWriter, r *http.Request) {
	marketCall(h.markets, w, r, http.StatusOK, func(id domain.Pubkey, req engine.SettleTradeRequest) (*engine.Result, error) {
		return h.exchange.SettleTrade(r.Context(), id, req)
	})
}

type cancelRequest struct {
	Caller domain.Pubkey `json:"caller"`
	Order  domain.Order  `json:"order"`
}

// Cancel cancels an order on behalf of its maker.
// POST /api/orders/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.exchange.CancelOrder(r.Context(), req.Caller, req.Order)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

// GetFill returns the fill record of an order hash.
// GET /api/orders/{hash}/fill
func (h *OrderHandler) GetFill(w http.ResponseWriter, r *http.Request) {
	var hash domain.Hash
	if err := hash.UnmarshalText([]byte(r.PathValue("hash"))); err != nil {
		writeError(w, http.StatusBadRequest, "invalid hash: "+err.Error())
		return
	}
	f, err := h.query.GetFill(r.Context(), hash)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fillView{Hash: hash, Remaining: f.Remaining, Done: f.Done, UpdatedAt: f.UpdatedAt})
}

type nonceResponse struct {
	User  domain.Pubkey `json:"user"`
	Nonce uint64        `json:"nonce"`
}

// GetNonce returns a user's nonce floor.
// GET /api/nonces/{user}
func (h *OrderHandler) GetNonce(w http.ResponseWriter, r *http.Request) {
	user, err := pathKey(r, "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.query.GetNonce(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonceResponse{User: user, Nonce: n})
}

// IncrementNonce invalidates every order of the user below the new floor.
// POST /api/nonces/{user}/increment
func (h *OrderHandler) IncrementNonce(w http.ResponseWriter, r *http.Request) {
	user, err := pathKey(r, "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.admin.IncrementNonce(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonceResponse{User: user, Nonce: n})
}

// ListPositions returns every position of a user.
// GET /api/users/{user}/positions
func (h *OrderHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	user, err := pathKey(r, "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	positions, err := h.query.ListPositions(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]positionView, len(positions))
	for i, p := range positions {
		out[i] = positionView{Market: p.Market, User: p.User, Collateral: p.Collateral, Yes: p.Yes, No: p.No, UpdatedAt: p.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetWallet returns a user's wallet balance.
// GET /api/users/{user}/wallet
func (h *OrderHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	user, err := pathKey(r, "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := h.query.GetBalance(r.Context(), domain.WalletOf(user))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "balance": bal})
}
