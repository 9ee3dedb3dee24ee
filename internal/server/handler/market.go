package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/service"
)

// MarketHandler serves market creation, lifecycle and position endpoints.
type MarketHandler struct {
	exchange *service.ExchangeService
	query    *service.QueryService
	logger   *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(exchange *service.ExchangeService, query *service.QueryService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{exchange: exchange, query: query, logger: logger.With(slog.String("handler", "market"))}
}

type createMarketRequest struct {
	ID *domain.Pubkey `json:"id,omitempty"`
	engine.CreateMarketRequest
}

// newMarketID derives a fresh market id from the creator and a random uuid.
func newMarketID(creator domain.Pubkey) domain.Pubkey {
	u := uuid.New()
	buf := make([]byte, 0, len(creator)+len(u))
	buf = append(buf, creator[:]...)
	buf = append(buf, u[:]...)
	return domain.Pubkey(blake3.Sum256(buf))
}

// CreateMarket opens a market. The id is derived when omitted.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := newMarketID(req.Creator)
	if req.ID != nil {
		id = *req.ID
	}
	res, err := h.exchange.CreateMarket(r.Context(), id, req.CreateMarketRequest)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newResultResponse(res))
}

// GetMarket returns one market.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathKey(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.query.GetMarket(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m))
}

// ListMarkets lists markets, optionally filtered by ?status=.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	status := domain.MarketStatus(r.URL.Query().Get("status"))
	markets, err := h.query.ListMarkets(r.Context(), status, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]marketView, len(markets))
	for i, m := range markets {
		out[i] = newMarketView(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListEvents returns the market's event log.
// GET /api/markets/{id}/events
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathKey(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.query.ListEvents(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetAccount returns a user's balances in a market.
// GET /api/markets/{id}/accounts/{user}
func (h *MarketHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathKey(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := pathKey(r, "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := h.query.GetAccount(r.Context(), id, user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type amountRequest struct {
	User   domain.Pubkey `json:"user"`
	Amount uint64        `json:"amount"`
}

type redeemRequest struct {
	User    domain.Pubkey  `json:"user"`
	Outcome domain.Outcome `json:"outcome"`
	Amount  uint64         `json:"amount"`
}

type callerRequest struct {
	Caller domain.Pubkey `json:"caller"`
}

type paramsRequest struct {
	Caller domain.Pubkey `json:"caller"`
	engine.MarketParams
}

// marketCall decodes a body of type T and runs fn for the path's market.
func marketCall[T any](h *MarketHandler, w http.ResponseWriter, r *http.Request, status int,
	fn func(id domain.Pubkey, req T) (*engine.Result, error),
) {
	id, err := pathKey(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req T
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := fn(id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, newResultResponse(res))
}

// Split mints Yes+No pairs from wallet collateral.
// POST /api/markets/{id}/split
func (h *MarketHandler) Split(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req amountRequest) (*engine.Result, error) {
		return h.exchange.Split(r.Context(), id, req.User, req.Amount)
	})
}

// Merge burns Yes+No pairs back into collateral.
// POST /api/markets/{id}/merge
func (h *MarketHandler) Merge(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req amountRequest) (*engine.Result, error) {
		return h.exchange.Merge(r.Context(), id, req.User, req.Amount)
	})
}

// Deposit moves wallet collateral into the market.
// POST /api/markets/{id}/deposit
func (h *MarketHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req amountRequest) (*engine.Result, error) {
		return h.exchange.Deposit(r.Context(), id, req.User, req.Amount)
	})
}

// Withdraw returns market collateral to the wallet.
// POST /api/markets/{id}/withdraw
func (h *MarketHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req amountRequest) (*engine.Result, error) {
		return h.exchange.Withdraw(r.Context(), id, req.User, req.Amount)
	})
}

// Redeem pays out shares of a resolved market.
// POST /api/markets/{id}/redeem
func (h *MarketHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req redeemRequest) (*engine.Result, error) {
		return h.exchange.Redeem(r.Context(), id, req.User, req.Outcome, req.Amount)
	})
}

// CheckTermination runs a randomized termination attempt.
// POST /api/markets/{id}/termination-check
func (h *MarketHandler) CheckTermination(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req service.TerminationCheckRequest) (*engine.Result, error) {
		return h.exchange.CheckTermination(r.Context(), id, req)
	})
}

// Settle resolves the market from its reference trade.
// POST /api/markets/{id}/settle
func (h *MarketHandler) Settle(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req callerRequest) (*engine.Result, error) {
		return h.exchange.SettleMarket(r.Context(), id, req.Caller)
	})
}

// TerminateInactive terminates an idle market.
// POST /api/markets/{id}/terminate-inactive
func (h *MarketHandler) TerminateInactive(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req callerRequest) (*engine.Result, error) {
		return h.exchange.TerminateIfInactive(r.Context(), id, req.Caller)
	})
}

// Pause halts trading on the market.
// POST /api/markets/{id}/pause
func (h *MarketHandler) Pause(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req callerRequest) (*engine.Result, error) {
		return h.exchange.PauseMarket(r.Context(), id, req.Caller)
	})
}

// Resume re-enables trading on the market.
// POST /api/markets/{id}/resume
func (h *MarketHandler) Resume(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req callerRequest) (*engine.Result, error) {
		return h.exchange.ResumeMarket(r.Context(), id, req.Caller)
	})
}

// UpdateParams changes random termination settings.
// POST /api/markets/{id}/params
func (h *MarketHandler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	marketCall(h, w, r, http.StatusOK, func(id domain.Pubkey, req paramsRequest) (*engine.Result, error) {
		return h.exchange.UpdateMarketParams(r.Context(), id, req.Caller, req.MarketParams)
	})
}
