package handler

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/service"
)

// AdminHandler serves global configuration and custody endpoints.
type AdminHandler struct {
	admin  *service.AdminService
	query  *service.QueryService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin *service.AdminService, query *service.QueryService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, query: query, logger: logger.With(slog.String("handler", "admin"))}
}

// GetConfig returns the current global configuration.
// GET /api/config
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.query.CurrentConfig(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newConfigView(cfg))
}

type configResponse struct {
	Config configView     `json:"config"`
	Events []domain.Event `json:"events"`
}

// configCall decodes T and applies fn, answering with the new version.
func configCall[T any](h *AdminHandler, w http.ResponseWriter, r *http.Request,
	fn func(req T) (*engine.ConfigResult, error),
) {
	var req T
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := fn(req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{Config: newConfigView(res.Config), Events: res.Events})
}

type feesRequest struct {
	Caller domain.Pubkey    `json:"caller"`
	Fees   domain.FeeConfig `json:"fees"`
}

type keyRequest struct {
	Caller domain.Pubkey `json:"caller"`
	Key    domain.Pubkey `json:"key"`
}

type pauseRequest struct {
	Caller domain.Pubkey `json:"caller"`
	Paused bool          `json:"paused"`
}

// UpdateFees replaces the fee curve and distribution.
// POST /api/config/fees
func (h *AdminHandler) UpdateFees(w http.ResponseWriter, r *http.Request) {
	configCall(h, w, r, func(req feesRequest) (*engine.ConfigResult, error) {
		return h.admin.UpdateFeeRates(r.Context(), req.Caller, req.Fees)
	})
}

// AddOperator authorizes an operator.
// POST /api/config/operators
func (h *AdminHandler) AddOperator(w http.ResponseWriter, r *http.Request) {
	configCall(h, w, r, func(req keyRequest) (*engine.ConfigResult, error) {
		return h.admin.AddOperator(r.Context(), req.Caller, req.Key)
	})
}

// RemoveOperator revokes an operator.
// POST /api/config/operators/remove
func (h *AdminHandler) RemoveOperator(w http.ResponseWriter, r *http.Request) {
	configCall(h, w, r, func(req keyRequest) (*engine.ConfigResult, error) {
		return h.admin.RemoveOperator(r.Context(), req.Caller, req.Key)
	})
}

// SetKeeper names the inactivity keeper.
// POST /api/config/keeper
func (h *AdminHandler) SetKeeper(w http.ResponseWriter, r *http.Request) {
	configCall(h, w, r, func(req keyRequest) (*engine.ConfigResult, error) {
		return h.admin.SetKeeper(r.Context(), req.Caller, req.Key)
	})
}

// SetTradingPaused toggles the global trading pause.
// POST /api/config/trading
func (h *AdminHandler) SetTradingPaused(w http.ResponseWriter, r *http.Request) {
	configCall(h, w, r, func(req pauseRequest) (*engine.ConfigResult, error) {
		return h.admin.SetTradingPaused(r.Context(), req.Caller, req.Paused)
	})
}

type creditRequest struct {
	Caller domain.Pubkey      `json:"caller"`
	Kind   domain.CustodyKind `json:"kind"`
	Owner  domain.Pubkey      `json:"owner"`
	Amount uint64             `json:"amount"`
}

// CreditCustody records collateral arriving from outside the engine.
// POST /api/custody/credit
func (h *AdminHandler) CreditCustody(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := domain.CustodyKey{Kind: req.Kind, Owner: req.Owner}
	switch req.Kind {
	case domain.CustodyWallet:
		if req.Owner.IsZero() {
			writeError(w, http.StatusBadRequest, "wallet owner required")
			return
		}
	case domain.CustodyPlatformTreasury, domain.CustodyCreatorTreasury, domain.CustodyRewardTreasury:
		key.Owner = domain.Pubkey{}
	default:
		writeError(w, http.StatusBadRequest, "unsupported custody kind")
		return
	}
	bal, err := h.admin.CreditCustody(r.Context(), req.Caller, key, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holding": key.String(), "balance": bal})
}

type withdrawRequest struct {
	Caller    domain.Pubkey      `json:"caller"`
	Treasury  domain.CustodyKind `json:"treasury"`
	Recipient domain.Pubkey      `json:"recipient"`
	Amount    uint64             `json:"amount"`
}

// WithdrawTreasury pays out of the platform or reward treasury.
// POST /api/treasury/withdraw
func (h *AdminHandler) WithdrawTreasury(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.admin.WithdrawTreasury(r.Context(), req.Caller, req.Treasury, req.Recipient, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"treasury_balance":  out.Treasury,
		"recipient_balance": out.Recipient,
		"event":             out.Event,
	})
}

// ListAudit returns a page of the audit log.
// GET /api/audit
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.query.ListAudit(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]auditView, len(entries))
	for i, e := range entries {
		out[i] = auditView{ID: e.ID, Event: e.Event, Detail: e.Detail, CreatedAt: e.CreatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

type randomnessRequest struct {
	Caller domain.Pubkey `json:"caller"`
	Value  hexutil.Bytes `json:"value"`
}

// PublishRandomness relays an oracle value for a market's termination
// checks.
// POST /api/markets/{id}/randomness
func (h *AdminHandler) PublishRandomness(w http.ResponseWriter, r *http.Request) {
	id, err := pathKey(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req randomnessRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Value) != 32 {
		writeError(w, http.StatusBadRequest, "value must be 32 bytes")
		return
	}
	reading, err := h.admin.PublishRandomness(r.Context(), req.Caller, id, [32]byte(req.Value))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"market":    id,
		"slot":      reading.Slot,
		"timestamp": reading.Timestamp,
	})
}
