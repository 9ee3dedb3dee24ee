// Package handler implements the JSON endpoints of the operator API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
)

// maxBody bounds decoded request bodies.
const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusServiceUnavailable
	}
	var ee *domain.EngineError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Category() {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryAuthorization:
		return http.StatusForbidden
	case domain.CategoryState:
		return http.StatusConflict
	case domain.CategoryBalance:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError reports err with its mapped status. Internal failures
// are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, status, errorBody{Error: "internal error", Category: string(domain.CategoryOf(err))})
		return
	}
	var ee *domain.EngineError
	body := errorBody{Error: err.Error()}
	if errors.As(err, &ee) {
		body.Error = ee.Error()
		body.Category = string(ee.Category())
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v, rejecting unknown fields and trailing
// data.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// pathKey parses the 0x-hex key in path parameter name.
func pathKey(r *http.Request, name string) (domain.Pubkey, error) {
	k, err := domain.ParsePubkey(r.PathValue(name))
	if err != nil {
		return domain.Pubkey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return k, nil
}

// parseListOpts reads limit (default 50, max 500), offset, since and until
// (RFC 3339) from the query string.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()
	opts := domain.ListOpts{Limit: 50}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = min(n, 500)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		opts.Offset = n
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &t
	}
	return opts
}

// resultResponse is the body returned by every state-changing market call.
type resultResponse struct {
	Market marketView     `json:"market"`
	Events []domain.Event `json:"events"`
}

func newResultResponse(res *engine.Result) resultResponse {
	events := res.Events
	if events == nil {
		events = []domain.Event{}
	}
	return resultResponse{Market: newMarketView(*res.State.Book.Market), Events: events}
}
