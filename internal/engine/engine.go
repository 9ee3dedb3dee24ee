// Package engine is the entry point for every state-changing market
// operation. Each call runs against a private copy of the caller's State and
// returns that copy with the events it produced; on error the copy is
// dropped, so a failed call never leaves partial changes behind.
//
// The engine performs no locking and no I/O. The host serializes calls per
// market and persists the returned state.
package engine

import (
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/order"
	"github.com/alanyoungcy/marketengine/internal/position"
)

// State is the working set of one market operation.
type State struct {
	Config *domain.GlobalConfig
	Book   *position.Book
	Fills  map[domain.Hash]*domain.OrderFill
	Nonces map[domain.Pubkey]uint64
}

// NewState returns a State for market with empty lookup tables.
func NewState(cfg domain.GlobalConfig, m *domain.Market, now time.Time) *State {
	return &State{
		Config: &cfg,
		Book:   position.NewBook(m, now),
		Fills:  make(map[domain.Hash]*domain.OrderFill),
		Nonces: make(map[domain.Pubkey]uint64),
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	cfg := s.Config.Clone()
	c := &State{
		Config: &cfg,
		Book:   s.Book.Clone(),
		Fills:  make(map[domain.Hash]*domain.OrderFill, len(s.Fills)),
		Nonces: maps.Clone(s.Nonces),
	}
	if c.Nonces == nil {
		c.Nonces = make(map[domain.Pubkey]uint64)
	}
	for h, f := range s.Fills {
		cp := *f
		c.Fills[h] = &cp
	}
	return c
}

// Env is the host clock at the time of a call.
type Env struct {
	Now  time.Time
	Slot uint64
}

// Result is the outcome of a successful market operation.
type Result struct {
	State  *State
	Events []domain.Event
}

// ConfigResult is the outcome of a successful configuration change. Config
// carries the next version.
type ConfigResult struct {
	Config domain.GlobalConfig
	Events []domain.Event
}

// Engine applies operations to States.
type Engine struct {
	verifier order.Verifier
	logger   *slog.Logger
	newID    func() string
}

// New creates an Engine that authenticates orders and settlement messages
// with verifier.
func New(verifier order.Verifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		verifier: verifier,
		logger:   logger.With(slog.String("component", "engine")),
		newID:    uuid.NewString,
	}
}

// recorder collects the events of one call.
type recorder struct {
	e      *Engine
	env    Env
	market domain.Pubkey
	events []domain.Event
}

func (r *recorder) emit(kind domain.EventKind, payload any) {
	r.events = append(r.events, domain.Event{
		ID:        r.e.newID(),
		Kind:      kind,
		Market:    r.market,
		Slot:      r.env.Slot,
		Timestamp: r.env.Now,
		Payload:   payload,
	})
}

// apply runs fn against a copy of s stamped with env.
func (e *Engine) apply(s *State, env Env, fn func(w *State, r *recorder) error) (*Result, error) {
	w := s.Clone()
	w.Book.Now = env.Now
	w.Book.Transfers = nil
	r := &recorder{e: e, env: env, market: w.Book.Market.ID}
	if err := fn(w, r); err != nil {
		return nil, err
	}
	return &Result{State: w, Events: r.events}, nil
}

// applyConfig runs fn against a copy of cfg and bumps its version.
func (e *Engine) applyConfig(cfg domain.GlobalConfig, env Env, fn func(c *domain.GlobalConfig, r *recorder) error) (*ConfigResult, error) {
	c := cfg.Clone()
	r := &recorder{e: e, env: env}
	if err := fn(&c, r); err != nil {
		return nil, err
	}
	c.Version++
	c.UpdatedAt = env.Now
	return &ConfigResult{Config: c, Events: r.events}, nil
}
