// Package service hosts the pure engine: it serializes calls per market,
// loads and persists the working set inside one database transaction, and
// fans committed events out to the bus, the market cache, notifications and
// metrics.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
)

// ChannelEvents is the Pub/Sub channel carrying every committed event.
const ChannelEvents = "events"

// StreamFor returns the durable stream name of market's events. Global
// configuration events go to "events:global".
func StreamFor(market domain.Pubkey) string {
	if market.IsZero() {
		return "events:global"
	}
	return "events:" + market.String()
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Metrics records operation outcomes.
type Metrics interface {
	ObserveOp(op string, err error, d time.Duration)
	ObserveEvents(events []domain.Event)
}

// Deps are the collaborators shared by the host services. Bus, Cache,
// Notifier and Metrics are optional.
type Deps struct {
	Tx       domain.TxRunner
	Locks    domain.LockManager
	Clock    domain.SlotClock
	Bus      domain.SignalBus
	Cache    domain.MarketCache
	Notifier Notifier
	Metrics  Metrics
	LockTTL  time.Duration
	Logger   *slog.Logger
}

// host is the transactional runner behind ExchangeService and AdminService.
type host struct {
	Deps
	engine *engine.Engine
	logger *slog.Logger
}

func newHost(eng *engine.Engine, d Deps, component string) *host {
	if d.LockTTL <= 0 {
		d.LockTTL = 10 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &host{Deps: d, engine: eng, logger: logger.With(slog.String("component", component))}
}

// touch names the parts of the ledger an operation may read or write
// besides the market itself.
type touch struct {
	users   []domain.Pubkey // positions and wallets
	hashes  []domain.Hash
	nonces  []domain.Pubkey
	creator *domain.Pubkey // set when the call creates the market
}

// lock acquires key, waiting at most LockTTL.
func (h *host) lock(ctx context.Context, key string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, h.LockTTL)
	defer cancel()
	return h.Locks.Acquire(lockCtx, key, h.LockTTL)
}

// runMarket executes fn for market id under the market lock and inside one
// transaction, then publishes the committed events.
func (h *host) runMarket(ctx context.Context, op string, id domain.Pubkey, t touch, audit map[string]any,
	fn func(*engine.State, engine.Env) (*engine.Result, error),
) (*engine.Result, error) {
	start := time.Now()
	res, err := h.runMarketTx(ctx, id, t, op, audit, fn)
	h.observe(op, err, time.Since(start))
	if err != nil {
		h.logger.DebugContext(ctx, "operation rejected",
			slog.String("op", op),
			slog.String("market", id.String()),
			slog.String("category", string(domain.CategoryOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	h.afterCommit(ctx, res.State.Book.Market, res.Events)
	return res, nil
}

func (h *host) runMarketTx(ctx context.Context, id domain.Pubkey, t touch, op string, audit map[string]any,
	fn func(*engine.State, engine.Env) (*engine.Result, error),
) (*engine.Result, error) {
	unlock, err := h.lock(ctx, "market:"+id.String())
	if err != nil {
		return nil, fmt.Errorf("service: %s: %w", op, err)
	}
	defer unlock()

	now, slot := h.Clock.Now()
	env := engine.Env{Now: now, Slot: slot}

	var (
		res    *engine.Result
		engErr error
	)
	err = h.Tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		st, err := loadState(ctx, r, id, t, now)
		if err != nil {
			return err
		}
		res, engErr = fn(st, env)
		if engErr != nil {
			return engErr
		}
		if err := persistState(ctx, r, st, res, t.creator != nil, now); err != nil {
			return err
		}
		if audit != nil {
			detail := maps.Clone(audit)
			detail["market"] = id.String()
			detail["slot"] = slot
			if err := r.Audit.Log(ctx, op, detail); err != nil {
				return err
			}
		}
		return nil
	})
	if engErr != nil {
		return nil, engErr
	}
	if err != nil {
		return nil, fmt.Errorf("service: %s: %w", op, err)
	}
	return res, nil
}

// loadState assembles the engine working set for one market call.
func loadState(ctx context.Context, r domain.Repos, id domain.Pubkey, t touch, now time.Time) (*engine.State, error) {
	cfg, err := r.Configs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var m domain.Market
	if t.creator != nil {
		existing, err := r.Markets.GetByID(ctx, id)
		switch {
		case err == nil:
			m = existing
		case errors.Is(err, domain.ErrNotFound):
			m = domain.Market{ID: id}
		default:
			return nil, fmt.Errorf("load market: %w", err)
		}
	} else {
		if m, err = r.Markets.GetForUpdate(ctx, id); err != nil {
			return nil, fmt.Errorf("load market: %w", err)
		}
	}
	st := engine.NewState(cfg, &m, now)

	users := uniqueKeys(t.users)
	positions, err := r.Positions.GetMany(ctx, id, users)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	for u, p := range positions {
		st.Book.Positions[u] = &p
	}

	if len(t.hashes) > 0 {
		fills, err := r.Fills.GetMany(ctx, t.hashes)
		if err != nil {
			return nil, fmt.Errorf("load fills: %w", err)
		}
		for hsh, f := range fills {
			st.Fills[hsh] = &f
		}
	}

	if len(t.nonces) > 0 {
		nonces, err := r.Nonces.GetMany(ctx, uniqueKeys(t.nonces))
		if err != nil {
			return nil, fmt.Errorf("load nonces: %w", err)
		}
		maps.Copy(st.Nonces, nonces)
	}

	keys := custodyKeys(m, users, t.creator)
	custody, err := r.Custody.GetMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load custody: %w", err)
	}
	maps.Copy(st.Book.Custody, custody)
	return st, nil
}

// custodyKeys lists every holding a market call may move collateral
// between, sorted so row locks are always taken in the same order.
func custodyKeys(m domain.Market, users []domain.Pubkey, creator *domain.Pubkey) []domain.CustodyKey {
	keys := []domain.CustodyKey{
		domain.VaultOf(m.ID),
		domain.PlatformTreasury(),
		domain.CreatorTreasury(),
		domain.RewardTreasury(),
	}
	owners := slices.Clone(users)
	if !m.Creator.IsZero() {
		owners = append(owners, m.Creator)
	}
	if creator != nil {
		owners = append(owners, *creator)
	}
	for _, u := range uniqueKeys(owners) {
		keys = append(keys, domain.WalletOf(u))
	}
	slices.SortFunc(keys, compareCustody)
	return keys
}

func compareCustody(a, b domain.CustodyKey) int {
	if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
		return c
	}
	return bytes.Compare(a.Owner[:], b.Owner[:])
}

// persistState writes back everything the call changed relative to the
// loaded state st.
func persistState(ctx context.Context, r domain.Repos, st *engine.State, res *engine.Result, create bool, now time.Time) error {
	next := res.State
	m := *next.Book.Market
	if create {
		if err := r.Markets.Create(ctx, m); err != nil {
			return err
		}
	} else if err := r.Markets.Update(ctx, m); err != nil {
		return err
	}

	for _, u := range sortedKeys(next.Book.Positions) {
		p := *next.Book.Positions[u]
		old, ok := st.Book.Positions[u]
		if ok && old.Collateral == p.Collateral && old.Yes == p.Yes && old.No == p.No {
			continue
		}
		if !ok && p.Collateral == 0 && p.Yes == 0 && p.No == 0 {
			continue
		}
		p.Market, p.User, p.UpdatedAt = m.ID, u, now
		if err := r.Positions.Upsert(ctx, p); err != nil {
			return err
		}
	}

	hashes := slices.Collect(maps.Keys(next.Fills))
	slices.SortFunc(hashes, func(a, b domain.Hash) int { return bytes.Compare(a[:], b[:]) })
	for _, hsh := range hashes {
		f := *next.Fills[hsh]
		if old, ok := st.Fills[hsh]; ok && old.Remaining == f.Remaining && old.Done == f.Done {
			continue
		}
		f.Hash = hsh
		if err := r.Fills.Upsert(ctx, f); err != nil {
			return err
		}
	}

	keys := slices.Collect(maps.Keys(next.Book.Custody))
	slices.SortFunc(keys, compareCustody)
	for _, k := range keys {
		v := next.Book.Custody[k]
		old, had := st.Book.Custody[k]
		if (had && old == v) || (!had && v == 0) {
			continue
		}
		if err := r.Custody.Set(ctx, k, v); err != nil {
			return err
		}
	}

	if err := r.Custody.RecordTransfers(ctx, next.Book.Transfers); err != nil {
		return err
	}
	return r.Events.Append(ctx, res.Events)
}

// afterCommit fans out committed events. Failures only warn: the events are
// already durable in the event store.
func (h *host) afterCommit(ctx context.Context, m *domain.Market, events []domain.Event) {
	h.publish(ctx, events)
	if h.Metrics != nil {
		h.Metrics.ObserveEvents(events)
	}
	if m != nil && h.Cache != nil {
		if err := h.Cache.Set(ctx, *m); err != nil {
			h.logger.WarnContext(ctx, "market cache refresh failed",
				slog.String("market", m.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, e := range events {
		if e.IsTerminal() {
			h.notifyTerminal(ctx, m, e)
		}
	}
}

func (h *host) publish(ctx context.Context, events []domain.Event) {
	if h.Bus == nil {
		return
	}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			h.logger.WarnContext(ctx, "event encode failed", slog.String("kind", string(e.Kind)), slog.String("error", err.Error()))
			continue
		}
		if err := h.Bus.Publish(ctx, ChannelEvents, payload); err != nil {
			h.logger.WarnContext(ctx, "event publish failed",
				slog.String("kind", string(e.Kind)),
				slog.String("error", err.Error()),
			)
		}
		if err := h.Bus.StreamAppend(ctx, StreamFor(e.Market), payload); err != nil {
			h.logger.WarnContext(ctx, "event stream append failed",
				slog.String("kind", string(e.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (h *host) notifyTerminal(ctx context.Context, m *domain.Market, e domain.Event) {
	if h.Notifier == nil {
		return
	}
	var title, msg string
	switch p := e.Payload.(type) {
	case domain.MarketSettled:
		title = "Market settled"
		msg = fmt.Sprintf("%s\nwinner: %s\nfinal yes/no: %d / %d\nredeemable: %d",
			question(m), p.WinningOutcome, p.FinalYesPrice, p.FinalNoPrice, p.TotalRedeemable)
	case domain.MarketTerminated:
		title = "Market terminated"
		msg = fmt.Sprintf("%s\nreason: %s\nfinal yes/no: %d / %d\nredeemable: %d",
			question(m), terminationReason(p.Reason), p.FinalYesPrice, p.FinalNoPrice, p.TotalRedeemable)
	default:
		return
	}
	msg += "\nmarket: " + e.Market.String()
	if err := h.Notifier.Notify(ctx, string(e.Kind), title, msg); err != nil {
		h.logger.WarnContext(ctx, "notification failed",
			slog.String("market", e.Market.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (h *host) observe(op string, err error, d time.Duration) {
	if h.Metrics != nil {
		h.Metrics.ObserveOp(op, err, d)
	}
}

func question(m *domain.Market) string {
	if m == nil {
		return ""
	}
	return m.Question
}

func terminationReason(r domain.TerminationReason) string {
	if r == domain.TerminationInactivity {
		return "inactivity"
	}
	return "random check"
}

func uniqueKeys(keys []domain.Pubkey) []domain.Pubkey {
	out := slices.Clone(keys)
	out = slices.DeleteFunc(out, func(k domain.Pubkey) bool { return k.IsZero() })
	slices.SortFunc(out, func(a, b domain.Pubkey) int { return bytes.Compare(a[:], b[:]) })
	return slices.Compact(out)
}

func sortedKeys[V any](m map[domain.Pubkey]V) []domain.Pubkey {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b domain.Pubkey) int { return bytes.Compare(a[:], b[:]) })
	return keys
}
