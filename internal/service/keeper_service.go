package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Keeper sweeps active markets and terminates the ones idle past the
// inactivity timeout, collecting the termination reward for Identity.
type Keeper struct {
	exchange    *ExchangeService
	query       *QueryService
	identity    domain.Pubkey
	interval    time.Duration
	concurrency int
	pageSize    int
	now         func() time.Time
	logger      *slog.Logger
}

// NewKeeper creates a Keeper.
func NewKeeper(exchange *ExchangeService, query *QueryService, identity domain.Pubkey,
	interval time.Duration, concurrency int, logger *slog.Logger,
) *Keeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		exchange:    exchange,
		query:       query,
		identity:    identity,
		interval:    interval,
		concurrency: concurrency,
		pageSize:    500,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "keeper")),
	}
}

// Run sweeps every interval until ctx is done.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := k.Sweep(ctx)
			if err != nil {
				k.logger.ErrorContext(ctx, "keeper sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				k.logger.InfoContext(ctx, "keeper sweep terminated markets", slog.Int("count", n))
			}
		}
	}
}

// Sweep terminates every idle active market and returns how many it
// terminated. Markets that another caller resolves first are skipped.
func (k *Keeper) Sweep(ctx context.Context) (int, error) {
	cfg, err := k.query.CurrentConfig(ctx)
	if err != nil {
		return 0, err
	}
	if !cfg.Keeper.IsZero() && cfg.Keeper != k.identity && cfg.Authority != k.identity {
		k.logger.DebugContext(ctx, "keeper role held by another key", slog.String("keeper", cfg.Keeper.String()))
		return 0, nil
	}

	cutoff := k.now().Add(-cfg.InactivityTimeout)
	var idle []domain.Pubkey
	for offset := 0; ; offset += k.pageSize {
		page, err := k.query.ListMarkets(ctx, domain.MarketStatusActive, domain.ListOpts{Limit: k.pageSize, Offset: offset})
		if err != nil {
			return 0, err
		}
		for _, m := range page {
			if !m.LastActivityAt.After(cutoff) {
				idle = append(idle, m.ID)
			}
		}
		if len(page) < k.pageSize {
			break
		}
	}

	var terminated int
	results := make([]bool, len(idle))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.concurrency)
	for i, id := range idle {
		g.Go(func() error {
			res, err := k.exchange.TerminateIfInactive(gctx, id, k.identity)
			switch {
			case err == nil:
				// No events means the market traded since the listing.
				results[i] = len(res.Events) > 0
			case errors.Is(err, domain.ErrMarketNotActive):
				// Resolved by another caller.
			default:
				k.logger.WarnContext(gctx, "inactivity termination failed",
					slog.String("market", id.String()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	for _, ok := range results {
		if ok {
			terminated++
		}
	}
	return terminated, nil
}
