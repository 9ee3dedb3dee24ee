package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// QueryService serves read-only views of the ledger.
type QueryService struct {
	tx     domain.TxRunner
	cache  domain.MarketCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewQueryService creates a QueryService. cache may be nil.
func NewQueryService(tx domain.TxRunner, cache domain.MarketCache, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{tx: tx, cache: cache, logger: logger.With(slog.String("component", "query"))}
}

// Account is one user's holdings in a market plus their wallet balance.
type Account struct {
	Market     domain.Pubkey `json:"market"`
	User       domain.Pubkey `json:"user"`
	Collateral uint64        `json:"collateral"`
	Yes        uint64        `json:"yes"`
	No         uint64        `json:"no"`
	Wallet     uint64        `json:"wallet"`
}

// GetMarket returns market id, reading through the cache. Concurrent misses
// for the same market share one database read.
func (s *QueryService) GetMarket(ctx context.Context, id domain.Pubkey) (domain.Market, error) {
	if s.cache != nil {
		m, err := s.cache.Get(ctx, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "market cache read failed",
				slog.String("market", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	v, err, _ := s.group.Do(id.String(), func() (any, error) {
		var m domain.Market
		err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
			var err error
			m, err = r.Markets.GetByID(ctx, id)
			return err
		})
		if err != nil {
			return domain.Market{}, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, m); err != nil {
				s.logger.WarnContext(ctx, "market cache fill failed",
					slog.String("market", id.String()),
					slog.String("error", err.Error()),
				)
			}
		}
		return m, nil
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: get market: %w", err)
	}
	return v.(domain.Market), nil
}

// ListMarkets lists markets in status; the empty status lists all.
func (s *QueryService) ListMarkets(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		out, err = r.Markets.ListByStatus(ctx, status, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: list markets: %w", err)
	}
	return out, nil
}

// GetAccount returns user's position in market together with their wallet.
// Users without a position read as zero balances.
func (s *QueryService) GetAccount(ctx context.Context, market, user domain.Pubkey) (Account, error) {
	acct := Account{Market: market, User: user}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		if _, err := r.Markets.GetByID(ctx, market); err != nil {
			return err
		}
		positions, err := r.Positions.GetMany(ctx, market, []domain.Pubkey{user})
		if err != nil {
			return err
		}
		if p, ok := positions[user]; ok {
			acct.Collateral, acct.Yes, acct.No = p.Collateral, p.Yes, p.No
		}
		balances, err := r.Custody.GetMany(ctx, []domain.CustodyKey{domain.WalletOf(user)})
		if err != nil {
			return err
		}
		acct.Wallet = balances[domain.WalletOf(user)]
		return nil
	})
	if err != nil {
		return Account{}, fmt.Errorf("service: get account: %w", err)
	}
	return acct, nil
}

// ListPositions returns every position held by user.
func (s *QueryService) ListPositions(ctx context.Context, user domain.Pubkey) ([]domain.Position, error) {
	var out []domain.Position
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		out, err = r.Positions.ListByUser(ctx, user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: list positions: %w", err)
	}
	return out, nil
}

// GetBalance returns the balance of one custody holding.
func (s *QueryService) GetBalance(ctx context.Context, key domain.CustodyKey) (uint64, error) {
	var bal uint64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		balances, err := r.Custody.GetMany(ctx, []domain.CustodyKey{key})
		if err != nil {
			return err
		}
		bal = balances[key]
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("service: get balance: %w", err)
	}
	return bal, nil
}

// GetFill returns the fill record of an order hash.
func (s *QueryService) GetFill(ctx context.Context, hash domain.Hash) (domain.OrderFill, error) {
	var f domain.OrderFill
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		f, err = r.Fills.Get(ctx, hash)
		return err
	})
	if err != nil {
		return domain.OrderFill{}, fmt.Errorf("service: get fill: %w", err)
	}
	return f, nil
}

// GetNonce returns user's current nonce floor.
func (s *QueryService) GetNonce(ctx context.Context, user domain.Pubkey) (uint64, error) {
	var n uint64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		nonces, err := r.Nonces.GetMany(ctx, []domain.Pubkey{user})
		if err != nil {
			return err
		}
		n = nonces[user]
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("service: get nonce: %w", err)
	}
	return n, nil
}

// ListEvents returns a page of market's event log, oldest first.
func (s *QueryService) ListEvents(ctx context.Context, market domain.Pubkey, opts domain.ListOpts) ([]domain.Event, error) {
	var out []domain.Event
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		out, err = r.Events.ListByMarket(ctx, market, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: list events: %w", err)
	}
	return out, nil
}

// ListAudit returns a page of the audit log.
func (s *QueryService) ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		out, err = r.Audit.List(ctx, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: list audit: %w", err)
	}
	return out, nil
}

// CurrentConfig returns the latest GlobalConfig version.
func (s *QueryService) CurrentConfig(ctx context.Context) (domain.GlobalConfig, error) {
	var cfg domain.GlobalConfig
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		cfg, err = r.Configs.Latest(ctx)
		return err
	})
	if err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("service: current config: %w", err)
	}
	return cfg, nil
}
