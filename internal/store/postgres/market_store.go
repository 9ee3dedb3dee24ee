package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// MarketStore implements domain.MarketStore. The full market record lives in
// the data JSONB column; status, creator and timestamps are mirrored into
// indexed columns for listing.
type MarketStore struct {
	db DBTX
}

// NewMarketStore creates a MarketStore on db.
func NewMarketStore(db DBTX) *MarketStore {
	return &MarketStore{db: db}
}

// Create inserts m, returning domain.ErrAlreadyExists if the id is taken.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("postgres: marshal market %s: %w", m.ID, err)
	}

	const query = `
		INSERT INTO markets (id, creator, status, paused, created_at, last_activity_at, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.db.Exec(ctx, query,
		m.ID[:], m.Creator[:], string(m.Status), m.Paused,
		m.CreatedAt, m.LastActivityAt, data,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// Update overwrites the stored record for m.ID.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("postgres: marshal market %s: %w", m.ID, err)
	}

	const query = `
		UPDATE markets SET
			status           = $2,
			paused           = $3,
			last_activity_at = $4,
			data             = $5,
			updated_at       = NOW()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, m.ID[:], string(m.Status), m.Paused, m.LastActivityAt, data)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// GetForUpdate reads the market and row-locks it for the enclosing
// transaction.
func (s *MarketStore) GetForUpdate(ctx context.Context, id domain.Pubkey) (domain.Market, error) {
	return s.get(ctx, `SELECT data FROM markets WHERE id = $1 FOR UPDATE`, id)
}

// GetByID reads the market without locking.
func (s *MarketStore) GetByID(ctx context.Context, id domain.Pubkey) (domain.Market, error) {
	return s.get(ctx, `SELECT data FROM markets WHERE id = $1`, id)
}

func (s *MarketStore) get(ctx context.Context, query string, id domain.Pubkey) (domain.Market, error) {
	var data []byte
	if err := s.db.QueryRow(ctx, query, id[:]).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: unmarshal market %s: %w", id, err)
	}
	return m, nil
}

// ListByStatus returns markets in status, newest first. An empty status
// lists every market.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT data FROM markets WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = $1`
		args = append(args, string(status))
	}
	query, args = pageClause(query, args, "created_at", "created_at DESC", opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		var m domain.Market
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
