package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// PositionStore implements domain.PositionStore.
type PositionStore struct {
	db DBTX
}

// NewPositionStore creates a PositionStore on db.
func NewPositionStore(db DBTX) *PositionStore {
	return &PositionStore{db: db}
}

const positionSelectCols = `market, user_key, collateral, yes, no, updated_at`

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		var (
			p            domain.Position
			market, user []byte
		)
		if err := rows.Scan(&market, &user, &p.Collateral, &p.Yes, &p.No, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		var err error
		if p.Market, err = toPubkey(market); err != nil {
			return nil, fmt.Errorf("postgres: position market: %w", err)
		}
		if p.User, err = toPubkey(user); err != nil {
			return nil, fmt.Errorf("postgres: position user: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: position rows: %w", err)
	}
	return positions, nil
}

// GetMany returns the stored positions of users in market. Users without a
// row are absent from the map.
func (s *PositionStore) GetMany(ctx context.Context, market domain.Pubkey, users []domain.Pubkey) (map[domain.Pubkey]domain.Position, error) {
	out := make(map[domain.Pubkey]domain.Position, len(users))
	if len(users) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE market = $1 AND user_key = ANY($2)`,
		market[:], keyBytes(users),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get positions %s: %w", market, err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		out[p.User] = p
	}
	return out, nil
}

// Upsert writes p.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (market, user_key, collateral, yes, no, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market, user_key) DO UPDATE SET
			collateral = EXCLUDED.collateral,
			yes        = EXCLUDED.yes,
			no         = EXCLUDED.no,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(ctx, query, p.Market[:], p.User[:], p.Collateral, p.Yes, p.No, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.Market, p.User, err)
	}
	return nil
}

// ListByUser returns every position held by user across markets.
func (s *PositionStore) ListByUser(ctx context.Context, user domain.Pubkey) ([]domain.Position, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE user_key = $1 ORDER BY updated_at DESC`,
		user[:],
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", user, err)
	}
	defer rows.Close()
	return scanPositionRows(rows)
}

var _ domain.PositionStore = (*PositionStore)(nil)
