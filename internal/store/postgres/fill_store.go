package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// FillStore implements domain.FillStore on the order_fills table.
type FillStore struct {
	db DBTX
}

// NewFillStore creates a FillStore on db.
func NewFillStore(db DBTX) *FillStore {
	return &FillStore{db: db}
}

// GetMany returns fill records for hashes that have one.
func (s *FillStore) GetMany(ctx context.Context, hashes []domain.Hash) (map[domain.Hash]domain.OrderFill, error) {
	out := make(map[domain.Hash]domain.OrderFill, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}
	raw := make([][]byte, len(hashes))
	for i := range hashes {
		raw[i] = hashes[i][:]
	}

	rows, err := s.db.Query(ctx,
		`SELECT hash, remaining, done, updated_at FROM order_fills WHERE hash = ANY($1)`, raw)
	if err != nil {
		return nil, fmt.Errorf("postgres: get fills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f    domain.OrderFill
			hash []byte
		)
		if err := rows.Scan(&hash, &f.Remaining, &f.Done, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		if f.Hash, err = domain.HashFromBytes(hash); err != nil {
			return nil, fmt.Errorf("postgres: fill hash: %w", err)
		}
		out[f.Hash] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fill rows: %w", err)
	}
	return out, nil
}

// Get returns one fill record or domain.ErrNotFound.
func (s *FillStore) Get(ctx context.Context, hash domain.Hash) (domain.OrderFill, error) {
	f := domain.OrderFill{Hash: hash}
	err := s.db.QueryRow(ctx,
		`SELECT remaining, done, updated_at FROM order_fills WHERE hash = $1`, hash[:],
	).Scan(&f.Remaining, &f.Done, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderFill{}, fmt.Errorf("postgres: fill %s: %w", hash, domain.ErrNotFound)
		}
		return domain.OrderFill{}, fmt.Errorf("postgres: get fill %s: %w", hash, err)
	}
	return f, nil
}

// Upsert writes f.
func (s *FillStore) Upsert(ctx context.Context, f domain.OrderFill) error {
	const query = `
		INSERT INTO order_fills (hash, remaining, done, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO UPDATE SET
			remaining  = EXCLUDED.remaining,
			done       = EXCLUDED.done,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.db.Exec(ctx, query, f.Hash[:], f.Remaining, f.Done, f.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: upsert fill %s: %w", f.Hash, err)
	}
	return nil
}

var _ domain.FillStore = (*FillStore)(nil)
