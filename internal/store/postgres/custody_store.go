package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// CustodyStore implements domain.CustodyStore. Treasuries are stored with a
// zero owner.
type CustodyStore struct {
	db DBTX
}

// NewCustodyStore creates a CustodyStore on db.
func NewCustodyStore(db DBTX) *CustodyStore {
	return &CustodyStore{db: db}
}

// GetMany returns the balances of keys and row-locks them for the enclosing
// transaction. Missing rows are created at zero first so concurrent
// writers to a new holding still serialize on its row.
func (s *CustodyStore) GetMany(ctx context.Context, keys []domain.CustodyKey) (map[domain.CustodyKey]uint64, error) {
	out := make(map[domain.CustodyKey]uint64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	kinds := make([]string, len(keys))
	owners := make([][]byte, len(keys))
	for i := range keys {
		kinds[i] = string(keys[i].Kind)
		owners[i] = keys[i].Owner[:]
	}

	const ensure = `
		INSERT INTO custody_balances (kind, owner, balance)
		SELECT kind, owner, 0 FROM unnest($1::text[], $2::bytea[]) AS k(kind, owner)
		ORDER BY kind, owner
		ON CONFLICT (kind, owner) DO NOTHING`
	if _, err := s.db.Exec(ctx, ensure, kinds, owners); err != nil {
		return nil, fmt.Errorf("postgres: ensure custody rows: %w", err)
	}

	const query = `
		SELECT c.kind, c.owner, c.balance
		FROM custody_balances c
		JOIN unnest($1::text[], $2::bytea[]) AS k(kind, owner)
		  ON c.kind = k.kind AND c.owner = k.owner
		ORDER BY c.kind, c.owner
		FOR UPDATE OF c`

	rows, err := s.db.Query(ctx, query, kinds, owners)
	if err != nil {
		return nil, fmt.Errorf("postgres: get custody: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind    string
			owner   []byte
			balance uint64
		)
		if err := rows.Scan(&kind, &owner, &balance); err != nil {
			return nil, fmt.Errorf("postgres: scan custody: %w", err)
		}
		pk, err := toPubkey(owner)
		if err != nil {
			return nil, fmt.Errorf("postgres: custody owner: %w", err)
		}
		out[domain.CustodyKey{Kind: domain.CustodyKind(kind), Owner: pk}] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: custody rows: %w", err)
	}
	return out, nil
}

// Set stores balance for key.
func (s *CustodyStore) Set(ctx context.Context, key domain.CustodyKey, balance uint64) error {
	const query = `
		INSERT INTO custody_balances (kind, owner, balance, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind, owner) DO UPDATE SET
			balance    = EXCLUDED.balance,
			updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, string(key.Kind), key.Owner[:], balance); err != nil {
		return fmt.Errorf("postgres: set custody %s: %w", key, err)
	}
	return nil
}

// RecordTransfers appends transfers to the movement journal in one batch.
func (s *CustodyStore) RecordTransfers(ctx context.Context, transfers []domain.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	const query = `
		INSERT INTO custody_transfers (from_kind, from_owner, to_kind, to_owner, amount)
		VALUES ($1, $2, $3, $4, $5)`

	batch := &pgx.Batch{}
	for _, t := range transfers {
		batch.Queue(query, string(t.From.Kind), t.From.Owner[:], string(t.To.Kind), t.To.Owner[:], t.Amount)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range transfers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: record transfer %d: %w", i, err)
		}
	}
	return nil
}

var _ domain.CustodyStore = (*CustodyStore)(nil)
