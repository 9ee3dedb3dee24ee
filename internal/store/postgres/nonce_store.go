package postgres

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// NonceStore implements domain.NonceStore.
type NonceStore struct {
	db DBTX
}

// NewNonceStore creates a NonceStore on db.
func NewNonceStore(db DBTX) *NonceStore {
	return &NonceStore{db: db}
}

// GetMany returns the stored nonce floor of each user that has one.
func (s *NonceStore) GetMany(ctx context.Context, users []domain.Pubkey) (map[domain.Pubkey]uint64, error) {
	out := make(map[domain.Pubkey]uint64, len(users))
	if len(users) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT user_key, nonce FROM user_nonces WHERE user_key = ANY($1)`, keyBytes(users))
	if err != nil {
		return nil, fmt.Errorf("postgres: get nonces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			raw   []byte
			nonce uint64
		)
		if err := rows.Scan(&raw, &nonce); err != nil {
			return nil, fmt.Errorf("postgres: scan nonce: %w", err)
		}
		user, err := toPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("postgres: nonce user: %w", err)
		}
		out[user] = nonce
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: nonce rows: %w", err)
	}
	return out, nil
}

// Set stores nonce as the floor for user.
func (s *NonceStore) Set(ctx context.Context, user domain.Pubkey, nonce uint64) error {
	const query = `
		INSERT INTO user_nonces (user_key, nonce, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_key) DO UPDATE SET
			nonce      = EXCLUDED.nonce,
			updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, user[:], nonce); err != nil {
		return fmt.Errorf("postgres: set nonce %s: %w", user, err)
	}
	return nil
}

var _ domain.NonceStore = (*NonceStore)(nil)
