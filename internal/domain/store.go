package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists markets.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Update(ctx context.Context, m Market) error
	// GetForUpdate returns the market and, inside a transaction, row-locks it.
	GetForUpdate(ctx context.Context, id Pubkey) (Market, error)
	GetByID(ctx context.Context, id Pubkey) (Market, error)
	ListByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
}

// PositionStore persists per-(user, market) balances.
type PositionStore interface {
	GetMany(ctx context.Context, market Pubkey, users []Pubkey) (map[Pubkey]Position, error)
	Upsert(ctx context.Context, p Position) error
	ListByUser(ctx context.Context, user Pubkey) ([]Position, error)
}

// FillStore persists order fill records.
type FillStore interface {
	GetMany(ctx context.Context, hashes []Hash) (map[Hash]OrderFill, error)
	Upsert(ctx context.Context, f OrderFill) error
	Get(ctx context.Context, hash Hash) (OrderFill, error)
}

// NonceStore persists per-user nonce floors.
type NonceStore interface {
	GetMany(ctx context.Context, users []Pubkey) (map[Pubkey]uint64, error)
	Set(ctx context.Context, user Pubkey, nonce uint64) error
}

// CustodyStore persists collateral holdings.
type CustodyStore interface {
	GetMany(ctx context.Context, keys []CustodyKey) (map[CustodyKey]uint64, error)
	Set(ctx context.Context, key CustodyKey, balance uint64) error
	RecordTransfers(ctx context.Context, transfers []Transfer) error
}

// ConfigStore persists GlobalConfig versions. Insert fails with
// ErrAlreadyExists when the version is taken.
type ConfigStore interface {
	Latest(ctx context.Context) (GlobalConfig, error)
	Insert(ctx context.Context, cfg GlobalConfig) error
}

// EventStore persists the engine event log.
type EventStore interface {
	Append(ctx context.Context, events []Event) error
	ListByMarket(ctx context.Context, market Pubkey, opts ListOpts) ([]Event, error)
	ListUnarchived(ctx context.Context, limit int) ([]Event, error)
	MarkArchived(ctx context.Context, ids []string, path string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Repos bundles stores bound to one unit of work.
type Repos struct {
	Markets   MarketStore
	Positions PositionStore
	Fills     FillStore
	Nonces    NonceStore
	Custody   CustodyStore
	Configs   ConfigStore
	Events    EventStore
	Audit     AuditStore
}

// TxRunner runs fn inside a single all-or-nothing transaction. Returning an
// error from fn rolls back every write made through r.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
