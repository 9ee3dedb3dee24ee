package service

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// memDB is an in-memory ledger whose transactions roll back on error.
type memDB struct {
	mu        sync.Mutex
	markets   map[domain.Pubkey]domain.Market
	positions map[[2]domain.Pubkey]domain.Position
	fills     map[domain.Hash]domain.OrderFill
	nonces    map[domain.Pubkey]uint64
	custody   map[domain.CustodyKey]uint64
	transfers []domain.Transfer
	configs   []domain.GlobalConfig
	events    []domain.Event
	archived  map[string]string
	audit     []domain.AuditEntry
}

func newMemDB() *memDB {
	return &memDB{
		markets:   map[domain.Pubkey]domain.Market{},
		positions: map[[2]domain.Pubkey]domain.Position{},
		fills:     map[domain.Hash]domain.OrderFill{},
		nonces:    map[domain.Pubkey]uint64{},
		custody:   map[domain.CustodyKey]uint64{},
		archived:  map[string]string{},
	}
}

func (db *memDB) snapshot() *memDB {
	return &memDB{
		markets:   maps.Clone(db.markets),
		positions: maps.Clone(db.positions),
		fills:     maps.Clone(db.fills),
		nonces:    maps.Clone(db.nonces),
		custody:   maps.Clone(db.custody),
		transfers: slices.Clone(db.transfers),
		configs:   slices.Clone(db.configs),
		events:    slices.Clone(db.events),
		archived:  maps.Clone(db.archived),
		audit:     slices.Clone(db.audit),
	}
}

func (db *memDB) restore(s *memDB) {
	db.markets, db.positions, db.fills = s.markets, s.positions, s.fills
	db.nonces, db.custody, db.transfers = s.nonces, s.custody, s.transfers
	db.configs, db.events, db.archived, db.audit = s.configs, s.events, s.archived, s.audit
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, r domain.Repos) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := db.snapshot()
	r := domain.Repos{
		Markets:   memMarkets{db},
		Positions: memPositions{db},
		Fills:     memFills{db},
		Nonces:    memNonces{db},
		Custody:   memCustody{db},
		Configs:   memConfigs{db},
		Events:    memEvents{db},
		Audit:     memAudit{db},
	}
	if err := fn(ctx, r); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *memDB) auditEvents() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, len(db.audit))
	for i, a := range db.audit {
		out[i] = a.Event
	}
	return out
}

type memMarkets struct{ db *memDB }

func (s memMarkets) Create(_ context.Context, m domain.Market) error {
	if _, ok := s.db.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.db.markets[m.ID] = *m.Clone()
	return nil
}

func (s memMarkets) Update(_ context.Context, m domain.Market) error {
	if _, ok := s.db.markets[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.db.markets[m.ID] = *m.Clone()
	return nil
}

func (s memMarkets) GetForUpdate(ctx context.Context, id domain.Pubkey) (domain.Market, error) {
	return s.GetByID(ctx, id)
}

func (s memMarkets) GetByID(_ context.Context, id domain.Pubkey) (domain.Market, error) {
	m, ok := s.db.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return *m.Clone(), nil
}

func (s memMarkets) ListByStatus(_ context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.db.markets {
		if status == "" || m.Status == status {
			out = append(out, *m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type memPositions struct{ db *memDB }

func (s memPositions) GetMany(_ context.Context, market domain.Pubkey, users []domain.Pubkey) (map[domain.Pubkey]domain.Position, error) {
	out := map[domain.Pubkey]domain.Position{}
	for _, u := range users {
		if p, ok := s.db.positions[[2]domain.Pubkey{market, u}]; ok {
			out[u] = p
		}
	}
	return out, nil
}

func (s memPositions) Upsert(_ context.Context, p domain.Position) error {
	s.db.positions[[2]domain.Pubkey{p.Market, p.User}] = p
	return nil
}

func (s memPositions) ListByUser(_ context.Context, user domain.Pubkey) ([]domain.Position, error) {
	var out []domain.Position
	for k, p := range s.db.positions {
		if k[1] == user {
			out = append(out, p)
		}
	}
	return out, nil
}

type memFills struct{ db *memDB }

func (s memFills) GetMany(_ context.Context, hashes []domain.Hash) (map[domain.Hash]domain.OrderFill, error) {
	out := map[domain.Hash]domain.OrderFill{}
	for _, h := range hashes {
		if f, ok := s.db.fills[h]; ok {
			out[h] = f
		}
	}
	return out, nil
}

func (s memFills) Upsert(_ context.Context, f domain.OrderFill) error {
	s.db.fills[f.Hash] = f
	return nil
}

func (s memFills) Get(_ context.Context, h domain.Hash) (domain.OrderFill, error) {
	f, ok := s.db.fills[h]
	if !ok {
		return domain.OrderFill{}, domain.ErrNotFound
	}
	return f, nil
}

type memNonces struct{ db *memDB }

func (s memNonces) GetMany(_ context.Context, users []domain.Pubkey) (map[domain.Pubkey]uint64, error) {
	out := map[domain.Pubkey]uint64{}
	for _, u := range users {
		if n, ok := s.db.nonces[u]; ok {
			out[u] = n
		}
	}
	return out, nil
}

func (s memNonces) Set(_ context.Context, user domain.Pubkey, nonce uint64) error {
	s.db.nonces[user] = nonce
	return nil
}

type memCustody struct{ db *memDB }

func (s memCustody) GetMany(_ context.Context, keys []domain.CustodyKey) (map[domain.CustodyKey]uint64, error) {
	out := map[domain.CustodyKey]uint64{}
	for _, k := range keys {
		out[k] = s.db.custody[k]
	}
	return out, nil
}

func (s memCustody) Set(_ context.Context, k domain.CustodyKey, balance uint64) error {
	s.db.custody[k] = balance
	return nil
}

func (s memCustody) RecordTransfers(_ context.Context, transfers []domain.Transfer) error {
	s.db.transfers = append(s.db.transfers, transfers...)
	return nil
}

type memConfigs struct{ db *memDB }

func (s memConfigs) Latest(context.Context) (domain.GlobalConfig, error) {
	if len(s.db.configs) == 0 {
		return domain.GlobalConfig{}, domain.ErrNotFound
	}
	return s.db.configs[len(s.db.configs)-1].Clone(), nil
}

func (s memConfigs) Insert(_ context.Context, cfg domain.GlobalConfig) error {
	for _, c := range s.db.configs {
		if c.Version == cfg.Version {
			return domain.ErrAlreadyExists
		}
	}
	s.db.configs = append(s.db.configs, cfg.Clone())
	return nil
}

type memEvents struct{ db *memDB }

func (s memEvents) Append(_ context.Context, events []domain.Event) error {
	s.db.events = append(s.db.events, events...)
	return nil
}

func (s memEvents) ListByMarket(_ context.Context, market domain.Pubkey, opts domain.ListOpts) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range s.db.events {
		if e.Market == market {
			out = append(out, e)
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s memEvents) ListUnarchived(_ context.Context, limit int) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range s.db.events {
		if _, ok := s.db.archived[e.ID]; !ok {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s memEvents) MarkArchived(_ context.Context, ids []string, path string) error {
	for _, id := range ids {
		s.db.archived[id] = path
	}
	return nil
}

type memAudit struct{ db *memDB }

func (s memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	s.db.audit = append(s.db.audit, domain.AuditEntry{
		ID: int64(len(s.db.audit) + 1), Event: event, Detail: detail, CreatedAt: time.Now(),
	})
	return nil
}

func (s memAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	out := slices.Clone(s.db.audit)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// memLocks is a process-local LockManager.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocks) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	for {
		l.mu.Lock()
		if l.held == nil {
			l.held = map[string]bool{}
		}
		if !l.held[key] {
			l.held[key] = true
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
			}, nil
		}
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, domain.ErrLockHeld
		case <-time.After(time.Millisecond):
		}
	}
}

type fixedClock struct {
	mu   sync.Mutex
	now  time.Time
	slot uint64
}

func (c *fixedClock) Now() (time.Time, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, c.slot
}

func (c *fixedClock) advance(d time.Duration, slots uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slot += slots
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][][]byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = map[string][][]byte{}
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streams == nil {
		b.streams = map[string][][]byte{}
	}
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type memCache struct {
	mu      sync.Mutex
	markets map[domain.Pubkey]domain.Market
	gets    int
}

func (c *memCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markets == nil {
		c.markets = map[domain.Pubkey]domain.Market{}
	}
	c.markets[m.ID] = m
	return nil
}

func (c *memCache) Get(_ context.Context, id domain.Pubkey) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrCacheMiss
	}
	return m, nil
}

func (c *memCache) Invalidate(_ context.Context, id domain.Pubkey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markets, id)
	return nil
}

type memNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *memNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type memMetrics struct {
	mu     sync.Mutex
	ops    map[string]int
	failed map[string]int
	events int
}

func (m *memMetrics) ObserveOp(op string, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops, m.failed = map[string]int{}, map[string]int{}
	}
	m.ops[op]++
	if err != nil {
		m.failed[op]++
	}
}

func (m *memMetrics) ObserveEvents(events []domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events += len(events)
}
