package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// EventStore implements domain.EventStore on engine_events. Payloads are
// stored as JSONB and come back as json.RawMessage.
type EventStore struct {
	db DBTX
}

// NewEventStore creates an EventStore on db.
func NewEventStore(db DBTX) *EventStore {
	return &EventStore{db: db}
}

const eventSelectCols = `id::text, kind, market, slot, ts, payload`

// Append writes events in order.
func (s *EventStore) Append(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	const query = `
		INSERT INTO engine_events (id, kind, market, slot, ts, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`

	batch := &pgx.Batch{}
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("postgres: marshal %s payload: %w", e.Kind, err)
		}
		batch.Queue(query, e.ID, string(e.Kind), e.Market[:], e.Slot, e.Timestamp, payload)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append event %d (%s): %w", i, events[i].Kind, err)
		}
	}
	return nil
}

// ListByMarket returns events for market in emission order.
func (s *EventStore) ListByMarket(ctx context.Context, market domain.Pubkey, opts domain.ListOpts) ([]domain.Event, error) {
	query, args := pageClause(
		`SELECT `+eventSelectCols+` FROM engine_events WHERE market = $1`,
		[]any{market[:]}, "ts", "seq ASC", opts,
	)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events %s: %w", market, err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// ListUnarchived returns up to limit events not yet archived, oldest first.
func (s *EventStore) ListUnarchived(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventSelectCols+` FROM engine_events WHERE archived_at IS NULL ORDER BY seq ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unarchived events: %w", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// MarkArchived records that ids were written to the archive object path.
func (s *EventStore) MarkArchived(ctx context.Context, ids []string, path string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE engine_events SET archived_path = $1, archived_at = NOW() WHERE id = ANY($2::uuid[])`,
		path, ids,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark %d events archived: %w", len(ids), err)
	}
	return nil
}

func scanEventRows(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			kind    string
			market  []byte
			payload []byte
		)
		if err := rows.Scan(&e.ID, &kind, &market, &e.Slot, &e.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		pk, err := toPubkey(market)
		if err != nil {
			return nil, fmt.Errorf("postgres: event market: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Market = pk
		if payload != nil {
			e.Payload = json.RawMessage(payload)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: event rows: %w", err)
	}
	return events, nil
}

var _ domain.EventStore = (*EventStore)(nil)
