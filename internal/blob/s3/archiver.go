package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// ArchiveContentType is the content type of archive objects: a sequence of
// varint-length-delimited google.protobuf.Struct messages, one per event.
const ArchiveContentType = "application/x-protobuf; delimited=true"

// EventArchiver moves engine events from the primary store to object
// storage. Archived rows stay in Postgres; they are only marked with the
// object path.
type EventArchiver struct {
	events    domain.EventStore
	store     domain.ObjectStore
	audit     domain.AuditStore
	prefix    string
	batchSize int
	now       func() time.Time
}

// NewEventArchiver creates an EventArchiver writing under prefix.
func NewEventArchiver(events domain.EventStore, store domain.ObjectStore, audit domain.AuditStore, prefix string, batchSize int) *EventArchiver {
	if prefix == "" {
		prefix = "events"
	}
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &EventArchiver{
		events:    events,
		store:     store,
		audit:     audit,
		prefix:    prefix,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// ArchiveOnce uploads one batch of unarchived events and marks them. It
// returns the object path and the number of events archived; zero events
// means nothing was pending and no object was written.
func (a *EventArchiver) ArchiveOnce(ctx context.Context) (string, int, error) {
	events, err := a.events.ListUnarchived(ctx, a.batchSize)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: list unarchived: %w", err)
	}
	if len(events) == 0 {
		return "", 0, nil
	}

	buf, err := EncodeEvents(events)
	if err != nil {
		return "", 0, err
	}

	now := a.now().UTC()
	key := path.Join(a.prefix, now.Format("2006/01/02"), uuid.NewString()+".pb")

	first, last := events[0].ID, events[len(events)-1].ID
	meta := map[string]string{
		"event-count": strconv.Itoa(len(events)),
		"first-event": first,
		"last-event":  last,
	}
	if err := a.store.Put(ctx, key, buf, ArchiveContentType, meta); err != nil {
		return "", 0, fmt.Errorf("s3blob: upload %s: %w", key, err)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := a.events.MarkArchived(ctx, ids, key); err != nil {
		return key, 0, fmt.Errorf("s3blob: mark archived: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.events", map[string]any{
			"path":  key,
			"count": len(events),
			"first": first,
			"last":  last,
		}); err != nil {
			return key, len(events), fmt.Errorf("s3blob: audit archive: %w", err)
		}
	}
	return key, len(events), nil
}

// EncodeEvents serialises events as length-delimited Structs.
func EncodeEvents(events []domain.Event) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("s3blob: encode event %d: %w", i, err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("s3blob: encode event %d: %w", i, err)
		}
		st, err := structpb.NewStruct(m)
		if err != nil {
			return nil, fmt.Errorf("s3blob: encode event %d: %w", i, err)
		}
		if _, err := protodelim.MarshalTo(&buf, st); err != nil {
			return nil, fmt.Errorf("s3blob: write event %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeEvents reads an archive object back. Payloads come back as
// json.RawMessage.
func DecodeEvents(r io.Reader) ([]domain.Event, error) {
	br := bufio.NewReader(r)
	var events []domain.Event
	for {
		st := &structpb.Struct{}
		if err := protodelim.UnmarshalFrom(br, st); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return nil, fmt.Errorf("s3blob: decode event %d: %w", len(events), err)
		}

		raw, err := json.Marshal(st.AsMap())
		if err != nil {
			return nil, fmt.Errorf("s3blob: decode event %d: %w", len(events), err)
		}
		var e struct {
			domain.Event
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("s3blob: decode event %d: %w", len(events), err)
		}
		ev := e.Event
		ev.Payload = e.Payload
		events = append(events, ev)
	}
}
