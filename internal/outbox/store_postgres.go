package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"contactlink/pkg/platform/tx"
)

const insertEventSQL = `
	INSERT INTO contact_outbox (id, event_type, aggregate_id, payload, created_at)
	VALUES ($1, $2, $3, $4, $5)
`

// Insert writes event through exec, which is normally the reconciliation's
// *sql.Tx so the event commits or rolls back with the contact writes.
func Insert(ctx context.Context, exec tx.Executor, event Event) error {
	_, err := exec.ExecContext(ctx, insertEventSQL,
		event.ID,
		string(event.Type),
		event.AggregateID,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// PostgresStore claims unpublished events for the relay worker.
type PostgresStore struct {
	runner *tx.Runner
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{runner: &tx.Runner{DB: db}}
}

// ProcessBatch locks up to limit unpublished events, hands them to fn and marks
// them published when fn succeeds. Concurrent relays skip rows another relay
// holds. It returns the number of events published.
func (s *PostgresStore) ProcessBatch(ctx context.Context, limit int, fn func([]Event) error) (int, error) {
	var published int
	err := s.runner.Run(ctx, func(t *sql.Tx) error {
		published = 0
		events, err := claim(ctx, t, limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		if err := fn(events); err != nil {
			return err
		}
		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID.String()
		}
		_, err = t.ExecContext(ctx,
			`UPDATE contact_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
			time.Now(), pq.Array(ids),
		)
		if err != nil {
			return fmt.Errorf("mark outbox published: %w", err)
		}
		published = len(events)
		return nil
	})
	return published, err
}

func claim(ctx context.Context, t *sql.Tx, limit int) ([]Event, error) {
	rows, err := t.QueryContext(ctx, `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM contact_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			id        string
			eventType string
		)
		if err := rows.Scan(&id, &eventType, &e.AggregateID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse outbox id %q: %w", id, err)
		}
		e.ID = parsed
		e.Type = EventType(eventType)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return events, nil
}
