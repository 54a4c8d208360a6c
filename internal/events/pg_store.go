package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists domain events in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent appends one event row and returns the stored record.
func (s *PGStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, topic, aggregate_id, payload, occurred_at`,
		uuid.New(), topic, aggregateID, payload)

	var ev Event
	if err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
		return Event{}, fmt.Errorf("events: insert: %w", err)
	}
	return ev, nil
}
