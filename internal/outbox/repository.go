package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/mentor-appointments/internal/appointment"
)

// Source hands out batches of unpublished events. fn runs while the batch is
// claimed; the batch is marked published only if fn returns nil.
type Source interface {
	Claim(ctx context.Context, limit int, fn func(ctx context.Context, events []appointment.EventRecord) error) (int, error)
}

type PgSource struct {
	pool *pgxpool.Pool
}

func NewPgSource(pool *pgxpool.Pool) *PgSource {
	return &PgSource{pool: pool}
}

func (s *PgSource) Claim(ctx context.Context, limit int, fn func(ctx context.Context, events []appointment.EventRecord) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	events, err := fetchUnpublished(ctx, tx, limit)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, tx.Commit(ctx)
	}

	if err := fn(ctx, events); err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE appointment_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids); err != nil {
		return 0, fmt.Errorf("mark events published: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(events), nil
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]appointment.EventRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, appointment_id, COALESCE(payload::text, ''), created_at
		FROM appointment_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []appointment.EventRecord
	for rows.Next() {
		var ev appointment.EventRecord
		var payload string
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if payload != "" {
			ev.Payload = []byte(payload)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
