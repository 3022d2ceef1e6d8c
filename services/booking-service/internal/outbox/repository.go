package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Record is an outbox row as the publisher sees it.
type Record struct {
	ID            int64     `db:"id"`
	EventID       string    `db:"event_id"`
	AggregateType string    `db:"aggregate_type"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Payload       []byte    `db:"payload"`
	Traceparent   string    `db:"traceparent"`
	Tracestate    string    `db:"tracestate"`
	CreatedAt     time.Time `db:"created_at"`
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert stores evt with the caller's trace context. It must run in the
// transaction of the booking write it describes.
func (r *Repository) Insert(ctx context.Context, q Querier, evt Event) error {
	tc := otelx.CaptureTraceContext(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Parent, tc.State)
	return err
}

// ClaimPending locks up to limit unpublished rows in id order. Rows locked
// by another publisher are skipped, so replicas can poll concurrently.
func (r *Repository) ClaimPending(ctx context.Context, q Querier, limit int) ([]Record, error) {
	rows, err := q.Query(ctx, `
		SELECT id, event_id::text AS event_id, aggregate_type, aggregate_id, event_type,
		       payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Record])
}

func (r *Repository) MarkPublished(ctx context.Context, q Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return err
}

// Prune deletes rows published before cutoff and reports how many went.
func (r *Repository) Prune(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
