package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

var errNoRows = pgx.ErrNoRows

const bookingColumns = `id::text, host_id, event_type_id::text, start_at, end_at, status,
	guest_name, guest_email, guest_timezone, notes, token_hash, cancelled_at, reason, created_at, updated_at`

func scanBooking(row scanner) (model.Booking, error) {
	var b model.Booking
	var status string
	err := row.Scan(&b.ID, &b.HostID, &b.EventTypeID, &b.Start, &b.End, &status,
		&b.Guest.Name, &b.Guest.Email, &b.Guest.Timezone, &b.Notes, &b.TokenHash, &b.CancelledAt, &b.Reason,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// blockingBookings joins event_types so every booking carries the current
// buffers of its own event type.
func blockingBookings(ctx context.Context, q querier, hostID string, from, to time.Time, excludeID string) ([]model.BusyBooking, error) {
	rows, err := q.Query(ctx, `
		SELECT b.id::text, b.event_type_id::text, b.start_at, b.end_at, et.buffer_before, et.buffer_after
		FROM bookings b
		JOIN event_types et ON et.id = b.event_type_id
		WHERE b.host_id = $1
		  AND b.status <> 'CANCELLED'
		  AND b.start_at < $3
		  AND b.end_at > $2
		  AND ($4 = '' OR b.id::text <> $4)
		ORDER BY b.start_at
	`, hostID, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BusyBooking
	for rows.Next() {
		var bb model.BusyBooking
		var before, after int
		if err := rows.Scan(&bb.ID, &bb.EventTypeID, &bb.Start, &bb.End, &before, &after); err != nil {
			return nil, err
		}
		bb.BufferBefore = time.Duration(before) * time.Minute
		bb.BufferAfter = time.Duration(after) * time.Minute
		out = append(out, bb)
	}
	return out, rows.Err()
}

func (s *Store) BlockingBookings(ctx context.Context, hostID string, from, to time.Time, excludeID string) ([]model.BusyBooking, error) {
	return blockingBookings(ctx, s.pool, hostID, from, to, excludeID)
}

func (s *Store) Booking(ctx context.Context, id string) (model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, notFound(errNoRows, "booking")
	}
	b, err := scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return model.Booking{}, notFound(err, "booking")
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, hostID string, f booking.ListFilter) ([]model.Booking, error) {
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE host_id = $1
		  AND ($2::timestamptz IS NULL OR end_at > $2)
		  AND ($3::timestamptz IS NULL OR start_at < $3)
		  AND ($4 = '' OR status = $4)
		ORDER BY start_at
		LIMIT $5
	`, hostID, from, to, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// WithHostLock runs fn in a transaction holding a transaction-scoped
// advisory lock on the host, so commits for one host are serialised while
// other hosts proceed in parallel.
func (s *Store) WithHostLock(ctx context.Context, hostID string, fn func(ctx context.Context, tx booking.Tx) error) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "host:"+hostID); err != nil {
			return err
		}
		return fn(ctx, &bookingTx{tx: tx, outbox: s.outbox})
	})
}

type bookingTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *bookingTx) BlockingBookings(ctx context.Context, hostID string, from, to time.Time, excludeID string) ([]model.BusyBooking, error) {
	return blockingBookings(ctx, t.tx, hostID, from, to, excludeID)
}

func (t *bookingTx) InsertBooking(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (id, host_id, event_type_id, start_at, end_at, status,
			guest_name, guest_email, guest_timezone, notes, token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, b.ID, b.HostID, b.EventTypeID, b.Start, b.End, string(b.Status),
		b.Guest.Name, b.Guest.Email, b.Guest.Timezone, b.Notes, b.TokenHash, b.CreatedAt, b.UpdatedAt)
	return err
}

func (t *bookingTx) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return model.Booking{}, notFound(err, "booking")
	}
	return b, nil
}

func (t *bookingTx) UpdateBooking(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET start_at = $2, end_at = $3, status = $4, cancelled_at = $5, reason = $6, updated_at = $7
		WHERE id = $1
	`, b.ID, b.Start, b.End, string(b.Status), b.CancelledAt, b.Reason, b.UpdatedAt)
	return err
}

func (t *bookingTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}
