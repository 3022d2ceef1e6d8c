package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const eventTypeColumns = `id::text, host_id, slug, title, duration_minutes, buffer_before, buffer_after,
	min_notice, max_days_ahead, max_attendees, fixed_start_minute, fixed_end_minute, is_active, created_at, updated_at`

func scanEventType(row scanner) (model.EventType, error) {
	var et model.EventType
	var start, end *int
	err := row.Scan(&et.ID, &et.HostID, &et.Slug, &et.Title, &et.DurationMinutes, &et.BufferBefore, &et.BufferAfter,
		&et.MinNotice, &et.MaxDaysAhead, &et.MaxAttendees, &start, &end, &et.Active, &et.CreatedAt, &et.UpdatedAt)
	if err != nil {
		return model.EventType{}, err
	}
	et.FixedWindow = window(start, end)
	return et, nil
}

func (s *Store) EventType(ctx context.Context, id string) (model.EventType, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.EventType{}, notFound(errNoRows, "event type")
	}
	et, err := scanEventType(s.pool.QueryRow(ctx, `SELECT `+eventTypeColumns+` FROM event_types WHERE id = $1`, id))
	if err != nil {
		return model.EventType{}, notFound(err, "event type")
	}
	return et, nil
}

func (s *Store) ListEventTypes(ctx context.Context, hostID string) ([]model.EventType, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventTypeColumns+` FROM event_types WHERE host_id = $1 ORDER BY created_at`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EventType
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, rows.Err()
}

func (s *Store) CreateEventType(ctx context.Context, et model.EventType) (model.EventType, error) {
	if et.ID == "" {
		et.ID = uuid.NewString()
	}
	start, end := bounds(et.FixedWindow)
	return scanEventType(s.pool.QueryRow(ctx, `
		INSERT INTO event_types (id, host_id, slug, title, duration_minutes, buffer_before, buffer_after,
			min_notice, max_days_ahead, max_attendees, fixed_start_minute, fixed_end_minute, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+eventTypeColumns,
		et.ID, et.HostID, et.Slug, et.Title, et.DurationMinutes, et.BufferBefore, et.BufferAfter,
		et.MinNotice, et.MaxDaysAhead, et.MaxAttendees, start, end, et.Active))
}

// UpdateEventType rewrites every setting of a host's event type. Buffers of
// existing bookings follow the new values.
func (s *Store) UpdateEventType(ctx context.Context, et model.EventType) (model.EventType, error) {
	start, end := bounds(et.FixedWindow)
	out, err := scanEventType(s.pool.QueryRow(ctx, `
		UPDATE event_types
		SET slug = $3, title = $4, duration_minutes = $5, buffer_before = $6, buffer_after = $7,
		    min_notice = $8, max_days_ahead = $9, max_attendees = $10,
		    fixed_start_minute = $11, fixed_end_minute = $12, is_active = $13, updated_at = now()
		WHERE id = $1 AND host_id = $2
		RETURNING `+eventTypeColumns,
		et.ID, et.HostID, et.Slug, et.Title, et.DurationMinutes, et.BufferBefore, et.BufferAfter,
		et.MinNotice, et.MaxDaysAhead, et.MaxAttendees, start, end, et.Active))
	if err != nil {
		return model.EventType{}, notFound(err, "event type")
	}
	return out, nil
}

// DeactivateEventType hides an event type from booking; its bookings stay.
func (s *Store) DeactivateEventType(ctx context.Context, hostID, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE event_types SET is_active = false, updated_at = now()
		WHERE id = $1 AND host_id = $2
	`, id, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "event type")
	}
	return nil
}
