package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func (s *Store) Rules(ctx context.Context, hostID string) ([]model.AvailabilityRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, host_id, weekday, start_minute, end_minute, created_at
		FROM availability_rules
		WHERE host_id = $1
		ORDER BY weekday, start_minute
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityRule
	for rows.Next() {
		var r model.AvailabilityRule
		var weekday int16
		var start, end int
		if err := rows.Scan(&r.ID, &r.HostID, &weekday, &start, &end, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Weekday = time.Weekday(weekday)
		r.Window = model.WallWindow{Start: model.Clock(start), End: model.Clock(end)}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceRules swaps the host's whole weekly schedule in one transaction.
func (s *Store) ReplaceRules(ctx context.Context, hostID string, rules []model.AvailabilityRule) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE host_id = $1`, hostID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, r := range rules {
			batch.Queue(`
				INSERT INTO availability_rules (host_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, hostID, int16(r.Weekday), int(r.Window.Start), int(r.Window.End))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Store) Overrides(ctx context.Context, hostID string, from, to model.Date) ([]model.DateOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT host_id, date, available, start_minute, end_minute, reason, updated_at
		FROM date_overrides
		WHERE host_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date
	`, hostID, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DateOverride
	for rows.Next() {
		var o model.DateOverride
		var date time.Time
		var start, end *int
		if err := rows.Scan(&o.HostID, &date, &o.Available, &start, &end, &o.Reason, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Date = model.DateOf(date)
		o.Window = window(start, end)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) UpsertOverride(ctx context.Context, o model.DateOverride) error {
	start, end := bounds(o.Window)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO date_overrides (host_id, date, available, start_minute, end_minute, reason)
		VALUES ($1, $2::date, $3, $4, $5, $6)
		ON CONFLICT (host_id, date) DO UPDATE
		SET available = EXCLUDED.available,
		    start_minute = EXCLUDED.start_minute,
		    end_minute = EXCLUDED.end_minute,
		    reason = EXCLUDED.reason,
		    updated_at = now()
	`, o.HostID, o.Date.String(), o.Available, start, end, o.Reason)
	return err
}

// DeleteOverride reports whether an override existed.
func (s *Store) DeleteOverride(ctx context.Context, hostID string, date model.Date) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM date_overrides WHERE host_id = $1 AND date = $2::date
	`, hostID, date.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func window(start, end *int) *model.WallWindow {
	if start == nil || end == nil {
		return nil
	}
	return &model.WallWindow{Start: model.Clock(*start), End: model.Clock(*end)}
}

func bounds(w *model.WallWindow) (*int, *int) {
	if w == nil {
		return nil, nil
	}
	start, end := int(w.Start), int(w.End)
	return &start, &end
}
