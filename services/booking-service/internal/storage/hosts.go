package storage

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func (s *Store) Host(ctx context.Context, id string) (model.Host, error) {
	var h model.Host
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, timezone, created_at
		FROM hosts
		WHERE id = $1
	`, id).Scan(&h.ID, &h.Name, &h.Email, &h.Timezone, &h.CreatedAt)
	if err != nil {
		return model.Host{}, notFound(err, "host")
	}
	return h, nil
}

// UpsertHost creates the host on first use and updates its profile after.
func (s *Store) UpsertHost(ctx context.Context, h model.Host) (model.Host, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO hosts (id, name, email, timezone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    timezone = EXCLUDED.timezone
		RETURNING created_at
	`, h.ID, h.Name, h.Email, h.Timezone).Scan(&h.CreatedAt)
	return h, err
}

func (s *Store) SetTimezone(ctx context.Context, hostID, tz string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hosts (id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET timezone = EXCLUDED.timezone
	`, hostID, tz)
	return err
}
