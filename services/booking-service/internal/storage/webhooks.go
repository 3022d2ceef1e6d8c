package storage

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func (s *Store) CreateWebhook(ctx context.Context, w model.Webhook) (model.Webhook, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO webhooks (host_id, url, secret)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`, w.HostID, w.URL, w.Secret).Scan(&w.ID, &w.CreatedAt)
	return w, err
}

func (s *Store) WebhooksForHost(ctx context.Context, hostID string) ([]model.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, host_id, url, secret, created_at
		FROM webhooks
		WHERE host_id = $1
		ORDER BY created_at
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Webhook
	for rows.Next() {
		var w model.Webhook
		if err := rows.Scan(&w.ID, &w.HostID, &w.URL, &w.Secret, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) DeleteWebhook(ctx context.Context, hostID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhooks WHERE id::text = $1 AND host_id = $2`, id, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "webhook")
	}
	return nil
}
