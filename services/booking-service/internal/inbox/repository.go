package inbox

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/libs/db"
)

// Repository remembers which event ids the consumer has already handled.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record claims eventID. It reports false when another delivery got there
// first.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
