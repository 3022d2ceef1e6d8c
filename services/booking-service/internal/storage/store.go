// Package storage is the Postgres persistence for hosts, availability,
// event types, bookings, calendar tokens and webhooks.
package storage

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func New(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

// Migrate applies the idempotent schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a reference to a missing host or event type.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// notFound maps pgx.ErrNoRows to a NotFound error for resource.
func notFound(err error, resource string) error {
	if IsNotFound(err) {
		return apperr.NotFound(resource)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}
