package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) || IsForeignKeyViolation(wrapped) {
		t.Fatal("expected a unique violation")
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("expected a foreign key violation")
	}
	if !apperr.Is(notFound(pgx.ErrNoRows, "booking"), apperr.KindNotFound) {
		t.Fatal("no rows must map to not found")
	}
	other := errors.New("boom")
	if notFound(other, "booking") != other {
		t.Fatal("other errors must pass through")
	}
}

func TestWindowBoundsRoundTrip(t *testing.T) {
	if s, e := bounds(nil); s != nil || e != nil {
		t.Fatal("nil window must store NULLs")
	}
	w := &model.WallWindow{Start: 9 * 60, End: 24 * 60}
	s, e := bounds(w)
	got := window(s, e)
	if got == nil || *got != *w {
		t.Fatalf("round trip lost the window: %+v", got)
	}
}

func TestSchemaDeclaresEveryTable(t *testing.T) {
	for _, table := range []string{"hosts", "availability_rules", "date_overrides", "event_types", "bookings",
		"calendar_tokens", "webhooks", "outbox_events", "inbox_events"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema is missing %s", table)
		}
	}
}
