package outbox

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestMessageCarriesMetaAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	r := Record{
		ID:          7,
		EventID:     "5f0c1a7e-0000-4000-8000-000000000001",
		AggregateID: "host-1",
		EventType:   "booking.created.v1",
		Payload:     []byte(`{"booking_id":"b1"}`),
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
	msg := Message(context.Background(), r)

	if msg.Topic != r.EventType || string(msg.Key) != "host-1" {
		t.Fatalf("unexpected routing topic=%s key=%s", msg.Topic, msg.Key)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != r.EventID || meta.EventType != r.EventType {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != r.Traceparent {
		t.Fatalf("expected traceparent header, got %q", got)
	}
}

type execTx struct {
	pgx.Tx
	sql  string
	args []any
}

func (t *execTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.sql, t.args = sql, args
	return pgconn.NewCommandTag("DELETE 3"), nil
}

type txRunner struct{ tx *execTx }

func (r txRunner) InTx(_ context.Context, fn func(pgx.Tx) error) error { return fn(r.tx) }

func TestPruneUsesRetentionCutoff(t *testing.T) {
	tx := &execTx{}
	p := NewPublisher(txRunner{tx}, NewRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{
		Retention: 48 * time.Hour,
	})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.Prune(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	if !strings.Contains(tx.sql, "DELETE FROM outbox_events") {
		t.Fatalf("unexpected sql %q", tx.sql)
	}
	if cutoff, _ := tx.args[0].(time.Time); !cutoff.Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %v", tx.args[0])
	}

	off := NewPublisher(txRunner{&execTx{}}, NewRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})
	if n, err := off.Prune(context.Background()); n != 0 || err != nil {
		t.Fatalf("zero retention should not prune, got %d, %v", n, err)
	}
}
