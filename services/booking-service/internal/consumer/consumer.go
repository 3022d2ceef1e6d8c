package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/codes"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		inbox:   inbox,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	brokers := kafkax.SplitBrokers(c.cfg.Brokers)
	if len(brokers) == 0 || len(c.cfg.Topics) == 0 {
		c.logger.Warn("event consumer disabled (no kafka brokers or topics configured)")
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     c.cfg.GroupID,
		GroupTopics: c.cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}
		c.Process(ctx, msg)
	}
}

// Process handles one message at most once per event id. Handler errors are
// logged; the offset still advances, so delivery is best effort.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) {
	ctxSpan, span := kafkax.StartConsumeSpan(ctx, "consumer", msg)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox")
		return
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
	}
}
