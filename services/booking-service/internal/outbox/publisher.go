package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TxRunner runs fn in a transaction; *db.Pool satisfies it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type Publisher struct {
	db        TxRunner
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	retention time.Duration
	now       func() time.Time
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// Retention is how long published rows are kept; zero keeps them forever.
	Retention time.Duration
}

func NewPublisher(db TxRunner, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:        db,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
		now:       time.Now,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	prune := time.NewTicker(time.Hour)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PublishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		case <-prune.C:
			if _, err := p.Prune(ctx); err != nil {
				p.logger.Warn("outbox prune failed", "err", err)
			}
		}
	}
}

// Prune removes published rows older than the retention window.
func (p *Publisher) Prune(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	var n int64
	err := p.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = p.repo.Prune(ctx, tx, p.now().Add(-p.retention))
		return err
	})
	if err == nil && n > 0 {
		p.logger.Info("outbox pruned", "rows", n)
	}
	return n, err
}

// PublishBatch sends one batch of unpublished events and marks them in the
// same transaction. A failed write leaves the whole batch for the next tick.
func (p *Publisher) PublishBatch(ctx context.Context, writer Writer) error {
	return p.db.InTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.ClaimPending(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, Message(ctx, r))
			ids = append(ids, r.ID)
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		return p.repo.MarkPublished(ctx, tx, ids)
	})
}

// Message builds the Kafka message for r, restoring the trace context that
// was active when the event was written.
func Message(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.TraceContext{Parent: r.Traceparent, State: r.Tracestate}.Attach(ctx)
	msg := kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}),
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
