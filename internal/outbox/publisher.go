package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/turfconnect/slot-reservations/internal/adapters/postgres"
	"github.com/turfconnect/slot-reservations/internal/adapters/rabbit"
	"github.com/turfconnect/slot-reservations/internal/observability"
)

// Publisher drains NEW outbox records into the rabbit topic exchange.
// Records are written in the same transaction as the state change they
// describe, so nothing is announced that did not commit.
type Publisher struct {
	repo      *postgres.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *postgres.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain claims and publishes a batch inside one transaction. The skip-locked
// claim holds until commit, so another publisher instance working the same
// table cannot deliver the batch twice. A record whose publish fails stays
// NEW and is retried on the next tick.
func (p *Publisher) drain(ctx context.Context) {
	err := p.repo.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.GetUnpublishedOutbox(ctx, tx, 10)
		if err != nil {
			return err
		}
		for _, rec := range records {
			msg := amqp.Publishing{
				MessageId:   rec.DedupeKey,
				ContentType: "application/json",
				Body:        rec.Payload,
			}
			if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
				p.logger.Error("failed to publish outbox record", err)
				continue
			}
			now := time.Now()
			observability.OutboxLag.Set(now.Sub(rec.CreatedAt).Seconds())
			if err := p.repo.MarkPublished(ctx, tx, rec.ID, now, rec.DedupeKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.logger.Error("failed to drain outbox", err)
	}
}
