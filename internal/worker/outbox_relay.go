package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/car-rating/internal/kafka"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/metrics"
	"github.com/jmehdipour/car-rating/internal/repository"
	"go.uber.org/zap"
)

// Publisher is the Kafka side of the relay.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxRelay moves committed outbox rows to Kafka. Delivery is at-least-once:
// a crash between publish and MarkPublished re-sends the batch, and consumers
// dedupe on the event id.
type OutboxRelay struct {
	Outbox    repository.OutboxRepository
	Publisher Publisher

	BatchSize    int
	PollInterval time.Duration
}

func NewOutboxRelay(outbox repository.OutboxRepository, pub Publisher) *OutboxRelay {
	return &OutboxRelay{
		Outbox:       outbox,
		Publisher:    pub,
		BatchSize:    100,
		PollInterval: 500 * time.Millisecond,
	}
}

// Run polls until ctx is cancelled. Each tick drains the backlog batch by batch.
func (r *OutboxRelay) Run(ctx context.Context) error {
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 500 * time.Millisecond
	}

	tick := time.NewTicker(r.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Log.Error("outbox relay failed", zap.Error(err))
					}
					break
				}
				if n < r.BatchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch of unpublished events and returns how many were sent.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.Outbox.FetchUnpublished(ctx, r.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, kafka.Message{
			Topic: ev.Topic,
			Key:   []byte(ev.MessageKey),
			Value: ev.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(ev.AggregateID)},
				{Key: "aggregate", Value: []byte(ev.Aggregate)},
			},
		})
		ids = append(ids, ev.ID)
	}

	if err := r.Publisher.Publish(ctx, msgs...); err != nil {
		if incErr := r.Outbox.IncAttempts(ctx, ids); incErr != nil {
			logger.Log.Warn("outbox attempts not recorded", zap.Error(incErr))
		}
		return 0, fmt.Errorf("publish %d events: %w", len(msgs), err)
	}

	if err := r.Outbox.MarkPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}

	metrics.RateEventsTotal.WithLabelValues("published").Add(float64(len(msgs)))
	logger.Log.Debug("outbox relayed", zap.Int("events", len(msgs)))

	return len(msgs), nil
}
