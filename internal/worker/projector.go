package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmehdipour/car-rating/internal/kafka"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/metrics"
	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmehdipour/car-rating/internal/repository"
	"go.uber.org/zap"
)

// Source is the Kafka side of the projector.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Projector:
// - fetches rate events from Kafka,
// - batches them by size/time,
// - inserts each batch into ClickHouse, then commits the offsets (at-least-once).
type Projector struct {
	Source Source
	Sink   repository.CHRatesRepository

	BatchSize int           // max buffered messages per flush
	BatchWait time.Duration // max time to wait before flush

	pending []kafka.Message
}

func NewProjector(src Source, sink repository.CHRatesRepository) *Projector {
	return &Projector{
		Source:    src,
		Sink:      sink,
		BatchSize: 500,
		BatchWait: time.Second,
	}
}

// Run starts the projector and blocks until ctx is cancelled.
func (p *Projector) Run(ctx context.Context) error {
	if p.Source == nil || p.Sink == nil {
		return errors.New("projector: source and sink are required")
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 500
	}
	if p.BatchWait <= 0 {
		p.BatchWait = time.Second
	}

	msgCh := make(chan kafka.Message, p.BatchSize)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := p.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Log.Warn("kafka fetch failed", zap.Error(err))
				time.Sleep(200 * time.Millisecond)
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.NewTicker(p.BatchWait)
	defer tick.Stop()

	for {
		// stop reading while a full batch waits for ClickHouse
		in := msgCh
		if len(p.pending) >= p.BatchSize {
			in = nil
		}

		select {
		case <-ctx.Done():
			p.drainOnShutdown(ctx, msgCh)
			return nil

		case m, ok := <-in:
			if !ok {
				p.drainOnShutdown(ctx, nil)
				return nil
			}
			p.pending = append(p.pending, m)
			if len(p.pending) >= p.BatchSize {
				p.logFlush(p.Flush(ctx))
			}

		case <-tick.C:
			p.logFlush(p.Flush(ctx))
		}
	}
}

// Flush writes the pending batch. On failure the batch is kept for the next attempt
// and no offsets are committed.
func (p *Projector) Flush(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}

	events := decodeRateEvents(p.pending)
	if err := p.Sink.InsertBatch(ctx, events); err != nil {
		return err
	}
	if err := p.Source.Commit(ctx, p.pending...); err != nil {
		// rows are in ClickHouse already; a redelivery collapses on event_id
		logger.Log.Warn("kafka commit failed", zap.Error(err))
	}

	metrics.RateEventsTotal.WithLabelValues("projected").Add(float64(len(events)))
	logger.Log.Debug("projected rate events", zap.Int("events", len(events)), zap.Int("messages", len(p.pending)))

	p.pending = p.pending[:0]
	return nil
}

// Pending reports how many fetched messages are waiting for a flush.
func (p *Projector) Pending() int { return len(p.pending) }

// drainOnShutdown picks up whatever the fetcher already handed over and flushes it
// with a short detached deadline.
func (p *Projector) drainOnShutdown(ctx context.Context, msgCh <-chan kafka.Message) {
	for drained := false; !drained; {
		select {
		case m, ok := <-msgCh:
			if !ok {
				drained = true
				break
			}
			p.pending = append(p.pending, m)
		default:
			drained = true
		}
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	p.logFlush(p.Flush(fctx))
}

func (p *Projector) logFlush(err error) {
	if err != nil {
		logger.Log.Error("clickhouse insert failed", zap.Int("pending", len(p.pending)), zap.Error(err))
	}
}

// decodeRateEvents skips poison messages; they are still committed with the batch.
func decodeRateEvents(msgs []kafka.Message) []model.RateEvent {
	out := make([]model.RateEvent, 0, len(msgs))
	for _, m := range msgs {
		var ev model.RateEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
			logger.Log.Warn("skipping bad rate event",
				zap.Int64("offset", m.Offset),
				zap.Int("partition", m.Partition),
				zap.Error(err),
			)
			continue
		}
		out = append(out, ev)
	}
	return out
}
