package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHRatesRepository stores projected rate events in ClickHouse and reads reports back.
type CHRatesRepository interface {
	InsertBatch(ctx context.Context, events []model.RateEvent) error
	DailyByCar(ctx context.Context, carID int64, days int) ([]model.DailyRates, error)
}

type chRatesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHRatesRepository(ch *sqlx.DB) CHRatesRepository {
	return &chRatesRepository{ch: ch}
}

// InsertBatch sends all events as one ClickHouse block (prepare + exec per row + commit).
// rate_events is a ReplacingMergeTree keyed by event_id, so redelivered events collapse.
func (r *chRatesRepository) InsertBatch(ctx context.Context, events []model.RateEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rate_events (event_id, rate_id, car_id, make_name, model_name, rate, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.ID, uint64(ev.RateID), uint64(ev.CarID), ev.MakeName, ev.ModelName, uint8(ev.Rate), ev.CreatedAt,
		); err != nil {
			return fmt.Errorf("append event %s: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}

func (r *chRatesRepository) DailyByCar(ctx context.Context, carID int64, days int) ([]model.DailyRates, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	const q = `
		SELECT toDate(created_at) AS day,
		       count()            AS count,
		       avg(rate)          AS average
		FROM rate_events FINAL
		WHERE car_id = ?
		  AND created_at >= subtractDays(now(), ?)
		GROUP BY day
		ORDER BY day
	`
	rows := []model.DailyRates{}
	if err := r.ch.SelectContext(ctx, &rows, q, uint64(carID), days); err != nil {
		return nil, err
	}
	return rows, nil
}
