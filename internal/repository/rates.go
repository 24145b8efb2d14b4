package repository

import (
	"context"

	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmoiron/sqlx"
)

type RatesRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, rt *model.Rate) error
}

type RatesRepositoryImpl struct {
	db *sqlx.DB
}

func NewRatesRepository(db *sqlx.DB) *RatesRepositoryImpl {
	return &RatesRepositoryImpl{db: db}
}

var _ RatesRepository = (*RatesRepositoryImpl)(nil)

// Insert stores the rate and fills in its generated id. The cars FK rejects unknown car ids.
func (r *RatesRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, rt *model.Rate) error {
	const q = `
		INSERT INTO rates (car_id, rate, created_at)
		VALUES (?, ?, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, rt.CarID, rt.Value, rt.CreatedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rt.ID = id
		return nil
	})
}
