package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmoiron/sqlx"
)

type CarsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, c *model.Car) error
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Car, error)
	ListWithRateStats(ctx context.Context) ([]model.CarRateStats, error)
	ListPopular(ctx context.Context) ([]model.CarRateStats, error)
}

type CarsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCarsRepository(db *sqlx.DB) *CarsRepositoryImpl {
	return &CarsRepositoryImpl{db: db}
}

var _ CarsRepository = (*CarsRepositoryImpl)(nil)

// Insert stores the car and fills in its generated id.
func (r *CarsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c *model.Car) error {
	const q = `
		INSERT INTO cars (make_name, model_name, created_at)
		VALUES (?, ?, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, c.MakeName, c.ModelName, c.CreatedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = id
		return nil
	})
}

// GetByID returns (nil, nil) when the car does not exist.
func (r *CarsRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Car, error) {
	var c model.Car
	err := sqlx.GetContext(ctx, queryer(r.db, tx), &c, `
		SELECT id, make_name, model_name, created_at
		  FROM cars
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListWithRateStats returns every car, newest first, with the sum and count of its rates.
func (r *CarsRepositoryImpl) ListWithRateStats(ctx context.Context) ([]model.CarRateStats, error) {
	const q = `
		SELECT c.id, c.make_name, c.model_name, c.created_at,
		       CAST(COALESCE(SUM(r.rate), 0) AS SIGNED) AS rate_sum,
		       COUNT(r.id)                              AS rate_count
		  FROM cars c
		  LEFT JOIN rates r ON r.car_id = c.id
		 GROUP BY c.id, c.make_name, c.model_name, c.created_at
		 ORDER BY c.id DESC
	`
	rows := []model.CarRateStats{}
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPopular returns cars that have at least one rate, most rated first.
// Cars with the same number of rates are ordered by id so the result is stable.
func (r *CarsRepositoryImpl) ListPopular(ctx context.Context) ([]model.CarRateStats, error) {
	const q = `
		SELECT c.id, c.make_name, c.model_name, c.created_at,
		       CAST(SUM(r.rate) AS SIGNED) AS rate_sum,
		       COUNT(r.id)                 AS rate_count
		  FROM cars c
		  JOIN rates r ON r.car_id = c.id
		 GROUP BY c.id, c.make_name, c.model_name, c.created_at
		 ORDER BY rate_count DESC, c.id ASC
	`
	rows := []model.CarRateStats{}
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}
