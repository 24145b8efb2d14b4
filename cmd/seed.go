package cmd

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/jmehdipour/car-rating/internal/db"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmehdipour/car-rating/internal/repository"
	"github.com/jmehdipour/car-rating/internal/service/rate"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedRates int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo cars",
	RunE: func(cmd *cobra.Command, args []string) error {
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		ctx := cmd.Context()
		ids, err := seedCars(ctx, sqlDB)
		if err != nil {
			return err
		}

		if seedRates > 0 {
			carsRepo := repository.NewCarsRepository(sqlDB)
			svc := rate.New(sqlDB, carsRepo, repository.NewRatesRepository(sqlDB),
				repository.NewOutboxRepository(sqlDB), cfg.Kafka.RatesTopic)
			for _, id := range ids {
				for i := 0; i < seedRates; i++ {
					if _, err := svc.Create(ctx, id, rand.Intn(model.MaxRateValue+1)); err != nil {
						return fmt.Errorf("seed rate for car %d: %w", id, err)
					}
				}
			}
		}

		logger.Log.Info("seed completed", zap.Int("cars", len(ids)), zap.Int("rates_per_car", seedRates))
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedRates, "rates", 0, "random rates to add per seeded car")
}

// demoCars use canonical reference names so they look like API-created rows.
var demoCars = []model.Car{
	{MakeName: "HONDA", ModelName: "Accord"},
	{MakeName: "HONDA", ModelName: "Civic"},
	{MakeName: "ASTON MARTIN", ModelName: "V8 Vantage"},
	{MakeName: "BMW", ModelName: "M4"},
	{MakeName: "TOYOTA", ModelName: "Corolla"},
}

// seedCars inserts the demo cars that are not there yet (idempotent) and returns every demo car id.
func seedCars(ctx context.Context, dbx *sqlx.DB) ([]int64, error) {
	const insertQ = `
		INSERT INTO cars (make_name, model_name)
		SELECT ?, ? FROM DUAL
		WHERE NOT EXISTS (SELECT 1 FROM cars WHERE make_name = ? AND model_name = ?)`
	const idQ = `SELECT id FROM cars WHERE make_name = ? AND model_name = ? ORDER BY id LIMIT 1`

	ids := make([]int64, 0, len(demoCars))
	for _, c := range demoCars {
		if _, err := dbx.ExecContext(ctx, insertQ, c.MakeName, c.ModelName, c.MakeName, c.ModelName); err != nil {
			return nil, fmt.Errorf("insert car %s: %w", c, err)
		}
		var id int64
		if err := dbx.GetContext(ctx, &id, idQ, c.MakeName, c.ModelName); err != nil {
			return nil, fmt.Errorf("lookup car %s: %w", c, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
