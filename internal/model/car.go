package model

import (
	"fmt"
	"time"
)

// Car is a make/model pair validated against the vehicle reference API at creation time.
// Names are stored in the canonical casing returned by that API.
type Car struct {
	ID        int64     `db:"id"`
	MakeName  string    `db:"make_name"`
	ModelName string    `db:"model_name"`
	CreatedAt time.Time `db:"created_at"`
}

func (c Car) String() string {
	return fmt.Sprintf("%s-%s", c.MakeName, c.ModelName)
}

// CarRateStats is a car joined with the aggregate of its rates.
type CarRateStats struct {
	Car
	RateSum   int64 `db:"rate_sum"`
	RateCount int64 `db:"rate_count"`
}

// CarRating is a car with its rounded average rate.
type CarRating struct {
	Car
	Rating int
}
