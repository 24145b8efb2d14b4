package model

import "time"

// DailyRates is one row of the per-car rating report read from ClickHouse.
type DailyRates struct {
	Day     time.Time `db:"day"     json:"day"`
	Count   uint64    `db:"count"   json:"count"`
	Average float64   `db:"average" json:"average"`
}
