package model

import "time"

const (
	MinRateValue = 0
	MaxRateValue = 5
)

// Rate is a single score submitted for a car. Rates are never updated;
// they disappear only when their car is deleted (ON DELETE CASCADE).
type Rate struct {
	ID        int64     `db:"id"`
	CarID     int64     `db:"car_id"`
	Value     int       `db:"rate"`
	CreatedAt time.Time `db:"created_at"`
}

// ValidRateValue reports whether v is inside the accepted range, inclusive on both ends.
func ValidRateValue(v int) bool {
	return v >= MinRateValue && v <= MaxRateValue
}
