package model

import "time"

// RateEvent is the payload written to the outbox and published to Kafka when a rate is created.
type RateEvent struct {
	ID        string    `json:"id"` // event ULID
	RateID    int64     `json:"rate_id"`
	CarID     int64     `json:"car_id"`
	MakeName  string    `json:"make_name"`
	ModelName string    `json:"model_name"`
	Rate      int       `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
}
