package model

import "time"

type OutboxEvent struct {
	ID          int64      `db:"id"`
	Aggregate   string     `db:"aggregate"`    // e.g. "rate"
	AggregateID string     `db:"aggregate_id"` // event ULID
	Topic       string     `db:"topic"`
	MessageKey  string     `db:"message_key"`
	Payload     []byte     `db:"payload"`
	Attempts    int        `db:"attempts"`
	PublishedAt *time.Time `db:"published_at"` // nullable until relayed
	CreatedAt   time.Time  `db:"created_at"`
}
