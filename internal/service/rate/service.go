package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/car-rating/internal/db"
	"github.com/jmehdipour/car-rating/internal/metrics"
	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmehdipour/car-rating/internal/repository"
	"github.com/jmehdipour/car-rating/internal/util"
	"github.com/jmoiron/sqlx"
)

// MsgRateOutOfRange is kept verbatim for API compatibility even though 0 is accepted.
const MsgRateOutOfRange = "Rate value must between 1-5"

const DefaultTopic = "car.rates"

// Service stores rates together with their outbox event in one transaction.
type Service struct {
	db     *sqlx.DB
	cars   repository.CarsRepository
	rates  repository.RatesRepository
	outbox repository.OutboxRepository
	topic  string
	now    func() time.Time
}

// New constructs the rate service. An empty topic falls back to DefaultTopic.
func New(
	db *sqlx.DB,
	carsRepo repository.CarsRepository,
	ratesRepo repository.RatesRepository,
	outboxRepo repository.OutboxRepository,
	topic string,
) *Service {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Service{
		db:     db,
		cars:   carsRepo,
		rates:  ratesRepo,
		outbox: outboxRepo,
		topic:  topic,
		now:    time.Now,
	}
}

func carNotFound(carID int64) error {
	return model.NewValidationError("car", fmt.Sprintf("Invalid pk %q - object does not exist.", strconv.FormatInt(carID, 10)))
}

// Create validates the value (0..5 inclusive) and the car reference, then writes
// `rates` and `outbox` atomically. Nothing is written when validation fails.
func (s *Service) Create(ctx context.Context, carID int64, value int) (model.Rate, error) {
	if !model.ValidRateValue(value) {
		metrics.RatesTotal.WithLabelValues("rejected").Inc()
		return model.Rate{}, model.NewValidationError("rate", MsgRateOutOfRange)
	}
	if carID <= 0 {
		metrics.RatesTotal.WithLabelValues("rejected").Inc()
		return model.Rate{}, carNotFound(carID)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Rate{}, err
	}
	defer func() { _ = tx.Rollback() }()

	car, err := s.cars.GetByID(ctx, tx, carID)
	if err != nil {
		return model.Rate{}, fmt.Errorf("get car: %w", err)
	}
	if car == nil {
		metrics.RatesTotal.WithLabelValues("rejected").Inc()
		return model.Rate{}, carNotFound(carID)
	}

	rt := model.Rate{
		CarID:     carID,
		Value:     value,
		CreatedAt: s.now().UTC(),
	}
	if err := s.rates.Insert(ctx, tx, &rt); err != nil {
		// car deleted between the lookup and the insert
		if db.IsForeignKeyViolation(err) {
			metrics.RatesTotal.WithLabelValues("rejected").Inc()
			return model.Rate{}, carNotFound(carID)
		}
		return model.Rate{}, fmt.Errorf("insert rate: %w", err)
	}

	ev := model.RateEvent{
		ID:        util.New(),
		RateID:    rt.ID,
		CarID:     car.ID,
		MakeName:  car.MakeName,
		ModelName: car.ModelName,
		Rate:      rt.Value,
		CreatedAt: rt.CreatedAt,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return model.Rate{}, fmt.Errorf("marshal rate event: %w", err)
	}

	if err := s.outbox.Insert(ctx, tx, model.OutboxEvent{
		Aggregate:   "rate",
		AggregateID: ev.ID,
		Topic:       s.topic,
		MessageKey:  strconv.FormatInt(car.ID, 10),
		Payload:     payload,
	}); err != nil {
		return model.Rate{}, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Rate{}, err
	}

	metrics.RatesTotal.WithLabelValues("created").Inc()

	return rt, nil
}
