package car

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmehdipour/car-rating/internal/metrics"
	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmehdipour/car-rating/internal/repository"
	"github.com/jmehdipour/car-rating/internal/vehicle"
)

const (
	MsgMakeNotFound  = "Requested Car Make Not Found"
	MsgModelNotFound = "Requested Car Model Not Found"
)

// VehicleLookup is the reference API the service validates against.
type VehicleLookup interface {
	LookupMake(ctx context.Context, name string) (vehicle.MakeRecord, error)
	LookupModel(ctx context.Context, makeName, modelName string) (vehicle.ModelRecord, error)
}

// Service registers cars and lists them with rating information.
type Service struct {
	cars   repository.CarsRepository
	lookup VehicleLookup
	now    func() time.Time
}

func New(cars repository.CarsRepository, lookup VehicleLookup) *Service {
	return &Service{cars: cars, lookup: lookup, now: time.Now}
}

// Create validates make and model against the reference API and stores the car
// under the canonical names the API returned, not the caller's spelling.
// Lookup outages come back wrapping vehicle.ErrUnavailable and nothing is stored.
func (s *Service) Create(ctx context.Context, makeName, modelName string) (model.Car, error) {
	mk, err := s.lookup.LookupMake(ctx, makeName)
	if err != nil {
		if errors.Is(err, vehicle.ErrNotFound) {
			return model.Car{}, model.NewValidationError("makeName", MsgMakeNotFound)
		}
		return model.Car{}, fmt.Errorf("lookup make: %w", err)
	}

	md, err := s.lookup.LookupModel(ctx, mk.Name, modelName)
	if err != nil {
		if errors.Is(err, vehicle.ErrNotFound) {
			return model.Car{}, model.NewValidationError("modelName", MsgModelNotFound)
		}
		return model.Car{}, fmt.Errorf("lookup model: %w", err)
	}

	c := model.Car{
		MakeName:  mk.Name,
		ModelName: md.ModelName,
		CreatedAt: s.now().UTC(),
	}
	if err := s.cars.Insert(ctx, nil, &c); err != nil {
		return model.Car{}, fmt.Errorf("insert car: %w", err)
	}

	metrics.CarsCreatedTotal.Inc()

	return c, nil
}

// List returns every car, newest first, with its average rate (0 when unrated).
func (s *Service) List(ctx context.Context) ([]model.CarRating, error) {
	rows, err := s.cars.ListWithRateStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}

	out := make([]model.CarRating, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CarRating{Car: r.Car, Rating: AverageRating(r.RateSum, r.RateCount)})
	}
	return out, nil
}

// Popular returns rated cars ordered by how many rates they received.
func (s *Service) Popular(ctx context.Context) ([]model.Car, error) {
	rows, err := s.cars.ListPopular(ctx)
	if err != nil {
		return nil, fmt.Errorf("list popular cars: %w", err)
	}

	out := make([]model.Car, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Car)
	}
	return out, nil
}

// AverageRating rounds sum/count half to even; an unrated car scores 0.
func AverageRating(sum, count int64) int {
	if count <= 0 {
		return 0
	}
	return int(math.RoundToEven(float64(sum) / float64(count)))
}
