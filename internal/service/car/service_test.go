package car

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmehdipour/car-rating/internal/vehicle"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup mimics the reference API: makes are matched after upper-casing,
// models exactly.
type fakeLookup struct {
	models map[string][]string // canonical make -> models
	err    error
}

func (f *fakeLookup) LookupMake(_ context.Context, name string) (vehicle.MakeRecord, error) {
	if f.err != nil {
		return vehicle.MakeRecord{}, f.err
	}
	want := strings.ToUpper(name)
	if _, ok := f.models[want]; ok {
		return vehicle.MakeRecord{Name: want}, nil
	}
	return vehicle.MakeRecord{}, vehicle.ErrNotFound
}

func (f *fakeLookup) LookupModel(_ context.Context, makeName, modelName string) (vehicle.ModelRecord, error) {
	for _, m := range f.models[strings.ToUpper(makeName)] {
		if m == modelName {
			return vehicle.ModelRecord{MakeName: strings.ToUpper(makeName), ModelName: m}, nil
		}
	}
	return vehicle.ModelRecord{}, vehicle.ErrNotFound
}

// memCars is an in-memory CarsRepository with rates attached per car id.
type memCars struct {
	cars      []model.Car
	rates     map[int64][]int
	insertErr error
}

func newMemCars() *memCars { return &memCars{rates: map[int64][]int{}} }

func (m *memCars) Insert(_ context.Context, _ *sqlx.Tx, c *model.Car) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	c.ID = int64(len(m.cars) + 1)
	m.cars = append(m.cars, *c)
	return nil
}

func (m *memCars) GetByID(_ context.Context, _ *sqlx.Tx, id int64) (*model.Car, error) {
	for _, c := range m.cars {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memCars) stats(c model.Car) model.CarRateStats {
	st := model.CarRateStats{Car: c}
	for _, v := range m.rates[c.ID] {
		st.RateSum += int64(v)
		st.RateCount++
	}
	return st
}

func (m *memCars) ListWithRateStats(_ context.Context) ([]model.CarRateStats, error) {
	out := []model.CarRateStats{}
	for i := len(m.cars) - 1; i >= 0; i-- {
		out = append(out, m.stats(m.cars[i]))
	}
	return out, nil
}

func (m *memCars) ListPopular(_ context.Context) ([]model.CarRateStats, error) {
	out := []model.CarRateStats{}
	for _, c := range m.cars {
		if st := m.stats(c); st.RateCount > 0 {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RateCount > out[j].RateCount })
	return out, nil
}

func newService(repo *memCars, lookup VehicleLookup) *Service {
	s := New(repo, lookup)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func defaultLookup() *fakeLookup {
	return &fakeLookup{models: map[string][]string{
		"ASTON MARTIN": {"V8 Vantage", "DB9"},
		"HONDA":        {"Accord", "Civic"},
	}}
}

func TestCreate_StoresCanonicalNames(t *testing.T) {
	repo := newMemCars()
	s := newService(repo, defaultLookup())

	c, err := s.Create(context.Background(), "aston martin", "V8 Vantage")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "ASTON MARTIN", c.MakeName)
	assert.Equal(t, "V8 Vantage", c.ModelName)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ASTON MARTIN", list[0].MakeName)
	assert.Equal(t, 0, list[0].Rating)
}

func TestCreate_UnknownMake(t *testing.T) {
	repo := newMemCars()
	s := newService(repo, defaultLookup())

	_, err := s.Create(context.Background(), "Test Make", "Test Model")
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgMakeNotFound, ve.Message)
	assert.Equal(t, "makeName", ve.Field)
	assert.Empty(t, repo.cars)
}

func TestCreate_UnknownModel(t *testing.T) {
	repo := newMemCars()
	s := newService(repo, defaultLookup())

	_, err := s.Create(context.Background(), "HONDA", "accord")
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgModelNotFound, ve.Message)
	assert.Equal(t, "modelName", ve.Field)
	assert.Empty(t, repo.cars)
}

func TestCreate_LookupUnavailableIsNotValidation(t *testing.T) {
	repo := newMemCars()
	lookup := &fakeLookup{err: fmt.Errorf("%w: dial tcp: timeout", vehicle.ErrUnavailable)}
	s := newService(repo, lookup)

	_, err := s.Create(context.Background(), "HONDA", "Accord")
	require.ErrorIs(t, err, vehicle.ErrUnavailable)
	var ve *model.ValidationError
	assert.False(t, errors.As(err, &ve))
	assert.Empty(t, repo.cars)
}

func TestCreate_StoreError(t *testing.T) {
	repo := newMemCars()
	repo.insertErr = errors.New("db down")
	s := newService(repo, defaultLookup())

	_, err := s.Create(context.Background(), "HONDA", "Accord")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert car")
}

func TestList_AverageRating(t *testing.T) {
	repo := newMemCars()
	s := newService(repo, defaultLookup())

	honda, err := s.Create(context.Background(), "HONDA", "Accord")
	require.NoError(t, err)
	civic, err := s.Create(context.Background(), "HONDA", "Civic")
	require.NoError(t, err)
	repo.rates[honda.ID] = []int{3, 5}

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	// newest first
	assert.Equal(t, civic.ID, list[0].ID)
	assert.Equal(t, 0, list[0].Rating)
	assert.Equal(t, honda.ID, list[1].ID)
	assert.Equal(t, 4, list[1].Rating)
}

func TestPopular_OrdersByRateCountAndSkipsUnrated(t *testing.T) {
	repo := newMemCars()
	s := newService(repo, defaultLookup())

	a, _ := s.Create(context.Background(), "HONDA", "Accord")
	b, _ := s.Create(context.Background(), "HONDA", "Civic")
	_, _ = s.Create(context.Background(), "ASTON MARTIN", "DB9")
	repo.rates[b.ID] = []int{3, 5}
	repo.rates[a.ID] = []int{4, 2, 2}

	cars, err := s.Popular(context.Background())
	require.NoError(t, err)
	require.Len(t, cars, 2)
	assert.Equal(t, a.ID, cars[0].ID)
	assert.Equal(t, b.ID, cars[1].ID)
}

func TestAverageRating(t *testing.T) {
	cases := []struct {
		sum, count int64
		want       int
	}{
		{0, 0, 0},
		{8, 2, 4},
		{5, 2, 2},  // 2.5 -> 2
		{7, 2, 4},  // 3.5 -> 4
		{10, 3, 3}, // 3.33
		{11, 3, 4}, // 3.67
		{0, 4, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AverageRating(tc.sum, tc.count), "sum=%d count=%d", tc.sum, tc.count)
	}
}
