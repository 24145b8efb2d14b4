package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CarsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carrate_cars_created_total",
			Help: "Cars registered after a successful make/model lookup",
		},
	)

	RatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrate_rates_total",
			Help: "Rate submissions by outcome",
		},
		[]string{"result"}, // created|rejected
	)

	VehicleLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrate_vehicle_lookups_total",
			Help: "Vehicle reference API lookups by kind and result",
		},
		[]string{"kind", "result"}, // make|model , found|not_found|unavailable
	)

	VehicleBreakerOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "carrate_vehicle_breaker_open",
			Help: "1 while the vehicle reference API circuit breaker rejects calls",
		},
	)

	RateEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrate_rate_events_total",
			Help: "Rate events moving through the outbox pipeline",
		},
		[]string{"stage"}, // published|projected
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once; later calls are no-ops so the
// server and workers can share a process in tests.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			CarsCreatedTotal,
			RatesTotal,
			VehicleLookupsTotal,
			VehicleBreakerOpen,
			RateEventsTotal,
		)
	})
}
