package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/car-rating/internal/config"
	"github.com/jmehdipour/car-rating/internal/http/middleware"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/metrics"
	"github.com/jmehdipour/car-rating/internal/repository"
	"github.com/jmehdipour/car-rating/internal/service/car"
	"github.com/jmehdipour/car-rating/internal/service/rate"
	"github.com/jmehdipour/car-rating/internal/util"
	"github.com/jmehdipour/car-rating/internal/vehicle"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// routeDeps is everything the routes need; reports is optional (nil without ClickHouse).
type routeDeps struct {
	cars    carService
	rates   rateService
	reports repository.CHRatesRepository
	limiter echo.MiddlewareFunc
}

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	carsRepo := repository.NewCarsRepository(mysqlDB)
	ratesRepo := repository.NewRatesRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// services
	carSvc := car.New(carsRepo, vehicle.NewClient(cfg.VehicleAPI))
	rateSvc := rate.New(mysqlDB, carsRepo, ratesRepo, outboxRepo, cfg.Kafka.RatesTopic)

	deps := routeDeps{
		cars:  carSvc,
		rates: rateSvc,
		limiter: middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Redis:          rds,
			RPS:            cfg.RateLimit.RPS,
			KeyPrefix:      "rl:ip:",
			Window:         time.Second,
			RetryAfterHint: true,
		}),
	}
	if clickhouseDB != nil {
		deps.reports = repository.NewCHRatesRepository(clickhouseDB)
	}

	e := newEcho(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	registerRoutes(e, deps)

	return &Server{e: e}
}

func newEcho(level string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(echoLogLevel(level))
	e.Validator = newRequestValidator()
	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.New}),
		echoMid.Logger(),
	)
	return e
}

func registerRoutes(e *echo.Echo, d routeDeps) {
	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	e.GET("/cars", listCarsHandler(d.cars))
	e.GET("/popular", popularCarsHandler(d.cars))

	var writeMW []echo.MiddlewareFunc
	if d.limiter != nil {
		writeMW = append(writeMW, d.limiter)
	}
	e.POST("/cars", createCarHandler(d.cars), writeMW...)
	e.POST("/rate", createRateHandler(d.rates), writeMW...)

	if d.reports != nil {
		e.GET("/reports/cars/:id/rates", carRatesReportHandler(d.reports))
	}
}

func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
