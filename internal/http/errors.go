package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/jmehdipour/car-rating/internal/vehicle"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// writeError maps service errors onto status codes:
// validation -> 400, reference API outage -> 502, anything else -> 500.
func writeError(c echo.Context, op string, err error) error {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field})

	case errors.Is(err, vehicle.ErrUnavailable):
		logger.Log.Warn("vehicle lookup unavailable", zap.String("op", op), zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "vehicle lookup unavailable"})

	default:
		logger.Log.Error("request failed",
			zap.String("op", op),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
}
