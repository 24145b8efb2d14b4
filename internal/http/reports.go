package http

import (
	"net/http"
	"strconv"

	"github.com/jmehdipour/car-rating/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func carRatesReportHandler(chRepo repository.CHRatesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		carID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || carID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid car id"})
		}

		days := 30
		if v := c.QueryParam("days"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				days = min(n, 365)
			}
		}

		rows, err := chRepo.DailyByCar(c.Request().Context(), carID, days)
		if err != nil {
			return writeError(c, "rates report", err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"car":     carID,
			"days":    days,
			"count":   len(rows),
			"results": rows,
		})
	}
}
