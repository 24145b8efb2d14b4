package http

import (
	"context"
	"net/http"

	"github.com/jmehdipour/car-rating/internal/model"
	echo "github.com/labstack/echo/v4"
)

type rateService interface {
	Create(ctx context.Context, carID int64, value int) (model.Rate, error)
}

// Pointers tell a missing/null field apart from a legitimate 0 rate.
type createRateReq struct {
	Car  *int64 `json:"car"  form:"car"  validate:"required"`
	Rate *int   `json:"rate" form:"rate" validate:"required"`
}

type rateResp struct {
	ID   int64 `json:"id"`
	Car  int64 `json:"car"`
	Rate int   `json:"rate"`
}

func createRateHandler(svc rateService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createRateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		if err := c.Validate(&req); err != nil {
			return writeError(c, "create rate", err)
		}

		rt, err := svc.Create(c.Request().Context(), *req.Car, *req.Rate)
		if err != nil {
			return writeError(c, "create rate", err)
		}

		return c.JSON(http.StatusCreated, rateResp{ID: rt.ID, Car: rt.CarID, Rate: rt.Value})
	}
}
