package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmehdipour/car-rating/internal/model"
	echo "github.com/labstack/echo/v4"
)

type carService interface {
	Create(ctx context.Context, makeName, modelName string) (model.Car, error)
	List(ctx context.Context) ([]model.CarRating, error)
	Popular(ctx context.Context) ([]model.Car, error)
}

type createCarReq struct {
	MakeName  string `json:"makeName"  form:"makeName"  validate:"required"`
	ModelName string `json:"modelName" form:"modelName" validate:"required"`
}

type carResp struct {
	ID        int64  `json:"id"`
	MakeName  string `json:"makeName"`
	ModelName string `json:"modelName"`
}

type carRatingResp struct {
	ID        int64  `json:"id"`
	MakeName  string `json:"makeName"`
	ModelName string `json:"modelName"`
	Rating    int    `json:"rating"`
}

func toCarResp(c model.Car) carResp {
	return carResp{ID: c.ID, MakeName: c.MakeName, ModelName: c.ModelName}
}

func listCarsHandler(svc carService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cars, err := svc.List(c.Request().Context())
		if err != nil {
			return writeError(c, "list cars", err)
		}

		out := make([]carRatingResp, 0, len(cars))
		for _, cr := range cars {
			out = append(out, carRatingResp{
				ID:        cr.ID,
				MakeName:  cr.MakeName,
				ModelName: cr.ModelName,
				Rating:    cr.Rating,
			})
		}
		return c.JSON(http.StatusOK, out)
	}
}

func createCarHandler(svc carService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCarReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.MakeName = strings.TrimSpace(req.MakeName)
		req.ModelName = strings.TrimSpace(req.ModelName)

		if err := c.Validate(&req); err != nil {
			return writeError(c, "create car", err)
		}

		car, err := svc.Create(c.Request().Context(), req.MakeName, req.ModelName)
		if err != nil {
			return writeError(c, "create car", err)
		}

		return c.JSON(http.StatusCreated, toCarResp(car))
	}
}

func popularCarsHandler(svc carService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cars, err := svc.Popular(c.Request().Context())
		if err != nil {
			return writeError(c, "popular cars", err)
		}

		out := make([]carResp, 0, len(cars))
		for _, car := range cars {
			out = append(out, toCarResp(car))
		}
		return c.JSON(http.StatusOK, out)
	}
}
