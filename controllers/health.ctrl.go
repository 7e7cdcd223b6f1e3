package controllers

import (
	"context"
	"net/http"

	"github.com/finagent/finance-agent/lib/responses"
	"github.com/labstack/echo/v4"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	db Pinger
}

func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

type HealthResponse struct {
	Result string `json:"result"`
}

// Health godoc
// @Summary      Check system health
// @Description  Check system health including the database connection
// @Produce      json
// @Tags         Health
// @Success      200  {object}  HealthResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /health [get]
func (controller *HealthController) Check(c echo.Context) error {
	if err := controller.db.PingContext(c.Request().Context()); err != nil {
		c.Logger().Errorf("Database ping failed: %v", err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, &HealthResponse{
		Result: "OK",
	})
}
