package booking

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/metrics"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/booking/smart", h.SmartBook, auth.RequireRole("admin", "physician", "patient"))
}

func (h *Handler) SmartBook(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.svc.Book(c.Request().Context(), req)
	switch {
	case errors.Is(err, ErrNoCandidates):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if result.Booked != nil {
		metrics.SmartBookings.WithLabelValues("booked").Inc()
		return c.JSON(http.StatusCreated, result)
	}
	metrics.SmartBookings.WithLabelValues("conflicted").Inc()
	return c.JSON(http.StatusConflict, result)
}
