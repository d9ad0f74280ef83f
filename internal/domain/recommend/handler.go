package recommend

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/domain/scheduling"
	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/metrics"
	"github.com/telemed/telemed/pkg/pagination"
)

type Handler struct {
	scorer *Scorer
	svc    *scheduling.Service
}

func NewHandler(scorer *Scorer, svc *scheduling.Service) *Handler {
	return &Handler{scorer: scorer, svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/recommendations/doctors", h.RecommendDoctors, auth.RequireRole("admin", "physician", "patient"))
}

func (h *Handler) RecommendDoctors(c echo.Context) error {
	var factors Factors
	if err := c.Bind(&factors); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ptrs, _, err := h.svc.ListDoctors(c.Request().Context(), "", pagination.MaxLimit, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	doctors := make([]scheduling.Doctor, len(ptrs))
	for i, d := range ptrs {
		doctors[i] = *d
	}

	recs := h.scorer.Doctors(doctors, factors)
	metrics.RecommendationsServed.Add(float64(len(recs)))
	return c.JSON(http.StatusOK, recs)
}
