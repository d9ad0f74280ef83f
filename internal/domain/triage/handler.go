package triage

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/platform/auth"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/triage", h.Triage, auth.RequireRole("admin", "physician", "patient"))
}

type triageRequest struct {
	Symptoms []Symptom `json:"symptoms"`
}

type triageResponse struct {
	Urgency     UrgencyLevel `json:"urgency"`
	Specialties []string     `json:"specialties"`
}

func (h *Handler) Triage(c echo.Context) error {
	var req triageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, triageResponse{
		Urgency:     UrgencyFor(req.Symptoms),
		Specialties: RecommendSpecialties(req.Symptoms),
	})
}
