package conflict

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/domain/scheduling"
	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/metrics"
	"github.com/telemed/telemed/pkg/pagination"
)

type Handler struct {
	resolver *Resolver
	svc      *scheduling.Service
}

func NewHandler(resolver *Resolver, svc *scheduling.Service) *Handler {
	return &Handler{resolver: resolver, svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("", auth.RequireRole("admin", "physician", "patient"))
	group.POST("/conflicts/detect", h.Detect)
	group.POST("/conflicts/:id/resolve", h.Resolve)
	group.GET("/conflicts", h.ListActive)
	group.POST("/appointments/:id/reschedule-suggestions", h.ReschedulingSuggestions)

	staff := api.Group("", auth.RequireRole("admin", "physician"))
	staff.POST("/conflicts/:id/dismiss", h.Dismiss)
	staff.GET("/conflicts/history", h.History)
	staff.POST("/conflicts/predict", h.Predict)
	staff.POST("/conflicts/optimize", h.Optimize)
}

func (h *Handler) Detect(c echo.Context) error {
	var appt NewAppointment
	if err := c.Bind(&appt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	existing, err := h.existingAppointments(c)
	if err != nil {
		return err
	}

	conflicts, err := h.resolver.Detect(appt, existing)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if conflicts == nil {
		conflicts = []SchedulingConflict{}
	}
	metrics.ConflictsDetected.Add(float64(len(conflicts)))
	return c.JSON(http.StatusOK, conflicts)
}

func (h *Handler) existingAppointments(c echo.Context) ([]scheduling.Appointment, error) {
	ptrs, err := h.svc.ListAllAppointments(c.Request().Context())
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	appts := make([]scheduling.Appointment, len(ptrs))
	for i, a := range ptrs {
		appts[i] = *a
	}
	return appts, nil
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conflict id")
	}

	result, err := h.resolver.Resolve(id)
	switch {
	case errors.Is(err, ErrConflictNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflictResolved), errors.Is(err, ErrConflictDismissed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	metrics.ConflictsResolved.Inc()
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Dismiss(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conflict id")
	}

	err = h.resolver.Dismiss(id)
	switch {
	case errors.Is(err, ErrConflictNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflictResolved), errors.Is(err, ErrConflictDismissed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListActive(c echo.Context) error {
	pg := pagination.FromContext(c)
	active := h.resolver.Active()
	return c.JSON(http.StatusOK, pagination.NewResponse(page(active, pg), len(active), pg.Limit, pg.Offset))
}

func (h *Handler) History(c echo.Context) error {
	pg := pagination.FromContext(c)
	history := h.resolver.History()
	return c.JSON(http.StatusOK, pagination.NewResponse(page(history, pg), len(history), pg.Limit, pg.Offset))
}

func page[T any](items []T, pg pagination.Params) []T {
	if pg.Offset >= len(items) {
		return []T{}
	}
	end := pg.Offset + pg.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[pg.Offset:end]
}

type suggestionRequest struct {
	Preferences ReschedulePreferences `json:"preferences"`
}

func (h *Handler) ReschedulingSuggestions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var req suggestionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	doctors, _, err := h.svc.ListDoctors(c.Request().Context(), "", pagination.MaxLimit, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	ds := make([]scheduling.Doctor, len(doctors))
	for i, d := range doctors {
		ds[i] = *d
	}

	suggestions, err := h.resolver.ReschedulingSuggestions(*appt, ds, req.Preferences)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, suggestions)
}

type predictRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *Handler) Predict(c echo.Context) error {
	var req predictRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	predictions, err := h.resolver.PredictFutureConflicts(req.StartDate, req.EndDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if predictions == nil {
		predictions = []Prediction{}
	}
	return c.JSON(http.StatusOK, predictions)
}

type optimizeRequest struct {
	Appointments []scheduling.Appointment `json:"appointments"`
	Goals        OptimizationGoals        `json:"goals"`
}

type optimizeResponse struct {
	OptimizedAppointments []scheduling.Appointment `json:"optimized_appointments"`
	Improvements          Improvements             `json:"improvements"`
	Recommendations       []string                 `json:"recommendations"`
}

func (h *Handler) Optimize(c echo.Context) error {
	var req optimizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	optimized, improvements, recommendations := h.resolver.OptimizeSchedule(req.Appointments, req.Goals)
	return c.JSON(http.StatusOK, optimizeResponse{
		OptimizedAppointments: optimized,
		Improvements:          improvements,
		Recommendations:       recommendations,
	})
}
