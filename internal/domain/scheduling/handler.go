package scheduling

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/geo"
	"github.com/telemed/telemed/internal/platform/metrics"
	"github.com/telemed/telemed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Engine endpoints – any authenticated caller
	engineGroup := api.Group("", auth.RequireRole("admin", "physician", "patient"))
	engineGroup.POST("/scheduling/recommendations", h.SmartRecommendations)
	engineGroup.POST("/scheduling/conflicts/check", h.CheckSlotConflict)
	engineGroup.GET("/scheduling/availability/:doctorID", h.PredictAvailability)

	// Batch optimization – staff only
	api.POST("/scheduling/optimize", h.OptimizeSchedule, auth.RequireRole("admin", "physician"))

	// Doctor directory
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "patient"))
	readGroup.GET("/doctors", h.ListDoctors)
	readGroup.GET("/doctors/:id", h.GetDoctor)

	writeGroup := api.Group("", auth.RequireRole("admin", "physician"))
	writeGroup.POST("/doctors", h.CreateDoctor)
	writeGroup.PUT("/doctors/:id", h.UpdateDoctor)
	writeGroup.DELETE("/doctors/:id", h.DeleteDoctor)

	// Appointments
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	engineGroup.POST("/appointments", h.CreateAppointment)
	engineGroup.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
}

type recommendationRequest struct {
	Preferences Preferences `json:"preferences"`
	Context     Context     `json:"context"`
	Specialty   string      `json:"specialty,omitempty"`
}

func (h *Handler) SmartRecommendations(c echo.Context) error {
	var req recommendationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	recs, err := h.svc.Engine().SmartRecommendations(req.Preferences, req.Context, req.Specialty)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	metrics.RecommendationsServed.Add(float64(len(recs)))
	return c.JSON(http.StatusOK, recs)
}

type conflictCheckRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Duration int       `json:"duration"`
}

func (h *Handler) CheckSlotConflict(c echo.Context) error {
	var req conflictCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conflict, err := h.svc.Engine().DetectSlotConflict(req.DoctorID, req.Date, req.Time, req.Duration)
	if errors.Is(err, ErrNotInitialized) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if conflict == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"conflict": nil})
	}
	metrics.ConflictsDetected.Inc()
	return c.JSON(http.StatusOK, map[string]interface{}{"conflict": conflict})
}

func (h *Handler) OptimizeSchedule(c echo.Context) error {
	var requests []ScheduleRequest
	if err := c.Bind(&requests); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scheduled, err := h.svc.Engine().OptimizeSchedule(requests)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, scheduled)
}

func (h *Handler) PredictAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	startDate := c.QueryParam("start")
	endDate := c.QueryParam("end")
	if startDate == "" || endDate == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "start and end query parameters are required")
	}

	forecasts, err := h.svc.Engine().PredictAvailability(doctorID, startDate, endDate)
	if errors.Is(err, ErrNotInitialized) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, forecasts)
}

// -- Doctor directory --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RefreshEngine(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)

	if near := c.QueryParam("near"); near != "" {
		from, err := parseLatLon(near)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "near must be lat,lon")
		}
		var maxKM float64
		if raw := c.QueryParam("max_km"); raw != "" {
			maxKM, err = strconv.ParseFloat(raw, 64)
			if err != nil || maxKM <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid max_km")
			}
		}
		doctors, err := h.svc.NearbyDoctors(c.Request().Context(), c.QueryParam("specialty"), from, maxKM)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		total := len(doctors)
		end := pg.Offset + pg.Limit
		if pg.Offset > total {
			doctors = nil
		} else {
			if end > total {
				end = total
			}
			doctors = doctors[pg.Offset:end]
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg.Limit, pg.Offset))
	}

	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("specialty"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg.Limit, pg.Offset))
}

func parseLatLon(s string) (geo.Point, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("expected lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Latitude: lat, Longitude: lon}, nil
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDoctor(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RefreshEngine(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.svc.RefreshEngine(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Appointments --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RefreshEngine(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	metrics.AppointmentsBooked.Inc()
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		appts, total, err := h.svc.ListAppointmentsByPatient(ctx, id, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
	}

	if did := c.QueryParam("doctor_id"); did != "" {
		id, err := uuid.Parse(did)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		if date := c.QueryParam("date"); date != "" {
			appts, err := h.svc.DoctorDaySchedule(ctx, id, date)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			return c.JSON(http.StatusOK, pagination.NewResponse(appts, len(appts), pg.Limit, pg.Offset))
		}
		appts, total, err := h.svc.ListAppointmentsByDoctor(ctx, id, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
	}

	appts, total, err := h.svc.ListAppointments(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

type statusUpdateRequest struct {
	Status AppointmentStatus `json:"status"`
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateAppointmentStatus(c.Request().Context(), id, req.Status); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RefreshEngine(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
