package schedule

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/timeslot"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/schedules/doctor/:doctorId/availability", h.GetAvailability)
	api.POST("/schedules/check-availability", h.CheckAvailability)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.GET("/schedules/doctor/my-schedule", h.MySchedule)
	doctorGroup.PUT("/schedules/doctor/update-schedule", h.UpdateSchedule)
}

// availabilityResponse is the payload for the availability listing endpoint.
type availabilityResponse struct {
	AvailableSlots []timeslot.Slot `json:"availableSlots"`
	DoctorSchedule *Summary        `json:"doctorSchedule,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// GetAvailability handles
// GET /schedules/doctor/:doctorId/availability?date=YYYY-MM-DD.
func (h *Handler) GetAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	dateStr := c.QueryParam("date")
	if dateStr == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	date, err := time.ParseInLocation(dateLayout, dateStr, h.svc.loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date format: expected YYYY-MM-DD")
	}

	slots, entry, err := h.svc.GetAvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return availabilityError(err)
	}

	resp := availabilityResponse{AvailableSlots: []timeslot.Slot{}}
	if entry != nil {
		resp.DoctorSchedule = entry.Summary()
	}
	if entry == nil || !entry.IsAvailable {
		resp.Message = ReasonDayUnavailable
		return c.JSON(http.StatusOK, resp)
	}
	if slots != nil {
		resp.AvailableSlots = slots
	}
	return c.JSON(http.StatusOK, resp)
}

// MySchedule handles GET /schedules/doctor/my-schedule for the authenticated
// doctor.
func (h *Handler) MySchedule(c echo.Context) error {
	doctorID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	entries, err := h.svc.ListByDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return availabilityError(err)
	}
	if entries == nil {
		entries = []*WeeklySchedule{}
	}
	return c.JSON(http.StatusOK, entries)
}

type updateScheduleRequest struct {
	Schedules []*WeeklySchedule `json:"schedules"`
}

// UpdateSchedule handles PUT /schedules/doctor/update-schedule: wholesale
// replacement of the authenticated doctor's weekly set.
func (h *Handler) UpdateSchedule(c echo.Context) error {
	doctorID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	var req updateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	stored, err := h.svc.ReplaceSchedule(c.Request().Context(), doctorID, req.Schedules)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
		}
		return availabilityError(err)
	}
	if stored == nil {
		stored = []*WeeklySchedule{}
	}
	return c.JSON(http.StatusOK, stored)
}

type checkAvailabilityRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

type checkAvailabilityResponse struct {
	IsAvailable bool    `json:"isAvailable"`
	Reason      *string `json:"reason"`
}

// CheckAvailability handles POST /schedules/check-availability.
func (h *Handler) CheckAvailability(c echo.Context) error {
	var req checkAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, h.svc.loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date format: expected YYYY-MM-DD")
	}
	if !timeslot.ValidClock(req.Time) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid time format: expected HH:MM")
	}

	avail, err := h.svc.IsSlotAvailable(c.Request().Context(), doctorID, date, req.Time)
	if err != nil {
		return availabilityError(err)
	}
	resp := checkAvailabilityResponse{IsAvailable: avail.Available}
	if avail.Reason != "" {
		reason := avail.Reason
		resp.Reason = &reason
	}
	return c.JSON(http.StatusOK, resp)
}

// availabilityError maps storage failures to 503 so clients can distinguish
// a retryable outage from a rejected request.
func availabilityError(err error) error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable: "+err.Error())
}
