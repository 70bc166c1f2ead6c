package booking

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Reads – any authenticated caller
	api.GET("/slots", h.ListSlots)
	api.GET("/slots/:id", h.GetSlot)
	api.GET("/absences", h.ListAbsences)

	// Doctor-side schedule management
	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.POST("/availability", h.CreateAvailability)
	doctorGroup.DELETE("/slots/:id", h.RemoveAvailability)
	doctorGroup.POST("/slots/:id/cancel-by-doctor", h.CancelByDoctor)
	doctorGroup.POST("/slots/:id/complete", h.Complete)
	doctorGroup.POST("/absences", h.DeclareAbsence)
	doctorGroup.DELETE("/absences/:id", h.RemoveAbsence)

	// Patient-side booking
	patientGroup := api.Group("", auth.RequireRole(auth.RolePatient))
	patientGroup.POST("/slots/:id/book", h.Book)
	patientGroup.POST("/slots/:id/cancel-by-patient", h.CancelByPatient)
}

// httpError maps the booking error taxonomy onto HTTP statuses. The
// typed error is passed through as the response body so Conflict
// responses keep the offending timestamp.
func httpError(err error) error {
	var status int
	switch CodeOf(err) {
	case CodeInvalidArgument:
		status = http.StatusBadRequest
	case CodeNotFound:
		status = http.StatusNotFound
	case CodeForbidden:
		status = http.StatusForbidden
	case CodeConflict:
		status = http.StatusConflict
	case CodeInvalidState:
		status = http.StatusUnprocessableEntity
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return echo.NewHTTPError(status, err)
}

// -- Availability --

type createAvailabilityRequest struct {
	DoctorID uuid.UUID   `json:"doctor_id"`
	Dates    []time.Time `json:"dates"`
	Price    float64     `json:"price"`
}

func (h *Handler) CreateAvailability(c echo.Context) error {
	var req createAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	slots, err := h.svc.CreateAvailability(c.Request().Context(), caller, req.DoctorID, req.Dates, req.Price)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, slots)
}

func (h *Handler) RemoveAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.RemoveAvailability(c.Request().Context(), caller, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Booking --

type bookRequest struct {
	Patient   PatientSnapshot `json:"patient"`
	VisitType VisitType       `json:"visit_type"`
	Duration  int             `json:"duration"`
}

func (h *Handler) Book(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Duration == 0 {
		req.Duration = 1
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	if caller == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	sl, err := h.svc.Book(c.Request().Context(), caller, id, caller.UserID, req.Patient, req.VisitType, req.Duration)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

// -- Cancellation --

type cancelByDoctorRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelByDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelByDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	sl, err := h.svc.CancelByDoctor(c.Request().Context(), caller, id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) CancelByPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	sl, err := h.svc.CancelByPatient(c.Request().Context(), caller, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	sl, err := h.svc.Complete(c.Request().Context(), caller, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

// -- Absences --

type declareAbsenceRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    *string   `json:"reason"`
}

func (h *Handler) DeclareAbsence(c echo.Context) error {
	var req declareAbsenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	absence, err := h.svc.DeclareAbsence(c.Request().Context(), caller, req.DoctorID, req.StartDate, req.EndDate, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, absence)
}

func (h *Handler) RemoveAbsence(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	if err := h.svc.RemoveAbsence(c.Request().Context(), caller, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Reads --

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	from, err := time.Parse(time.RFC3339, c.QueryParam("start_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("end_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date")
	}
	slots, err := h.svc.ListSlots(c.Request().Context(), doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) ListAbsences(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	absences, err := h.svc.ListAbsences(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, absences)
}
