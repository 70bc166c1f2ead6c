package review

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/domain/booking"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/pkg/pagination"
)

// httpError maps service failures onto HTTP statuses using the booking
// error taxonomy; a missing or foreign slot must not read as a 400.
func httpError(err error) error {
	var status int
	switch booking.CodeOf(err) {
	case booking.CodeInvalidArgument:
		status = http.StatusBadRequest
	case booking.CodeNotFound:
		status = http.StatusNotFound
	case booking.CodeForbidden:
		status = http.StatusForbidden
	case booking.CodeConflict:
		status = http.StatusConflict
	case booking.CodeInvalidState:
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}
	return echo.NewHTTPError(status, err.Error())
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reviews", h.ListByDoctor)
	api.POST("/reviews", h.CreateReview, auth.RequireRole(auth.RolePatient))
}

type createReviewRequest struct {
	SlotID  uuid.UUID `json:"slot_id"`
	Rating  int       `json:"rating"`
	Comment *string   `json:"comment"`
}

func (h *Handler) CreateReview(c echo.Context) error {
	var req createReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.PrincipalFromContext(c.Request().Context())
	if caller == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	r, err := h.svc.CreateReview(c.Request().Context(), caller.UserID, req.SlotID, req.Rating, req.Comment)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
