package grants

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
	"github.com/healthvolt/healthvolt/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/grants", h.RequestAccess, auth.RequireRole(auth.RoleHospital))
	api.GET("/grants", h.ListGrants)
	api.GET("/grants/:id", h.GetGrant)

	patientOnly := auth.RequireRole(auth.RolePatient)
	api.POST("/grants/:id/approve", h.Approve, patientOnly)
	api.POST("/grants/:id/reject", h.Reject, patientOnly)
	api.POST("/grants/:id/revoke", h.Revoke, patientOnly)
}

type requestAccessRequest struct {
	PatientID   string   `json:"patient_id"`
	Scope       string   `json:"scope"`
	RecordTypes []string `json:"record_types"`
	Message     string   `json:"message"`
}

func (h *Handler) RequestAccess(c echo.Context) error {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req requestAccessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	g, err := h.svc.RequestAccess(c.Request().Context(), actor, RequestInput{
		PatientID:   patientID,
		Scope:       req.Scope,
		RecordTypes: req.RecordTypes,
		Message:     req.Message,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

type approveRequest struct {
	ExpiresAt   *time.Time `json:"expires_at"`
	Scope       string     `json:"scope"`
	RecordTypes []string   `json:"record_types"`
}

func (h *Handler) Approve(c echo.Context) error {
	actor, grantID, err := h.actorAndID(c)
	if err != nil {
		return err
	}

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	g, err := h.svc.Approve(c.Request().Context(), actor, grantID, ApproveInput{
		ExpiresAt:   req.ExpiresAt,
		Scope:       req.Scope,
		RecordTypes: req.RecordTypes,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) Reject(c echo.Context) error {
	actor, grantID, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	g, err := h.svc.Reject(c.Request().Context(), actor, grantID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) Revoke(c echo.Context) error {
	actor, grantID, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	g, err := h.svc.Revoke(c.Request().Context(), actor, grantID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) GetGrant(c echo.Context) error {
	actor, grantID, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	g, err := h.svc.GetGrant(c.Request().Context(), actor, grantID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, g)
}

// ListGrants shows the caller its own side of the table: patients see grants
// on their records, hospitals see grants they requested.
func (h *Handler) ListGrants(c echo.Context) error {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	pg := pagination.FromContext(c)
	var (
		items []*AccessGrant
		total int
		err   error
	)
	switch {
	case actor.IsPatient():
		items, total, err = h.svc.ListForPatient(c.Request().Context(), actor, pg.Limit, pg.Offset)
	case actor.IsHospital():
		items, total, err = h.svc.ListForHospital(c.Request().Context(), actor, pg.Limit, pg.Offset)
	default:
		return echo.NewHTTPError(http.StatusForbidden, ErrForbidden.Error())
	}
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []*AccessGrant{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) actorAndID(c echo.Context) (auth.Principal, uuid.UUID, error) {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return auth.Principal{}, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return actor, id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidScope),
		errors.Is(err, ErrInvalidExpiry),
		errors.Is(err, ErrUnknownRecordType),
		errors.Is(err, ErrSelfGrant):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
