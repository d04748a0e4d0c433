package audit

import (
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
	api.GET("/audit", h.ListEntries)
}

// ListEntries shows a principal its own slice of the log: patients see
// entries about their records and grants, hospitals see entries they caused.
func (h *Handler) ListEntries(c echo.Context) error {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	filter := ListFilter{}
	switch actor.Role {
	case auth.RolePatient:
		filter.PatientID = &actor.ID
	case auth.RoleHospital:
		filter.ActorID = &actor.ID
	}

	if action := c.QueryParam("action"); action != "" {
		filter.Action = action
	}
	if since := c.QueryParam("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC3339")
		}
		filter.Since = &t
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Entry{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// helper for services building entries about a principal.
func ActorEntry(actor auth.Principal, action, entityType string, entityID, patientID *uuid.UUID, detail string) Entry {
	actorID := actor.ID
	return Entry{
		ActorID:    &actorID,
		ActorRole:  string(actor.Role),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		PatientID:  patientID,
		Detail:     detail,
	}
}
