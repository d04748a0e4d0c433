package records

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
	"github.com/healthvolt/healthvolt/internal/platform/blobstore"
	"github.com/healthvolt/healthvolt/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/records", h.CreateRecord)
	api.GET("/records/:id", h.GetRecord)
	api.GET("/records/:id/content", h.DownloadContent)
	api.DELETE("/records/:id", h.DeleteRecord)
	api.GET("/patients/:patientId/records", h.ListPatientRecords)
}

type createRecordRequest struct {
	PatientID string `json:"patient_id"`
	Type      string `json:"record_type"`
	Title     string `json:"title"`
	Notes     string `json:"notes"`
}

// CreateRecord accepts either a JSON body for a metadata-only record, or a
// multipart form with a "file" part plus the same fields as form values.
func (h *Handler) CreateRecord(c echo.Context) error {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, "multipart/") {
		return h.createFromMultipart(c, actor)
	}

	var req createRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	rec, err := h.svc.Create(c.Request().Context(), actor, CreateInput{
		PatientID: patientID,
		Type:      req.Type,
		Title:     req.Title,
		Notes:     req.Notes,
	}, nil)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) createFromMultipart(c echo.Context, actor auth.Principal) error {
	patientID, err := uuid.Parse(c.FormValue("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	in := CreateInput{
		PatientID: patientID,
		Type:      c.FormValue("record_type"),
		Title:     c.FormValue("title"),
		Notes:     c.FormValue("notes"),
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	in.FileName = file.Filename
	in.ContentType = file.Header.Get("Content-Type")

	rec, err := h.svc.Create(c.Request().Context(), actor, in, src)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetRecord(c echo.Context) error {
	actor, recordID, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), actor, recordID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DownloadContent(c echo.Context) error {
	actor, recordID, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	rc, rec, err := h.svc.Download(c.Request().Context(), actor, recordID)
	if err != nil {
		return mapError(err)
	}
	defer rc.Close()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rec.FileName))
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	actor, recordID, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), actor, recordID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatientRecords(c echo.Context) error {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID,
		c.QueryParam("record_type"), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []*Record{}
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
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoContent), errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrMissingTitle):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
