package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

// AccessEvent captures who touched what over HTTP: the authenticated
// principal, the route, and the outcome.
type AccessEvent struct {
	ActorID   string
	ActorRole string
	Method    string
	Path      string
	Action    string // read, create, update, delete
	IPAddress string
	UserAgent string
	RequestID string
	Status    int
	Timestamp time.Time
}

// AccessRecorder persists access events. The audit domain provides the real
// implementation; tests supply a mock.
type AccessRecorder interface {
	RecordAccess(event AccessEvent) error
}

// AccessRecorderFunc is a function adapter for AccessRecorder.
type AccessRecorderFunc func(event AccessEvent) error

func (f AccessRecorderFunc) RecordAccess(event AccessEvent) error {
	return f(event)
}

// Audit logs every API access after the handler runs, so the response status
// is known. With no recorder it falls back to structured zerolog output.
func Audit(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			err := next(c)

			event := AccessEvent{
				Method:    req.Method,
				Path:      req.URL.Path,
				Action:    actionForMethod(req.Method),
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
				Status:    c.Response().Status,
				Timestamp: time.Now().UTC(),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				event.RequestID = rid
			}
			if p, ok := auth.PrincipalFromContext(req.Context()); ok {
				event.ActorID = p.ID.String()
				event.ActorRole = string(p.Role)
			}

			if len(recorders) == 0 {
				logger.Info().
					Str("actor_id", event.ActorID).
					Str("actor_role", event.ActorRole).
					Str("action", event.Action).
					Str("path", event.Path).
					Int("status", event.Status).
					Str("request_id", event.RequestID).
					Msg("access")
				return err
			}

			for _, r := range recorders {
				if rerr := r.RecordAccess(event); rerr != nil {
					logger.Error().Err(rerr).Msg("audit record failed")
				}
			}

			return err
		}
	}
}

func actionForMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
