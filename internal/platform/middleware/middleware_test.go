package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rid, ok := c.Get("request_id").(string)
	if !ok || rid == "" {
		t.Fatal("expected a generated request_id")
	}
	if _, err := uuid.Parse(rid); err != nil {
		t.Errorf("expected a UUID request id, got %q", rid)
	}
	if rec.Header().Get("X-Request-ID") != rid {
		t.Error("expected X-Request-ID response header to match")
	}
}

func TestRequestID_HonorsInbound(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rid := c.Get("request_id"); rid != "caller-supplied-id" {
		t.Errorf("expected inbound request id to be kept, got %v", rid)
	}
}

func TestRecovery_TurnsPanicInto500(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	logger := zerolog.New(os.Stderr)
	handler := func(c echo.Context) error {
		panic("boom")
	}

	err := Recovery(logger)(handler)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
}

func TestAudit_RecordsPrincipalAndAction(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", nil)
	principal := auth.Principal{ID: uuid.New(), Role: auth.RoleHospital}
	req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-1")

	var got AccessEvent
	recorder := AccessRecorderFunc(func(event AccessEvent) error {
		got = event
		return nil
	})

	handler := func(c echo.Context) error {
		return c.String(http.StatusCreated, "created")
	}

	logger := zerolog.New(os.Stderr)
	if err := Audit(logger, recorder)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ActorID != principal.ID.String() {
		t.Errorf("expected actor %s, got %s", principal.ID, got.ActorID)
	}
	if got.ActorRole != "hospital" {
		t.Errorf("expected hospital role, got %s", got.ActorRole)
	}
	if got.Action != "create" {
		t.Errorf("expected create action, got %s", got.Action)
	}
	if got.RequestID != "req-1" {
		t.Errorf("expected request id req-1, got %s", got.RequestID)
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	recorder := AccessRecorderFunc(func(event AccessEvent) error {
		called = true
		return nil
	})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	logger := zerolog.New(os.Stderr)
	if err := Audit(logger, recorder)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected health endpoint to be excluded from audit")
	}
}

func TestRateLimit_Enforced(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		lastErr = mw(handler)(c)
	}

	if lastErr == nil {
		t.Fatal("expected third request to be rate limited")
	}
	httpErr, ok := lastErr.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %v", lastErr)
	}
}
