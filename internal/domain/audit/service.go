package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthvolt/healthvolt/internal/platform/middleware"
)

type Service struct {
	repo   EntryRepository
	logger zerolog.Logger
}

func NewService(repo EntryRepository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record persists an entry, assigning its ID.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.Action == "" {
		return ErrMissingAction
	}
	e.ID = uuid.New()
	return s.repo.Create(ctx, &e)
}

// Log is the best-effort variant the domain services use. A failed audit
// write must not fail the operation being audited; it is logged instead.
func (s *Service) Log(ctx context.Context, e Entry) {
	if err := s.Record(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Msg("audit write failed")
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// RecordAccess adapts the HTTP audit middleware's events into log entries,
// satisfying middleware.AccessRecorder.
func (s *Service) RecordAccess(event middleware.AccessEvent) error {
	e := Entry{
		Action:     ActionHTTPAccess,
		EntityType: "http",
		ActorRole:  event.ActorRole,
		Detail:     event.Method + " " + event.Path,
		IPAddress:  event.IPAddress,
		RequestID:  event.RequestID,
	}
	if id, err := uuid.Parse(event.ActorID); err == nil {
		e.ActorID = &id
	}
	return s.Record(context.Background(), e)
}
