package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthvolt/healthvolt/internal/domain/audit"
	"github.com/healthvolt/healthvolt/internal/domain/records"
	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

// auditLogger is the slice of audit.Service the grant workflow needs.
type auditLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo   GrantRepository
	audit  auditLogger
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo GrantRepository, auditLog auditLogger, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  auditLog,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) record(ctx context.Context, actor auth.Principal, action string, g *AccessGrant, detail string) {
	if s.audit == nil {
		return
	}
	grantID := g.ID
	patientID := g.PatientID
	s.audit.Log(ctx, audit.ActorEntry(actor, action, "grant", &grantID, &patientID, detail))
}

// RequestInput is what a hospital submits when asking for access.
type RequestInput struct {
	PatientID   uuid.UUID
	Scope       string
	RecordTypes []string
	Message     string
}

// RequestAccess creates a pending grant from the acting hospital to the
// patient, or resets a dead one. A pending or live grant for the same pair
// is a conflict, never silently replaced.
func (s *Service) RequestAccess(ctx context.Context, actor auth.Principal, in RequestInput) (*AccessGrant, error) {
	if !actor.IsHospital() {
		return nil, ErrForbidden
	}
	if in.PatientID == uuid.Nil || in.PatientID == actor.ID {
		return nil, ErrSelfGrant
	}

	scope := ScopeRead
	if in.Scope != "" {
		parsed, ok := ParseScope(in.Scope)
		if !ok {
			return nil, ErrInvalidScope
		}
		scope = parsed
	}

	types, err := parseTypes(in.RecordTypes)
	if err != nil {
		return nil, err
	}

	g := &AccessGrant{
		ID:          uuid.New(),
		PatientID:   in.PatientID,
		HospitalID:  actor.ID,
		Status:      StatusPending,
		Scope:       scope,
		RecordTypes: types,
		Message:     in.Message,
	}
	if err := s.repo.Request(ctx, g); err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.ActionGrantRequest, g, fmt.Sprintf("scope=%s", g.Scope))
	return g, nil
}

// ApproveInput lets the patient narrow the request while approving it.
type ApproveInput struct {
	ExpiresAt   *time.Time
	Scope       string
	RecordTypes []string
}

// Approve moves a pending grant to approved. Only the patient the grant
// targets may approve, and only from pending.
func (s *Service) Approve(ctx context.Context, actor auth.Principal, grantID uuid.UUID, in ApproveInput) (*AccessGrant, error) {
	g, err := s.loadOwned(ctx, actor, grantID)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}
	if in.Scope != "" {
		scope, ok := ParseScope(in.Scope)
		if !ok {
			return nil, ErrInvalidScope
		}
		g.Scope = scope
	}
	if in.RecordTypes != nil {
		types, err := parseTypes(in.RecordTypes)
		if err != nil {
			return nil, err
		}
		g.RecordTypes = types
	}

	g.Status = StatusApproved
	g.ExpiresAt = in.ExpiresAt
	g.DecidedAt = &now

	if err := s.repo.Transition(ctx, g, StatusPending); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionGrantApprove, g, fmt.Sprintf("scope=%s", g.Scope))
	return g, nil
}

// Reject moves a pending grant to rejected.
func (s *Service) Reject(ctx context.Context, actor auth.Principal, grantID uuid.UUID) (*AccessGrant, error) {
	g, err := s.loadOwned(ctx, actor, grantID)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	g.Status = StatusRejected
	g.DecidedAt = &now

	if err := s.repo.Transition(ctx, g, StatusPending); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionGrantReject, g, "")
	return g, nil
}

// Revoke kills an approved grant immediately. The patient can do this at any
// time; the hospital loses access the moment the row is written.
func (s *Service) Revoke(ctx context.Context, actor auth.Principal, grantID uuid.UUID) (*AccessGrant, error) {
	g, err := s.loadOwned(ctx, actor, grantID)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusApproved {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	g.Status = StatusRevoked
	g.DecidedAt = &now

	if err := s.repo.Transition(ctx, g, StatusApproved); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionGrantRevoke, g, "")
	return g, nil
}

// GetGrant returns a grant to one of its two parties. Anyone else sees
// not-found, not forbidden, so grant existence does not leak.
func (s *Service) GetGrant(ctx context.Context, actor auth.Principal, grantID uuid.UUID) (*AccessGrant, error) {
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if actor.ID != g.PatientID && actor.ID != g.HospitalID {
		return nil, ErrNotFound
	}
	g.Status = g.EffectiveStatus(s.now())
	return g, nil
}

// ListForPatient lists the acting patient's grants with effective statuses.
func (s *Service) ListForPatient(ctx context.Context, actor auth.Principal, limit, offset int) ([]*AccessGrant, int, error) {
	if !actor.IsPatient() {
		return nil, 0, ErrForbidden
	}
	items, total, err := s.repo.ListForPatient(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.applyEffective(items)
	return items, total, nil
}

// ListForHospital lists the acting hospital's grants with effective statuses.
func (s *Service) ListForHospital(ctx context.Context, actor auth.Principal, limit, offset int) ([]*AccessGrant, int, error) {
	if !actor.IsHospital() {
		return nil, 0, ErrForbidden
	}
	items, total, err := s.repo.ListForHospital(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	s.applyEffective(items)
	return items, total, nil
}

func (s *Service) applyEffective(items []*AccessGrant) {
	now := s.now()
	for _, g := range items {
		g.Status = g.EffectiveStatus(now)
	}
}

// SweepExpired flips approved-and-past grants to expired. It is idempotent
// and safe to run concurrently; overlapping sweeps just find nothing left.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info().Int64("expired", count).Msg("grant sweep")
		if s.audit != nil {
			s.audit.Log(ctx, audit.Entry{
				Action:     audit.ActionGrantSweep,
				EntityType: "grant",
				Detail:     fmt.Sprintf("expired %d grants", count),
			})
		}
	}
	return count, nil
}

// CanRead reports whether the actor may read the patient's records of the
// given type. Satisfies the records package's access decider.
func (s *Service) CanRead(ctx context.Context, actor auth.Principal, patientID uuid.UUID, rt records.RecordType) (bool, error) {
	return s.decide(ctx, actor, OpRead, patientID, rt)
}

// CanWrite reports whether the actor may create records on the patient's
// file.
func (s *Service) CanWrite(ctx context.Context, actor auth.Principal, patientID uuid.UUID, rt records.RecordType) (bool, error) {
	return s.decide(ctx, actor, OpWrite, patientID, rt)
}

func (s *Service) decide(ctx context.Context, actor auth.Principal, op Operation, patientID uuid.UUID, rt records.RecordType) (bool, error) {
	var grant *AccessGrant
	if actor.IsHospital() {
		g, err := s.repo.GetByPair(ctx, patientID, actor.ID)
		if err != nil && err != ErrNotFound {
			return false, err
		}
		grant = g
	}
	return Decide(actor, op, patientID, rt, grant, s.now()).Allowed, nil
}

func (s *Service) loadOwned(ctx context.Context, actor auth.Principal, grantID uuid.UUID) (*AccessGrant, error) {
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	// Hide foreign grants entirely; the hospital party may see but not decide.
	if actor.ID != g.PatientID && actor.ID != g.HospitalID {
		return nil, ErrNotFound
	}
	if !actor.IsPatient() || actor.ID != g.PatientID {
		return nil, ErrForbidden
	}
	return g, nil
}

func parseTypes(raw []string) ([]records.RecordType, error) {
	var types []records.RecordType
	for _, t := range raw {
		rt, ok := records.ParseRecordType(t)
		if !ok {
			return nil, ErrUnknownRecordType
		}
		types = append(types, rt)
	}
	return types, nil
}
