package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

type Service struct {
	repo PrincipalRepository
}

func NewService(repo PrincipalRepository) *Service {
	return &Service{repo: repo}
}

// RegisterInput carries the fields a caller supplies at sign-up. The role is
// fixed here; nothing else in the system can change it later.
type RegisterInput struct {
	Role           auth.Role
	Name           string
	Email          string
	RegistrationNo string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Principal, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Role != auth.RolePatient && in.Role != auth.RoleHospital {
		return nil, ErrInvalidRole
	}
	if in.Name == "" {
		return nil, ErrMissingName
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, ErrMissingEmail
	}
	if in.Role == auth.RoleHospital && strings.TrimSpace(in.RegistrationNo) == "" {
		return nil, ErrMissingRegNo
	}

	p := &Principal{
		ID:    uuid.New(),
		Role:  in.Role,
		Name:  in.Name,
		Email: in.Email,
	}
	if in.RegistrationNo != "" {
		regNo := strings.TrimSpace(in.RegistrationNo)
		p.RegistrationNo = &regNo
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// UpdateProfileInput updates mutable profile fields. Role is deliberately
// absent.
type UpdateProfileInput struct {
	Name  string
	Email string
}

// UpdateProfile lets a principal edit its own name and email. Acting on
// another principal's profile is rejected.
func (s *Service) UpdateProfile(ctx context.Context, actor auth.Principal, id uuid.UUID, in UpdateProfileInput) (*Principal, error) {
	if actor.ID != id {
		return nil, ErrNotFound
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		p.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		if !strings.Contains(email, "@") {
			return nil, ErrMissingEmail
		}
		p.Email = email
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListHospitals is the public directory patients browse when deciding where
// to share records.
func (s *Service) ListHospitals(ctx context.Context, limit, offset int) ([]*Principal, int, error) {
	return s.repo.ListHospitals(ctx, limit, offset)
}
