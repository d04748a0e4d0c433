package identity

import (
	"context"

	"github.com/google/uuid"
)

type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	Update(ctx context.Context, p *Principal) error
	ListHospitals(ctx context.Context, limit, offset int) ([]*Principal, int, error)
}
