package grants

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type GrantRepository interface {
	// Request atomically inserts a pending grant, or resets an existing
	// dead row (rejected, revoked, expired, or approved-and-past) back to
	// pending. Returns ErrConflict when the existing row is pending or
	// approved-and-live.
	Request(ctx context.Context, g *AccessGrant) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error)
	GetByPair(ctx context.Context, patientID, hospitalID uuid.UUID) (*AccessGrant, error)
	// Transition writes the grant's mutable fields, guarded by a
	// compare-and-swap on the previous status. Returns ErrInvalidTransition
	// when the row is no longer in the expected state.
	Transition(ctx context.Context, g *AccessGrant, from Status) error
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error)
	ListForHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error)
	// SweepExpired flips approved-and-past rows to expired in one statement
	// and reports how many it touched.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
