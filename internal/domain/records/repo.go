package records

import (
	"context"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// ListByPatient returns the patient's records restricted to the given
	// types. An empty type list means no restriction.
	ListByPatient(ctx context.Context, patientID uuid.UUID, types []RecordType, limit, offset int) ([]*Record, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
