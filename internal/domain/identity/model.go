// Package identity manages principal accounts. A principal is either a
// patient or a hospital; the role is assigned at registration and never
// changes afterwards.
package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

var (
	ErrNotFound     = errors.New("principal not found")
	ErrEmailTaken   = errors.New("email is already registered")
	ErrInvalidRole  = errors.New("role must be patient or hospital")
	ErrMissingName  = errors.New("name is required")
	ErrMissingEmail = errors.New("email is required")
	ErrMissingRegNo = errors.New("hospitals must provide a registration number")
)

// Principal maps to the principal table.
type Principal struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Role           auth.Role `db:"role" json:"role"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	RegistrationNo *string   `db:"registration_no" json:"registration_no,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AsAuth returns the compact principal used by the authorization layer.
func (p *Principal) AsAuth() auth.Principal {
	return auth.Principal{ID: p.ID, Role: p.Role}
}
