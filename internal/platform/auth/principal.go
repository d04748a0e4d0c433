package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of principal roles. A role is assigned exactly once
// at registration and never changes.
type Role string

const (
	RolePatient  Role = "patient"
	RoleHospital Role = "hospital"
)

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleHospital:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Principal is the authenticated actor on whose behalf a request runs. It is
// passed explicitly to every service call; nothing reads it from globals.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

// IsPatient reports whether the principal holds the patient role.
func (p Principal) IsPatient() bool { return p.Role == RolePatient }

// IsHospital reports whether the principal holds the hospital role.
func (p Principal) IsHospital() bool { return p.Role == RoleHospital }

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
