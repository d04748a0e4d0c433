// Package grants implements time-bounded access grants between patients and
// hospitals. A grant is the only path by which a hospital reaches a
// patient's records; the decision logic lives in Decide and is pure, so the
// same rules apply everywhere a check is needed.
package grants

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthvolt/healthvolt/internal/domain/records"
	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

var (
	ErrNotFound          = errors.New("grant not found")
	ErrForbidden         = errors.New("operation not permitted")
	ErrConflict          = errors.New("an active grant or request already exists")
	ErrInvalidTransition = errors.New("grant is not in a state that allows this transition")
	ErrInvalidScope      = errors.New("unknown scope")
	ErrInvalidExpiry     = errors.New("expiry must be in the future")
	ErrUnknownRecordType = errors.New("unknown record type in allow-list")
	ErrSelfGrant         = errors.New("patient and hospital must differ")
)

// Status is the grant lifecycle state. "expired" is only ever written by the
// sweep; liveness checks never trust the stored status alone.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// Scope is the access level a grant confers. Higher scopes include lower
// ones.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeAdmin Scope = "admin"
)

var scopeRank = map[Scope]int{
	ScopeRead:  1,
	ScopeWrite: 2,
	ScopeAdmin: 3,
}

// ParseScope validates a raw string against the closed set.
func ParseScope(s string) (Scope, bool) {
	sc := Scope(s)
	_, ok := scopeRank[sc]
	return sc, ok
}

// Operation is what a caller wants to do with a patient's records.
type Operation int

const (
	OpRead Operation = iota + 1
	OpWrite
	OpManage
)

// Covers reports whether the scope permits the operation.
func (s Scope) Covers(op Operation) bool {
	return scopeRank[s] >= int(op)
}

// AccessGrant maps to the access_grant table. At most one row exists per
// (patient, hospital) pair; re-requests update the row in place.
type AccessGrant struct {
	ID          uuid.UUID            `db:"id" json:"id"`
	PatientID   uuid.UUID            `db:"patient_id" json:"patient_id"`
	HospitalID  uuid.UUID            `db:"hospital_id" json:"hospital_id"`
	Status      Status               `db:"status" json:"status"`
	Scope       Scope                `db:"scope" json:"scope"`
	RecordTypes []records.RecordType `db:"record_types" json:"record_types"`
	Message     string               `db:"message" json:"message,omitempty"`
	ExpiresAt   *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	RequestedAt time.Time            `db:"requested_at" json:"requested_at"`
	DecidedAt   *time.Time           `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// IsLiveAt reports whether the grant confers access at the given instant.
// An approved grant past its expiry is dead even if the sweep has not
// flipped its stored status yet.
func (g *AccessGrant) IsLiveAt(now time.Time) bool {
	if g == nil || g.Status != StatusApproved {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// EffectiveStatus is what callers should display: approved-but-past grants
// read as expired regardless of what the sweep has gotten to.
func (g *AccessGrant) EffectiveStatus(now time.Time) Status {
	if g.Status == StatusApproved && !g.IsLiveAt(now) {
		return StatusExpired
	}
	return g.Status
}

// CoversType reports whether the grant's allow-list includes the record
// type. An empty list means all types.
func (g *AccessGrant) CoversType(rt records.RecordType) bool {
	if len(g.RecordTypes) == 0 {
		return true
	}
	for _, t := range g.RecordTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r string) Decision { return Decision{Reason: r} }

// Decide is the single authorization rule, pure over its inputs. The owning
// patient is always allowed. A hospital needs a live grant whose scope
// covers the operation and whose allow-list covers the record type. Everyone
// else is denied.
func Decide(actor auth.Principal, op Operation, patientID uuid.UUID, rt records.RecordType, grant *AccessGrant, now time.Time) Decision {
	if actor.IsPatient() && actor.ID == patientID {
		return allow()
	}
	if !actor.IsHospital() {
		return deny("only the owning patient or a granted hospital may access records")
	}
	if grant == nil || grant.HospitalID != actor.ID || grant.PatientID != patientID {
		return deny("no grant for this hospital and patient")
	}
	if !grant.IsLiveAt(now) {
		return deny("grant is not live")
	}
	if !grant.Scope.Covers(op) {
		return deny("grant scope does not cover the operation")
	}
	if !grant.CoversType(rt) {
		return deny("grant does not cover this record type")
	}
	return allow()
}
