// Package audit keeps the append-only access log. Entries are written by the
// domain services and by the HTTP audit middleware; nothing updates or
// deletes them.
package audit

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMissingAction = errors.New("audit action is required")

// Actions recorded by the domain services.
const (
	ActionRecordCreate   = "record.create"
	ActionRecordDownload = "record.download"
	ActionRecordDelete   = "record.delete"
	ActionGrantRequest   = "grant.request"
	ActionGrantApprove   = "grant.approve"
	ActionGrantReject    = "grant.reject"
	ActionGrantRevoke    = "grant.revoke"
	ActionGrantSweep     = "grant.sweep"
	ActionHTTPAccess     = "http.access"
)

// Entry maps to the audit_entry table.
type Entry struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ActorID    *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	ActorRole  string     `db:"actor_role" json:"actor_role,omitempty"`
	Action     string     `db:"action" json:"action"`
	EntityType string     `db:"entity_type" json:"entity_type"`
	EntityID   *uuid.UUID `db:"entity_id" json:"entity_id,omitempty"`
	PatientID  *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Detail     string     `db:"detail" json:"detail,omitempty"`
	IPAddress  string     `db:"ip_address" json:"ip_address,omitempty"`
	RequestID  string     `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	ActorID   *uuid.UUID
	PatientID *uuid.UUID
	Action    string
	Since     *time.Time
}
