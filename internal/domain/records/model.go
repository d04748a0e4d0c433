// Package records manages medical records: metadata rows in Postgres plus
// optional file content in the blob store. Every operation takes the acting
// principal and is checked against the patient's access grants before any
// storage is touched.
package records

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrForbidden       = errors.New("operation not permitted")
	ErrInvalidType     = errors.New("unknown record type")
	ErrMissingTitle    = errors.New("title is required")
	ErrMissingUploader = errors.New("record must have exactly one uploader")
	ErrNoContent       = errors.New("record has no attached content")
)

// RecordType is the closed set of supported record categories.
type RecordType string

const (
	TypeLabReport    RecordType = "lab-report"
	TypeImaging      RecordType = "imaging"
	TypePrescription RecordType = "prescription"
	TypeDICOM        RecordType = "dicom"
	TypeNote         RecordType = "note"
)

var validRecordTypes = map[RecordType]bool{
	TypeLabReport:    true,
	TypeImaging:      true,
	TypePrescription: true,
	TypeDICOM:        true,
	TypeNote:         true,
}

// ParseRecordType validates a raw string against the closed set.
func ParseRecordType(s string) (RecordType, bool) {
	rt := RecordType(s)
	return rt, validRecordTypes[rt]
}

// UploaderKind distinguishes who attached a record to a patient's file.
type UploaderKind string

const (
	UploaderPatient  UploaderKind = "patient"
	UploaderHospital UploaderKind = "hospital"
)

// Uploader identifies the principal that created a record. The constructor
// is the only way to build one, so a record can never carry zero or two
// uploaders.
type Uploader struct {
	Kind UploaderKind `json:"kind"`
	ID   uuid.UUID    `json:"id"`
}

// UploaderFor derives the uploader from the acting principal.
func UploaderFor(actor auth.Principal) Uploader {
	kind := UploaderPatient
	if actor.Role == auth.RoleHospital {
		kind = UploaderHospital
	}
	return Uploader{Kind: kind, ID: actor.ID}
}

// Record maps to the record table.
type Record struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Type        RecordType `db:"record_type" json:"record_type"`
	Title       string     `db:"title" json:"title"`
	Notes       string     `db:"notes" json:"notes,omitempty"`
	BlobID      *uuid.UUID `db:"blob_id" json:"blob_id,omitempty"`
	FileName    string     `db:"file_name" json:"file_name,omitempty"`
	ContentType string     `db:"content_type" json:"content_type,omitempty"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	ContentHash string     `db:"content_hash" json:"content_hash,omitempty"`
	Uploader    Uploader   `json:"uploader"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// HasContent reports whether the record carries a stored file, as opposed to
// a metadata-only note.
func (r *Record) HasContent() bool {
	return r.BlobID != nil
}
