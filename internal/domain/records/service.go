package records

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthvolt/healthvolt/internal/domain/audit"
	"github.com/healthvolt/healthvolt/internal/platform/auth"
	"github.com/healthvolt/healthvolt/internal/platform/blobstore"
)

// AccessDecider answers whether an actor may touch a patient's records of a
// given type. The grants service implements it; tests stub it.
type AccessDecider interface {
	CanRead(ctx context.Context, actor auth.Principal, patientID uuid.UUID, rt RecordType) (bool, error)
	CanWrite(ctx context.Context, actor auth.Principal, patientID uuid.UUID, rt RecordType) (bool, error)
}

type auditLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo    RecordRepository
	blobs   blobstore.BlobStore
	decider AccessDecider
	audit   auditLogger
	logger  zerolog.Logger
}

func NewService(repo RecordRepository, blobs blobstore.BlobStore, decider AccessDecider, auditLog auditLogger, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		blobs:   blobs,
		decider: decider,
		audit:   auditLog,
		logger:  logger,
	}
}

func (s *Service) record(ctx context.Context, actor auth.Principal, action string, rec *Record, detail string) {
	if s.audit == nil {
		return
	}
	recID := rec.ID
	patientID := rec.PatientID
	s.audit.Log(ctx, audit.ActorEntry(actor, action, "record", &recID, &patientID, detail))
}

// CreateInput is the metadata for a new record. Content is passed separately
// and may be nil for a metadata-only note.
type CreateInput struct {
	PatientID   uuid.UUID
	Type        string
	Title       string
	Notes       string
	FileName    string
	ContentType string
}

// Create adds a record to the patient's file. The owning patient may always
// create; a hospital needs a live grant with write scope covering the type.
// The uploader tag is fixed here from the actor, so a hospital-created
// record is attributable forever.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput, content io.Reader) (*Record, error) {
	rt, ok := ParseRecordType(in.Type)
	if !ok {
		return nil, ErrInvalidType
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrMissingTitle
	}
	if in.PatientID == uuid.Nil {
		return nil, ErrNotFound
	}

	allowed, err := s.decider.CanWrite(ctx, actor, in.PatientID, rt)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrForbidden
	}

	rec := &Record{
		ID:        uuid.New(),
		PatientID: in.PatientID,
		Type:      rt,
		Title:     strings.TrimSpace(in.Title),
		Notes:     in.Notes,
		Uploader:  UploaderFor(actor),
	}

	if content != nil {
		if in.ContentType != "" {
			if err := blobstore.ValidateContentType(in.ContentType); err != nil {
				return nil, err
			}
		}
		blobID := uuid.New()
		info, err := s.blobs.Put(ctx, blobID.String(), content)
		if err != nil {
			return nil, err
		}
		rec.BlobID = &blobID
		rec.FileName = in.FileName
		rec.ContentType = in.ContentType
		rec.SizeBytes = info.Size
		rec.ContentHash = info.Hash
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		if rec.BlobID != nil {
			if derr := s.blobs.Delete(ctx, rec.BlobID.String()); derr != nil {
				s.logger.Error().Err(derr).Str("blob_id", rec.BlobID.String()).Msg("orphan blob cleanup failed")
			}
		}
		return nil, err
	}

	s.record(ctx, actor, audit.ActionRecordCreate, rec, string(rec.Type))
	return rec, nil
}

// Get returns a record if the actor may read it. A denied read and a missing
// record are the same error, so record existence never leaks.
func (s *Service) Get(ctx context.Context, actor auth.Principal, recordID uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.decider.CanRead(ctx, actor, rec.PatientID, rec.Type)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotFound
	}
	return rec, nil
}

// ListByPatient lists a patient's records. For a hospital the grant's
// allow-list restricts which types show up at all; with no readable types
// the whole listing reads as not-found.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Principal, patientID uuid.UUID, typeFilter string, limit, offset int) ([]*Record, int, error) {
	var filter []RecordType
	if typeFilter != "" {
		rt, ok := ParseRecordType(typeFilter)
		if !ok {
			return nil, 0, ErrInvalidType
		}
		filter = []RecordType{rt}
	}

	if actor.IsPatient() && actor.ID == patientID {
		return s.repo.ListByPatient(ctx, patientID, filter, limit, offset)
	}

	readable, err := s.readableTypes(ctx, actor, patientID, filter)
	if err != nil {
		return nil, 0, err
	}
	if len(readable) == 0 {
		return nil, 0, ErrNotFound
	}
	return s.repo.ListByPatient(ctx, patientID, readable, limit, offset)
}

// readableTypes narrows the candidate types to those the actor may read.
func (s *Service) readableTypes(ctx context.Context, actor auth.Principal, patientID uuid.UUID, filter []RecordType) ([]RecordType, error) {
	candidates := filter
	if len(candidates) == 0 {
		candidates = []RecordType{TypeLabReport, TypeImaging, TypePrescription, TypeDICOM, TypeNote}
	}
	var readable []RecordType
	for _, rt := range candidates {
		ok, err := s.decider.CanRead(ctx, actor, patientID, rt)
		if err != nil {
			return nil, err
		}
		if ok {
			readable = append(readable, rt)
		}
	}
	return readable, nil
}

// Download streams a record's content, behind the same read decision as Get.
func (s *Service) Download(ctx context.Context, actor auth.Principal, recordID uuid.UUID) (io.ReadCloser, *Record, error) {
	rec, err := s.Get(ctx, actor, recordID)
	if err != nil {
		return nil, nil, err
	}
	if !rec.HasContent() {
		return nil, nil, ErrNoContent
	}
	rc, err := s.blobs.Get(ctx, rec.BlobID.String())
	if err != nil {
		return nil, nil, err
	}
	s.record(ctx, actor, audit.ActionRecordDownload, rec, rec.FileName)
	return rc, rec, nil
}

// Delete removes a record and its content. Only the owning patient may
// delete; a hospital that can read the record is told so explicitly, anyone
// else sees not-found.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, recordID uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}

	if !actor.IsPatient() || actor.ID != rec.PatientID {
		canRead, err := s.decider.CanRead(ctx, actor, rec.PatientID, rec.Type)
		if err != nil {
			return err
		}
		if canRead {
			return ErrForbidden
		}
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, recordID); err != nil {
		return err
	}
	if rec.BlobID != nil {
		if err := s.blobs.Delete(ctx, rec.BlobID.String()); err != nil {
			s.logger.Error().Err(err).Str("blob_id", rec.BlobID.String()).Msg("blob delete failed")
		}
	}

	s.record(ctx, actor, audit.ActionRecordDelete, rec, string(rec.Type))
	return nil
}
