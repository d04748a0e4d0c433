package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthvolt/healthvolt/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type RecordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepoPG(pool *pgxpool.Pool) *RecordRepoPG {
	return &RecordRepoPG{pool: pool}
}

func (r *RecordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, patient_id, record_type, title, notes, blob_id,
	file_name, content_type, size_bytes, content_hash,
	uploaded_by_patient, uploaded_by_hospital, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var rt string
	var notes, fileName, contentType, contentHash *string
	var byPatient, byHospital *uuid.UUID
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rt, &rec.Title, &notes, &rec.BlobID,
		&fileName, &contentType, &rec.SizeBytes, &contentHash,
		&byPatient, &byHospital, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Type = RecordType(rt)
	if notes != nil {
		rec.Notes = *notes
	}
	if fileName != nil {
		rec.FileName = *fileName
	}
	if contentType != nil {
		rec.ContentType = *contentType
	}
	if contentHash != nil {
		rec.ContentHash = *contentHash
	}
	switch {
	case byPatient != nil:
		rec.Uploader = Uploader{Kind: UploaderPatient, ID: *byPatient}
	case byHospital != nil:
		rec.Uploader = Uploader{Kind: UploaderHospital, ID: *byHospital}
	}
	return &rec, nil
}

func (r *RecordRepoPG) Create(ctx context.Context, rec *Record) error {
	var byPatient, byHospital *uuid.UUID
	switch rec.Uploader.Kind {
	case UploaderPatient:
		byPatient = &rec.Uploader.ID
	case UploaderHospital:
		byHospital = &rec.Uploader.ID
	default:
		return ErrMissingUploader
	}

	q := `INSERT INTO record (id, patient_id, record_type, title, notes, blob_id,
		file_name, content_type, size_bytes, content_hash,
		uploaded_by_patient, uploaded_by_hospital)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9, NULLIF($10, ''), $11, $12)
		RETURNING created_at, updated_at`
	err := r.conn(ctx).QueryRow(ctx, q,
		rec.ID, rec.PatientID, string(rec.Type), rec.Title, rec.Notes, rec.BlobID,
		rec.FileName, rec.ContentType, rec.SizeBytes, rec.ContentHash,
		byPatient, byHospital,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

func (r *RecordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	q := fmt.Sprintf("SELECT %s FROM record WHERE id = $1", recordCols)
	return scanRecord(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RecordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, types []RecordType, limit, offset int) ([]*Record, int, error) {
	where := "WHERE patient_id = $1"
	args := []interface{}{patientID}
	if len(types) > 0 {
		raw := make([]string, len(types))
		for i, t := range types {
			raw[i] = string(t)
		}
		where += " AND record_type = ANY($2)"
		args = append(args, raw)
	}

	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM record %s", where)
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM record %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		recordCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *RecordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM record WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
