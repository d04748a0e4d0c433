package grants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthvolt/healthvolt/internal/domain/records"
	"github.com/healthvolt/healthvolt/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type GrantRepoPG struct {
	pool *pgxpool.Pool
}

func NewGrantRepoPG(pool *pgxpool.Pool) *GrantRepoPG {
	return &GrantRepoPG{pool: pool}
}

func (r *GrantRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const grantCols = `id, patient_id, hospital_id, status, scope, record_types,
	message, expires_at, requested_at, decided_at, created_at, updated_at`

func typesToStrings(types []records.RecordType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func scanGrant(row pgx.Row) (*AccessGrant, error) {
	var g AccessGrant
	var status, scope string
	var rawTypes []string
	err := row.Scan(
		&g.ID, &g.PatientID, &g.HospitalID, &status, &scope, &rawTypes,
		&g.Message, &g.ExpiresAt, &g.RequestedAt, &g.DecidedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.Status = Status(status)
	g.Scope = Scope(scope)
	g.RecordTypes = make([]records.RecordType, len(rawTypes))
	for i, t := range rawTypes {
		g.RecordTypes[i] = records.RecordType(t)
	}
	return &g, nil
}

// Request relies on the UNIQUE (patient_id, hospital_id) constraint. The
// conditional DO UPDATE only fires for dead rows, so the whole
// insert-or-reset is one atomic statement; a concurrent duplicate simply
// loses the race and sees no returned row.
func (r *GrantRepoPG) Request(ctx context.Context, g *AccessGrant) error {
	q := fmt.Sprintf(`INSERT INTO access_grant
		(id, patient_id, hospital_id, status, scope, record_types, message, requested_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6, NOW())
		ON CONFLICT (patient_id, hospital_id) DO UPDATE SET
			status = 'pending',
			scope = EXCLUDED.scope,
			record_types = EXCLUDED.record_types,
			message = EXCLUDED.message,
			expires_at = NULL,
			requested_at = NOW(),
			decided_at = NULL,
			updated_at = NOW()
		WHERE access_grant.status IN ('rejected', 'revoked', 'expired')
			OR (access_grant.status = 'approved'
				AND access_grant.expires_at IS NOT NULL
				AND access_grant.expires_at <= NOW())
		RETURNING %s`, grantCols)

	row := r.conn(ctx).QueryRow(ctx, q,
		g.ID, g.PatientID, g.HospitalID, string(g.Scope),
		typesToStrings(g.RecordTypes), g.Message,
	)
	stored, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The conflicting row was pending or approved-and-live.
			return ErrConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return err
	}
	*g = *stored
	return nil
}

func (r *GrantRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	q := fmt.Sprintf("SELECT %s FROM access_grant WHERE id = $1", grantCols)
	return scanGrant(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *GrantRepoPG) GetByPair(ctx context.Context, patientID, hospitalID uuid.UUID) (*AccessGrant, error) {
	q := fmt.Sprintf("SELECT %s FROM access_grant WHERE patient_id = $1 AND hospital_id = $2", grantCols)
	return scanGrant(r.conn(ctx).QueryRow(ctx, q, patientID, hospitalID))
}

func (r *GrantRepoPG) Transition(ctx context.Context, g *AccessGrant, from Status) error {
	q := fmt.Sprintf(`UPDATE access_grant SET
			status = $3, scope = $4, record_types = $5,
			expires_at = $6, decided_at = $7, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s`, grantCols)

	row := r.conn(ctx).QueryRow(ctx, q,
		g.ID, string(from), string(g.Status), string(g.Scope),
		typesToStrings(g.RecordTypes), g.ExpiresAt, g.DecidedAt,
	)
	stored, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidTransition
		}
		return err
	}
	*g = *stored
	return nil
}

func (r *GrantRepoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM access_grant WHERE %s = $1", col)
	if err := r.conn(ctx).QueryRow(ctx, countQ, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(
		"SELECT %s FROM access_grant WHERE %s = $1 ORDER BY requested_at DESC LIMIT $2 OFFSET $3",
		grantCols, col)
	rows, err := r.conn(ctx).Query(ctx, q, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *GrantRepoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *GrantRepoPG) ListForHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	return r.list(ctx, "hospital_id", hospitalID, limit, offset)
}

func (r *GrantRepoPG) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE access_grant SET status = 'expired', updated_at = NOW()
		WHERE status = 'approved' AND expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
