package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthvolt/healthvolt/internal/platform/auth"
	"github.com/healthvolt/healthvolt/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type PrincipalRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepoPG(pool *pgxpool.Pool) *PrincipalRepoPG {
	return &PrincipalRepoPG{pool: pool}
}

func (r *PrincipalRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const principalCols = `id, role, name, email, registration_no, created_at, updated_at`

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	var role string
	err := row.Scan(&p.ID, &role, &p.Name, &p.Email, &p.RegistrationNo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Role = auth.Role(role)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PrincipalRepoPG) Create(ctx context.Context, p *Principal) error {
	q := `INSERT INTO principal (id, role, name, email, registration_no)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	err := r.conn(ctx).QueryRow(ctx, q,
		p.ID, string(p.Role), p.Name, p.Email, p.RegistrationNo,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PrincipalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	q := fmt.Sprintf("SELECT %s FROM principal WHERE id = $1", principalCols)
	return scanPrincipal(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *PrincipalRepoPG) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	q := fmt.Sprintf("SELECT %s FROM principal WHERE email = $1", principalCols)
	return scanPrincipal(r.conn(ctx).QueryRow(ctx, q, email))
}

func (r *PrincipalRepoPG) Update(ctx context.Context, p *Principal) error {
	q := `UPDATE principal
		SET name = $2, email = $3, registration_no = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.conn(ctx).QueryRow(ctx, q, p.ID, p.Name, p.Email, p.RegistrationNo).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PrincipalRepoPG) ListHospitals(ctx context.Context, limit, offset int) ([]*Principal, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM principal WHERE role = 'hospital'",
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(
		"SELECT %s FROM principal WHERE role = 'hospital' ORDER BY name LIMIT $1 OFFSET $2",
		principalCols)
	rows, err := r.conn(ctx).Query(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
