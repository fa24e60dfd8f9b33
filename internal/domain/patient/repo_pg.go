package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// postgresRepo stores patients in the patients table. Uniqueness is the
// primary key's job and each write is a single statement, so Postgres gives
// the same atomicity the in-memory store gets from its lock.
type postgresRepo struct {
	db querier
}

func NewPostgresRepo(pool *pgxpool.Pool) Repository {
	return &postgresRepo{db: pool}
}

const patientCols = `hn, full_name, gender, nickname, phone, age,
	to_char(date_of_birth, 'YYYY-MM-DD'), photo, created_at, updated_at`

func (r *postgresRepo) List(ctx context.Context) ([]*Patient, error) {
	rows, err := r.db.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY created_at DESC, hn DESC`)
	if err != nil {
		return nil, mapPGError("list patients", err)
	}
	defer rows.Close()

	out := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, mapPGError("scan patient", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPGError("iterate patients", err)
	}
	return out, nil
}

func (r *postgresRepo) Get(ctx context.Context, hn HN) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE hn = $1`, string(hn)))
	if err != nil {
		return nil, mapPGError("get patient", err)
	}
	return p, nil
}

func (r *postgresRepo) Create(ctx context.Context, p *Patient) (*Patient, error) {
	if err := checkRecord(p); err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (hn, full_name, gender, nickname, phone, age, date_of_birth, photo)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8)
		RETURNING `+patientCols,
		string(p.HN), p.FullName, p.Gender, p.Nickname, p.Phone, p.Age, p.DateOfBirth, p.Photo,
	)
	created, err := scanPatient(row)
	if err != nil {
		return nil, mapPGError("create patient", err)
	}
	return created, nil
}

func (r *postgresRepo) Update(ctx context.Context, hn HN, p *Patient) (*Patient, error) {
	if p.HN != "" && p.HN != hn {
		return nil, newValidationError(FieldHN, CodeHNImmutable, "hospital number cannot be changed")
	}
	next := p.clone()
	next.HN = hn
	if err := checkRecord(next); err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		UPDATE patients
		SET full_name = $1, gender = $2, nickname = $3, phone = $4,
		    age = $5, date_of_birth = $6::date, photo = $7,
		    updated_at = GREATEST(NOW(), updated_at)
		WHERE hn = $8
		RETURNING `+patientCols,
		next.FullName, next.Gender, next.Nickname, next.Phone, next.Age, next.DateOfBirth, next.Photo, string(hn),
	)
	updated, err := scanPatient(row)
	if err != nil {
		return nil, mapPGError("update patient", err)
	}
	return updated, nil
}

func (r *postgresRepo) Delete(ctx context.Context, hn HN) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE hn = $1`, string(hn))
	if err != nil {
		return mapPGError("delete patient", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p  Patient
		hn string
	)
	err := row.Scan(
		&hn, &p.FullName, &p.Gender, &p.Nickname, &p.Phone, &p.Age,
		&p.DateOfBirth, &p.Photo, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.HN = HN(hn)
	return &p, nil
}

// mapPGError folds driver errors into the registry's error taxonomy.
func mapPGError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrAlreadyExists
		case "23514", "22001", "22007", "22008":
			return fmt.Errorf("%s: %w: %s", op, ErrValidationFailed, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrInternal, err)
}
