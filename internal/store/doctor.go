package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/model"
)

const doctorColumns = `id, name, specialty, license, phone, email, active, created_at, updated_at`

func scanDoctor(row pgx.Row, d *model.Doctor) error {
	return row.Scan(&d.ID, &d.Name, &d.Specialty, &d.License, &d.Phone, &d.Email, &d.Active, &d.CreatedAt, &d.UpdatedAt)
}

func (s *Store) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO doctors (name, specialty, license, phone, email)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, active, created_at, updated_at`,
		d.Name, d.Specialty, d.License, d.Phone, d.Email,
	).Scan(&d.ID, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return translate("create doctor", err)
}

// UpdateDoctor rewrites the descriptive fields only; active is owned by the engine.
func (s *Store) UpdateDoctor(ctx context.Context, d *model.Doctor) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE doctors
		 SET name=$1, specialty=$2, license=$3, phone=$4, email=$5, updated_at=NOW()
		 WHERE id=$6`,
		d.Name, d.Specialty, d.License, d.Phone, d.Email, d.ID,
	)
	if err != nil {
		return false, translate("update doctor", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	d := &model.Doctor{}
	err := scanDoctor(s.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id), d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Invalid(apperr.NotFound, "doctor", "")
	}
	if err != nil {
		return nil, translate("get doctor", err)
	}
	return d, nil
}

func (s *Store) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+doctorColumns+` FROM doctors WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, translate("list doctors", err)
	}
	defer rows.Close()

	var out []model.Doctor
	for rows.Next() {
		var d model.Doctor
		if err := scanDoctor(rows, &d); err != nil {
			return nil, translate("list doctors", err)
		}
		out = append(out, d)
	}
	return out, translate("list doctors", rows.Err())
}
