package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/model"
)

const patientColumns = `id, name, national_id, phone, email, birth_date, address, active, created_at, updated_at`

func scanPatient(row pgx.Row, p *model.Patient) error {
	return row.Scan(&p.ID, &p.Name, &p.NationalID, &p.Phone, &p.Email, &p.BirthDate, &p.Address, &p.Active, &p.CreatedAt, &p.UpdatedAt)
}

func (s *Store) CreatePatient(ctx context.Context, p *model.Patient) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO patients (name, national_id, phone, email, birth_date, address)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id, active, created_at, updated_at`,
		p.Name, p.NationalID, p.Phone, p.Email, p.BirthDate, p.Address,
	).Scan(&p.ID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return translate("create patient", err)
}

func (s *Store) UpdatePatient(ctx context.Context, p *model.Patient) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients
		 SET name=$1, national_id=$2, phone=$3, email=$4, birth_date=$5, address=$6, updated_at=NOW()
		 WHERE id=$7`,
		p.Name, p.NationalID, p.Phone, p.Email, p.BirthDate, p.Address, p.ID,
	)
	if err != nil {
		return false, translate("update patient", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	p := &model.Patient{}
	err := scanPatient(s.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id), p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Invalid(apperr.NotFound, "patient", "")
	}
	if err != nil {
		return nil, translate("get patient", err)
	}
	return p, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]model.Patient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, translate("list patients", err)
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := scanPatient(rows, &p); err != nil {
			return nil, translate("list patients", err)
		}
		out = append(out, p)
	}
	return out, translate("list patients", rows.Err())
}
