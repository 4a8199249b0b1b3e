package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/model"
)

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, name, username, email, secret)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Username, a.Email, a.Secret,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translate("create account", err)
}

// AccountByLogin matches either the email or the username. An email match wins
// over another account whose username equals the same string.
func (s *Store) AccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	a := &model.Account{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, username, email, secret, profile_image, created_at, updated_at
		 FROM accounts WHERE email = $1 OR username = $1
		 ORDER BY (email = $1) DESC
		 LIMIT 1`, login,
	).Scan(&a.ID, &a.Name, &a.Username, &a.Email, &a.Secret, &a.ProfileImage, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Invalid(apperr.NotFound, "account", "")
	}
	if err != nil {
		return nil, translate("account by login", err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, username, email, profile_image, created_at, updated_at
		 FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, translate("list accounts", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Username, &a.Email, &a.ProfileImage, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, translate("list accounts", err)
		}
		out = append(out, a)
	}
	return out, translate("list accounts", rows.Err())
}

func (s *Store) UpdateAccountSecret(ctx context.Context, id uuid.UUID, secret string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET secret=$1, updated_at=NOW() WHERE id=$2`, secret, id)
	if err != nil {
		return false, translate("update secret", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdateProfileImage(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET profile_image=$1, updated_at=NOW() WHERE id=$2`, ref, id)
	if err != nil {
		return false, translate("update profile image", err)
	}
	return tag.RowsAffected() > 0, nil
}
