// Package auth turns credentials into signed, time-bounded tokens and tokens back
// into a trusted principal. It also owns account registration and self-service
// updates, since those are the only writers of account credentials.
package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/model"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	AccountByLogin(ctx context.Context, login string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	UpdateAccountSecret(ctx context.Context, id uuid.UUID, secret string) (bool, error)
	UpdateProfileImage(ctx context.Context, id uuid.UUID, ref string) (bool, error)
}

type AccountSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginResult struct {
	Authenticated bool           `json:"authenticated"`
	Token         string         `json:"token"`
	ExpiresAt     time.Time      `json:"expiresAt"`
	Account       AccountSummary `json:"account"`
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Username string `json:"username" validate:"required,max=64,excludes=@"`
	Email    string `json:"email" validate:"required,email"`
	Secret   string `json:"secret" validate:"required,max=72"`
}

type Service struct {
	store  AccountStore
	tokens *TokenService
	scheme SecretScheme
}

func NewService(st AccountStore, tokens *TokenService, scheme SecretScheme) *Service {
	if scheme == nil {
		scheme = PlainScheme{}
	}
	return &Service{store: st, tokens: tokens, scheme: scheme}
}

// Login accepts an email or username. Unknown accounts and wrong secrets produce the
// same error; a store failure is reported as such.
func (s *Service) Login(ctx context.Context, login, secret string) (*LoginResult, error) {
	if login == "" || secret == "" {
		return nil, apperr.Invalid(apperr.MalformedInput, "", "login and secret required")
	}

	a, err := s.store.AccountByLogin(ctx, login)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Printf("login: no account for %q", login)
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageErr("account lookup", err)
	}

	if !s.scheme.Match(a.Secret, secret) {
		log.Printf("login: secret mismatch for %s", a.ID)
		return nil, apperr.ErrInvalidCredentials
	}

	tok, claims, err := s.tokens.Issue(a)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Authenticated: true,
		Token:         tok,
		ExpiresAt:     claims.ExpiresAt.Time,
		Account:       AccountSummary{ID: a.ID.String(), Name: a.Name, Email: a.Email},
	}, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	secret, err := s.scheme.Prepare(in.Secret)
	if err != nil {
		return nil, err
	}
	a := &model.Account{
		ID:       uuid.New(),
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Secret:   secret,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, storageErr("create account", err)
	}
	log.Printf("account %s registered", a.ID)
	return a, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]model.Account, error) {
	out, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, storageErr("list accounts", err)
	}
	return out, nil
}

// ChangeSecret replaces the calling principal's secret.
func (s *Service) ChangeSecret(ctx context.Context, secret string) error {
	id, err := principalID(ctx)
	if err != nil {
		return err
	}
	if secret == "" || len(secret) > 72 {
		return apperr.Invalid(apperr.MalformedInput, "secret", "must be 1 to 72 bytes")
	}
	prepared, err := s.scheme.Prepare(secret)
	if err != nil {
		return err
	}
	ok, err := s.store.UpdateAccountSecret(ctx, id, prepared)
	if err != nil {
		return storageErr("update secret", err)
	}
	if !ok {
		return apperr.Invalid(apperr.NotFound, "account", "account no longer exists")
	}
	return nil
}

// SetProfileImage records a reference to an already stored image for the principal.
func (s *Service) SetProfileImage(ctx context.Context, ref string) error {
	id, err := principalID(ctx)
	if err != nil {
		return err
	}
	if ref == "" {
		return apperr.Invalid(apperr.MalformedInput, "image", "required")
	}
	ok, err := s.store.UpdateProfileImage(ctx, id, ref)
	if err != nil {
		return storageErr("update profile image", err)
	}
	if !ok {
		return apperr.Invalid(apperr.NotFound, "account", "account no longer exists")
	}
	return nil
}

func principalID(ctx context.Context) (uuid.UUID, error) {
	c, ok := PrincipalFrom(ctx)
	if !ok {
		return uuid.Nil, apperr.ErrMissingToken
	}
	id, err := uuid.Parse(c.AccountID)
	if err != nil {
		return uuid.Nil, apperr.Auth(apperr.Malformed, err)
	}
	return id, nil
}

// storageErr keeps taxonomy errors from the store as they are and files anything
// else under Unavailable.
func storageErr(op string, err error) error {
	var se *apperr.StorageError
	var ve *apperr.ValidationError
	if errors.As(err, &se) || errors.As(err, &ve) {
		return err
	}
	return apperr.Storage(apperr.Unavailable, op, err)
}
