package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/model"
)

var errBadMethod = errors.New("unexpected signing method")

type Claims struct {
	AccountID string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 tokens. The secret is fixed at construction.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

func (s *TokenService) Issue(a *model.Account) (string, *Claims, error) {
	now := s.now()
	c := &Claims{
		AccountID: a.ID.String(),
		Name:      a.Name,
		Email:     a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return tok, c, nil
}

// Verify returns the claims of a token signed with this service's secret.
// Expiry is checked twice: by the parser and against the wall clock afterwards;
// the wall-clock comparison is the one that decides.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, apperr.ErrMissingToken
	}

	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadMethod
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Auth(apperr.Expired, err)
		}
		return nil, apperr.Auth(apperr.Malformed, err)
	}

	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.AccountID == "" || c.ExpiresAt == nil {
		return nil, apperr.ErrMalformedToken
	}
	if !s.now().Before(c.ExpiresAt.Time) {
		return nil, apperr.ErrExpiredToken
	}
	return c, nil
}
