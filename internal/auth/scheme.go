package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SecretScheme decides how account secrets are stored and compared.
type SecretScheme interface {
	Name() string
	Prepare(secret string) (string, error)
	Match(stored, supplied string) bool
}

// PlainScheme stores secrets as given and compares them exactly.
// It is the default because existing account rows hold plaintext secrets.
// TODO: migrate stored secrets and drop this scheme once every deployment runs bcrypt.
type PlainScheme struct{}

func (PlainScheme) Name() string                          { return "plain" }
func (PlainScheme) Prepare(secret string) (string, error) { return secret, nil }
func (PlainScheme) Match(stored, supplied string) bool    { return stored == supplied }

type BcryptScheme struct {
	Cost int
}

func (BcryptScheme) Name() string { return "bcrypt" }

func (s BcryptScheme) Prepare(secret string) (string, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(b), err
}

func (BcryptScheme) Match(stored, supplied string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
}

// SchemeByName maps the CREDENTIAL_SCHEME setting to a scheme.
func SchemeByName(name string) (SecretScheme, error) {
	switch name {
	case "", "plain":
		return PlainScheme{}, nil
	case "bcrypt":
		return BcryptScheme{}, nil
	}
	return nil, fmt.Errorf("unknown credential scheme %q", name)
}
