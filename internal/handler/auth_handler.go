package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/auth"
	"clinic-records-api/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// Login answers {authenticated, token, expiresAt, account, message} on success. A
// failed login is an Unauthenticated status whose message starts with the auth code
// (invalid_credentials); the REST gateway turns that into the same shape with
// authenticated false and a null token and account.
func (h *Handler) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in loginRequest
	if err := decode(req, &in); err != nil {
		return nil, logged("login", err)
	}
	login := in.Email
	if login == "" {
		login = in.Username
	}

	res, err := h.accounts.Login(ctx, login, in.Secret)
	if err != nil {
		return nil, logged("login", err)
	}
	return encode(map[string]any{
		"authenticated": res.Authenticated,
		"token":         res.Token,
		"expiresAt":     res.ExpiresAt,
		"account":       res.Account,
		"message":       "authenticated",
	})
}

func (h *Handler) RegisterAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in auth.RegisterInput
	if err := decode(req, &in); err != nil {
		return nil, logged("register account", err)
	}
	a, err := h.accounts.Register(ctx, in)
	if err != nil {
		return nil, logged("register account", err)
	}
	return encode(a)
}

func (h *Handler) ListAccounts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := h.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, logged("list accounts", err)
	}
	if list == nil {
		list = []model.Account{}
	}
	return encode(items(list))
}

func (h *Handler) ChangeSecret(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		Secret string `json:"secret"`
	}
	if err := decode(req, &in); err != nil {
		return nil, logged("change secret", err)
	}
	if err := h.accounts.ChangeSecret(ctx, in.Secret); err != nil {
		return nil, logged("change secret", err)
	}
	return encode(map[string]any{"message": "secret changed"})
}

func (h *Handler) SetProfileImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		Image string `json:"image"`
	}
	if err := decode(req, &in); err != nil {
		return nil, logged("set profile image", err)
	}
	if err := h.accounts.SetProfileImage(ctx, in.Image); err != nil {
		return nil, logged("set profile image", err)
	}
	return encode(map[string]any{"message": "profile image updated", "image": in.Image})
}
