package auth

import "context"

type ctxKey string

const principalKey ctxKey = "principal"

// WithPrincipal attaches verified claims to ctx. Only the request gate calls it.
func WithPrincipal(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, principalKey, c)
}

func PrincipalFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(principalKey).(*Claims)
	return c, ok && c != nil
}

// ActorID names the acting account for logs; "anonymous" outside the gate.
func ActorID(ctx context.Context) string {
	if c, ok := PrincipalFrom(ctx); ok {
		return c.AccountID
	}
	return "anonymous"
}
