package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/auth"
)

const ServicePrefix = "/clinic.v1.ClinicService/"

// TokenHeader is the header the web client sends its token in.
const TokenHeader = "x-access-token"

type Verifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// skip auth for these
var open = map[string]bool{
	ServicePrefix + "Login":           true,
	ServicePrefix + "RegisterAccount": true,
}

// Auth rejects calls to protected methods unless they carry a valid token, and puts
// the verified claims on the context for everything downstream.
func Auth(v Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}

		raw := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			raw = tokenFrom(first(md.Get(TokenHeader)), first(md.Get("authorization")))
		}

		claims, err := v.Verify(raw)
		if err != nil {
			return nil, apperr.GRPCError(err)
		}
		return next(auth.WithPrincipal(ctx, claims), req)
	}
}

// GinAuth is the HTTP counterpart of Auth.
func GinAuth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFrom(c.GetHeader(TokenHeader), c.GetHeader("Authorization"))
		claims, err := v.Verify(raw)
		if err != nil {
			code, p := apperr.HTTPProblem(err)
			c.AbortWithStatusJSON(code, p)
			return
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), claims))
		c.Next()
	}
}

// tokenFrom prefers the access-token header and falls back to a bearer token.
func tokenFrom(accessToken, authorization string) string {
	if t := strings.TrimSpace(accessToken); t != "" {
		return t
	}
	if t, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
