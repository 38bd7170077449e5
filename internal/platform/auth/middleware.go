package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/apperr"
)

type ctxKey string

const principalKey ctxKey = "auth_principal"

// Middleware validates the bearer token on every request. Paths accepted by
// the skipper (health, banner, login) pass through unauthenticated.
func Middleware(issuer *TokenIssuer, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return apperr.Unauthorized("missing authorization header")
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return apperr.Unauthorized("invalid authorization format")
			}

			claims, err := issuer.Parse(parts[1])
			if err != nil {
				return err
			}

			ctx := context.WithValue(c.Request().Context(), principalKey, &Principal{Subject: claims.Subject, Role: claims.Role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// DefaultSkipper exempts the public endpoints from token checks.
func DefaultSkipper(c echo.Context) bool {
	path := c.Path()
	switch path {
	case "/", "/health", "/api/v1/auth/login":
		return true
	}
	return false
}
