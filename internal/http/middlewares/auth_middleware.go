package middlewares

import (
	"context"
	"strings"
	"time"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/gin-gonic/gin"
)

// Keep these interfaces small so tests can fake them easily.

type TokenVerifier interface {
	Verify(token string) (principalID string, issuedAt time.Time, err error)
}

type PrincipalStore interface {
	GetByID(ctx context.Context, id string) (principal.Principal, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	store    PrincipalStore
}

func NewAuthMiddleware(verifier TokenVerifier, store PrincipalStore) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, store: store}
}

// tokenFromRequest prefers the Authorization header; the cookie is the
// fallback for browser clients.
func tokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")

	if strings.HasPrefix(authHeader, "Bearer ") {
		if raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer")); raw != "" {
			return raw
		}
	}

	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}

	return ""
}

// Protect authenticates the request. Beyond signature and expiry, the
// principal must still exist, be active, and must not have changed their
// password after the token was issued.
func (m *AuthMiddleware) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)

		if raw == "" {
			fail(c, apperr.AuthRequired("You are not logged in! Please log in to get access."))
			return
		}

		principalID, issuedAt, err := m.verifier.Verify(raw)
		if err != nil {
			fail(c, err)
			return
		}

		p, err := m.store.GetByID(c.Request.Context(), principalID)
		if err != nil {
			if apperr.IsCode(err, apperr.CodeNotFound) {
				fail(c, apperr.AuthRequired("The user belonging to this token no longer exists."))
				return
			}
			fail(c, err)
			return
		}

		if p.PasswordChangedAfter(issuedAt) {
			fail(c, apperr.PasswordChanged())
			return
		}

		c.Set(ctxPrincipalKey, p)
		c.Next()
	}
}

// RestrictTo gates a route to the given roles. Must run after Protect.
func (m *AuthMiddleware) RestrictTo(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)

		if !ok {
			fail(c, apperr.AuthRequired("You are not logged in! Please log in to get access."))
			return
		}

		if _, ok := allowed[p.Role]; !ok {
			fail(c, apperr.Forbidden("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

// PrincipalFromContext gives handlers the resolved identity without knowing
// the magic key.
func PrincipalFromContext(c *gin.Context) (principal.Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return principal.Principal{}, false
	}
	p, ok := v.(principal.Principal)
	return p, ok
}
