package auth

import (
	"errors"
	"time"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	PrincipalID string `json:"sub"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies the stateless bearer tokens. Secret and TTL are
// injected at construction; nothing here reads ambient state.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token binding the principal id and the issuance instant.
// Expiry is issuance plus the configured TTL.
func (i *Issuer) Issue(principalID string) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		PrincipalID: principalID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			Subject:   principalID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and returns the principal id plus the
// issuance instant. The caller still has to check the principal's
// password-changed-at against issuedAt.
func (i *Issuer) Verify(tokenStr string) (principalID string, issuedAt time.Time, err error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", time.Time{}, apperr.TokenExpired()
		}
		return "", time.Time{}, apperr.InvalidToken()
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return "", time.Time{}, apperr.InvalidToken()
	}

	if claims.PrincipalID == "" || claims.IssuedAt == nil {
		return "", time.Time{}, apperr.InvalidToken()
	}

	return claims.PrincipalID, claims.IssuedAt.Time, nil
}
