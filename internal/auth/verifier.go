package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"notifier/internal/config"
	pkgerrors "notifier/pkg/errors"
)

// Subject is the authenticated identity carried by a verified token.
type Subject struct {
	UserID string
	Email  string
	Name   string
}

// Claims mirrors the token payload issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Verifier struct {
	secret   []byte
	audience string
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		secret:   []byte(cfg.Secret),
		audience: cfg.Audience,
	}
}

// Verify parses and validates a bearer token. Invalid or expired tokens
// map to UNAUTHORIZED; a token whose audience claim does not include the
// configured audience maps to FORBIDDEN. Tokens without an audience claim
// are accepted, matching the identity provider's service tokens.
func (v *Verifier) Verify(tokenString string) (Subject, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Subject{}, pkgerrors.ErrUnauthorized.WithCause(err).WithDetail("message", "invalid or expired token")
	}

	if v.audience != "" && len(claims.Audience) > 0 && !contains(claims.Audience, v.audience) {
		return Subject{}, pkgerrors.ErrForbidden.WithDetail("message", "token audience not accepted")
	}

	return Subject{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
