// Package auth gates the console API behind bearer-token authentication.
// Tokens are HMAC-signed JWTs; a console with no signing key configured runs
// open, which is the expected mode for a local single-operator setup.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sentinel-labs/sentinel/pkg/api"
)

// Claims are the JWT claims the console expects.
type Claims struct {
	jwt.RegisteredClaims
	Reviewer string `json:"reviewer,omitempty"`
}

// Validator validates HMAC-signed JWT tokens.
type Validator struct {
	key []byte
}

// NewValidator creates a validator for the given signing key. An empty key
// yields nil, which disables authentication.
func NewValidator(signingKey string) *Validator {
	if signingKey == "" {
		return nil
	}
	return &Validator{key: []byte(signingKey)}
}

// Validate parses and validates a token string.
func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// publicPaths are endpoints that never require authentication.
var publicPaths = []string{
	"/health",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// Middleware enforces bearer-token auth on non-public paths. A nil validator
// disables enforcement entirely.
func Middleware(validator *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.WriteUnauthorized(w, "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				api.WriteUnauthorized(w, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			if _, err := validator.Validate(parts[1]); err != nil {
				api.WriteUnauthorized(w, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
