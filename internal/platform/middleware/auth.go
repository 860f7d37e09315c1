// Package middleware holds the HTTP middleware for the operational surface.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "immuna/pkg/domain-errors"
	"immuna/pkg/platform/httputil"
)

// adminScope is the JWT scope required for the operational trigger endpoints.
const adminScope = "recalc:admin"

// AdminAuth validates a bearer JWT signed with the shared HMAC key and
// carrying the admin scope. The operational endpoints are internal tooling;
// full OIDC lives in front of the public API, not here.
func AdminAuth(signingKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(signingKey), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !hasScope(claims, adminScope) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "missing admin scope"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasScope(claims jwt.MapClaims, want string) bool {
	raw, ok := claims["scope"].(string)
	if !ok {
		return false
	}
	for _, scope := range strings.Fields(raw) {
		if scope == want {
			return true
		}
	}
	return false
}
