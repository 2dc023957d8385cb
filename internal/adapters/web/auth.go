package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type authClaimsKey struct{}

// AuthClaims holds the authenticated user's identity extracted from the JWT.
type AuthClaims struct {
	UserID       int
	OwnershipID  int
	Capabilities map[string]bool
}

// Can satisfies core.Actor.
func (c *AuthClaims) Can(capability string) bool {
	return c != nil && c.Capabilities[capability]
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// jwtClaims is the JWT payload struct used for parsing. Tokens are issued by
// the main application; this service only verifies them.
type jwtClaims struct {
	UserID       int      `json:"user_id"`
	OwnershipID  int      `json:"ownership_id"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// RequireAuth validates the bearer token and injects AuthClaims into the
// request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		caps := make(map[string]bool, len(claims.Capabilities))
		for _, c := range claims.Capabilities {
			caps[c] = true
		}
		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{
			UserID:       claims.UserID,
			OwnershipID:  claims.OwnershipID,
			Capabilities: caps,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
