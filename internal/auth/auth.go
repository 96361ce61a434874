package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// AdminGuard authorises admin requests against a shared secret.
// With no token configured every request is rejected.
type AdminGuard struct {
	token string
}

func NewAdminGuard(token string) *AdminGuard {
	return &AdminGuard{token: strings.TrimSpace(token)}
}

// Configured reports whether an admin token is set.
func (g *AdminGuard) Configured() bool { return g.token != "" }

// IsAuthorized checks the Authorization bearer header first; only when no bearer
// header is present does it fall back to the token query parameter.
func (g *AdminGuard) IsAuthorized(r *http.Request) bool {
	if g.token == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), bearerPrefix) {
		return g.matches(strings.TrimSpace(header[len(bearerPrefix):]))
	}
	if q := strings.TrimSpace(r.URL.Query().Get("token")); q != "" {
		return g.matches(q)
	}
	return false
}

// Middleware rejects unauthorised requests with a uniform 401.
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.IsAuthorized(r) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *AdminGuard) matches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(g.token)) == 1
}
