package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

func writeDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// Bearer verifies the Authorization header and attaches the token claims
// to the request context. The role claim is trusted as-is.
func Bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		claims, err := Verify(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireAdmin guards a route group so individual handlers never repeat
// the role check.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).IsAdmin() {
			writeDetail(w, http.StatusForbidden, "Accès administrateur requis")
			return
		}
		next.ServeHTTP(w, r)
	})
}
