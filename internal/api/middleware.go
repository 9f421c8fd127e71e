package api

import (
	"net/http"
	"strings"

	"github.com/promptshot/backend/internal/config"
)

// AdminAuth middleware validates the shared admin secret. The secret comes
// from configuration only; an unset secret disables the admin surface.
func AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.Cfg.AdminSecret == "" {
			http.Error(w, `{"error":"Admin secret not configured"}`, http.StatusServiceUnavailable)
			return
		}

		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == "" || token == auth {
			http.Error(w, `{"error":"Missing admin token"}`, http.StatusUnauthorized)
			return
		}

		if token != config.Cfg.AdminSecret {
			http.Error(w, `{"error":"Invalid admin token"}`, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
