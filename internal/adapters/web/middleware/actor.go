package middleware

import (
	"net/http"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/audit"
)

// ActorMiddleware marks every request as an API caller for the audit log.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithActor(r.Context(), domain.ActorAPI, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
