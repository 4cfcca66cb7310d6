package middleware

import (
	"net/http"

	"github.com/nkiryanov/taskmanager/internal/handlers/render"
	"github.com/nkiryanov/taskmanager/internal/handlers/userctx"
	"github.com/nkiryanov/taskmanager/internal/models"
)

type authService interface {
	GetClaimFromRequest(r *http.Request) (models.AccessClaim, error)
}

// Let request through only if it carries valid access token
// Verified claim is put into request context
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claim, err := as.GetClaimFromRequest(r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), claim)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
